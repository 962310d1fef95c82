package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"
)

// InboxMessage is the tagged union over the message kinds spec §4.5
// classifies an inbox entry into.
type InboxMessage interface {
	isInboxMessage()
}

type StartOfLevelMessage struct{}

func (StartOfLevelMessage) isInboxMessage() {}

type EndOfLevelMessage struct{}

func (EndOfLevelMessage) isInboxMessage() {}

type InfoPerLevelMessage struct {
	PredecessorTimestamp int64
	PredecessorHash      Hash
}

func (InfoPerLevelMessage) isInboxMessage() {}

// TransferMessage covers both native and FA deposits. IsFADeposit
// discriminates the wire shape: a native-position transfer carries just
// (receiver, ticket); an FA-position transfer carries (receiver,
// (optional_proxy, ticket)). The two are never confused even when Proxy is
// nil, because IsFADeposit records which shape was actually on the wire.
type TransferMessage struct {
	Receiver      Address
	Ticketer      Address
	TicketID      uint32
	TicketContent []byte
	Amount        uint64
	IsFADeposit   bool
	Proxy         *Address
}

func (TransferMessage) isInboxMessage() {}

// ExternalMessage is a Targetted frame whose payload is a SignedOperation,
// already confirmed to target this rollup.
type ExternalMessage struct {
	RollupAddress [20]byte
	Payload       []byte
}

func (ExternalMessage) isInboxMessage() {}

const (
	tagStartOfLevel byte = 0x02
	tagEndOfLevel   byte = 0x03
	tagInfoPerLevel byte = 0x04
	tagTransfer     byte = 0x05
)

type infoPerLevelWire struct {
	PredecessorTimestamp int64
	PredecessorHash      []byte
}

type transferWire struct {
	ReceiverScheme byte
	ReceiverHash   []byte
	TicketerScheme byte
	TicketerHash   []byte
	TicketID       uint32
	TicketContent  []byte
	Amount         uint64
	IsFADeposit    bool
	HasProxy       bool
	ProxyScheme    byte
	ProxyHash      []byte
}

// DecodeInboxMessage decodes one framed inbox entry. ok is false when the
// message is an External frame not targeted at thisRollup (spec: "Messages
// not targetted at this rollup are silently dropped").
func DecodeInboxMessage(raw []byte, thisRollup [20]byte) (msg InboxMessage, ok bool, err error) {
	if len(raw) == 0 {
		return nil, false, New(KindDecodeError, "empty inbox message")
	}
	if raw[0] == rollupFrameTagTargetted {
		addr, payload, decoded, err := DecodeTargettedFrame(raw)
		if err != nil {
			return nil, false, err
		}
		if !decoded || addr != thisRollup {
			return nil, false, nil
		}
		return ExternalMessage{RollupAddress: addr, Payload: payload}, true, nil
	}

	switch raw[0] {
	case tagStartOfLevel:
		return StartOfLevelMessage{}, true, nil
	case tagEndOfLevel:
		return EndOfLevelMessage{}, true, nil
	case tagInfoPerLevel:
		var w infoPerLevelWire
		if err := rlp.DecodeBytes(raw[1:], &w); err != nil {
			return nil, false, Wrap(KindDecodeError, err, "decode info-per-level")
		}
		var h Hash
		copy(h[:], w.PredecessorHash)
		return InfoPerLevelMessage{PredecessorTimestamp: w.PredecessorTimestamp, PredecessorHash: h}, true, nil
	case tagTransfer:
		var w transferWire
		if err := rlp.DecodeBytes(raw[1:], &w); err != nil {
			return nil, false, Wrap(KindDecodeError, err, "decode transfer")
		}
		m := TransferMessage{
			TicketID:      w.TicketID,
			TicketContent: w.TicketContent,
			Amount:        w.Amount,
			IsFADeposit:   w.IsFADeposit,
		}
		m.Receiver.Scheme = Scheme(w.ReceiverScheme)
		copy(m.Receiver.Hash[:], w.ReceiverHash)
		m.Ticketer.Scheme = Scheme(w.TicketerScheme)
		copy(m.Ticketer.Hash[:], w.TicketerHash)
		if w.HasProxy {
			var p Address
			p.Scheme = Scheme(w.ProxyScheme)
			copy(p.Hash[:], w.ProxyHash)
			m.Proxy = &p
		}
		return m, true, nil
	default:
		return nil, false, New(KindDecodeError, "unknown inbox message tag %#x", raw[0])
	}
}

// ticketHashOf computes the FA ticket's content hash from its originator,
// id, and payload, per the glossary definition.
func ticketHashOf(ticketer Address, id uint32, content []byte) Hash {
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], id)
	return H(ticketer.Bytes(), idBuf[:], content)
}

// ProcessTransfer applies a native or FA deposit, per spec §4.5 / module P.
// The ticket credit always persists; if the deposit carries a proxy smart
// function, the synthetic notification run happens in its own transaction
// that may fail and roll back independently (Open Question resolution in
// SPEC_FULL.md).
func (p *Pipeline) ProcessTransfer(msg TransferMessage) error {
	creditTx := NewTransaction(p.hrt, p.outbox)
	accounts := NewAccountRegistry(creditTx)

	if !msg.IsFADeposit {
		if msg.Ticketer.Equal(p.config.NativeTicketer) && msg.TicketID == 0 && len(msg.TicketContent) == 0 {
			if err := accounts.AddBalance(msg.Receiver, msg.Amount); err != nil {
				return err
			}
			return creditTx.Commit()
		}
		creditTx.Rollback()
		p.log.WithField("ticketer", msg.Ticketer).Debug("ignoring non-native ticket in native deposit position")
		return nil
	}

	ticketHash := ticketHashOf(msg.Ticketer, msg.TicketID, msg.TicketContent)
	tickets := NewTicketTable(creditTx)
	if err := tickets.Add(ticketHash, msg.Receiver, msg.Amount); err != nil {
		return err
	}
	if err := creditTx.Commit(); err != nil {
		return err
	}

	if msg.Proxy != nil {
		p.runDepositProxyNotification(*msg.Proxy, msg, ticketHash)
	}
	return nil
}

type depositNotification struct {
	Receiver   string `json:"receiver"`
	TicketHash string `json:"ticket_hash"`
	Amount     uint64 `json:"amount"`
}

func (p *Pipeline) runDepositProxyNotification(proxy Address, msg TransferMessage, ticketHash Hash) {
	tx := NewTransaction(p.hrt, p.outbox)
	accounts := NewAccountRegistry(tx)
	acc, err := accounts.Get(proxy)
	if err != nil || acc.Code == nil {
		tx.Rollback()
		p.log.WithField("proxy", proxy).Warn("fa deposit proxy has no code, notification skipped")
		return
	}

	bodyBytes, err := json.Marshal(depositNotification{
		Receiver:   msg.Receiver.String(),
		TicketHash: ticketHash.Hex(),
		Amount:     msg.Amount,
	})
	if err != nil {
		tx.Rollback()
		return
	}

	gas := NewGasMeter(p.config.DefaultGasLimit)
	host := NewExecutionHost(p.hrt, tx, proxy, Hash{}, gas, p.config)
	req := NewRequest("POST", fmt.Sprintf("jstz://%s/", proxy.String()), map[string]string{"Content-Type": "application/json"}, bodyBytes)

	resp, runErr := host.Run(acc.Code.Source, req)
	if runErr != nil || !resp.IsSuccess() {
		tx.Rollback()
		p.log.WithFields(logrus.Fields{"proxy": proxy, "err": runErr}).Warn("fa deposit proxy notification failed, ticket credit unaffected")
		return
	}
	if err := tx.Commit(); err != nil {
		p.log.WithError(err).Error("commit fa deposit proxy notification")
	}
}
