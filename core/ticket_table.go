package core

import (
	"encoding/binary"
	"fmt"
)

func ticketPath(ticketHash Hash, owner Address) Path {
	return Path(fmt.Sprintf("/ticket_table/%s/%s", ticketHash.Hex(), owner.String()))
}

// TicketTable is the FA ticket balance CRUD layer, keyed by (TicketHash,
// Address), grounded on the original implementation's ticket_table.rs.
// Balances are stored as a raw little-endian u64 per spec §6.
type TicketTable struct {
	tx *Transaction
}

func NewTicketTable(tx *Transaction) *TicketTable {
	return &TicketTable{tx: tx}
}

// GetBalance returns 0 if the entry has never been written.
func (t *TicketTable) GetBalance(ticketHash Hash, owner Address) (uint64, error) {
	raw, ok, err := t.tx.Get(ticketPath(ticketHash, owner))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, New(KindDecodeError, "ticket balance must be 8 bytes")
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (t *TicketTable) putBalance(ticketHash Hash, owner Address, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return t.tx.Insert(ticketPath(ticketHash, owner), buf)
}

// Add credits amount to (ticketHash, owner), creating the entry on first
// credit. Fails with BalanceOverflow on 64-bit overflow.
func (t *TicketTable) Add(ticketHash Hash, owner Address, amount uint64) error {
	cur, err := t.GetBalance(ticketHash, owner)
	if err != nil {
		return err
	}
	next := cur + amount
	if next < cur {
		return New(KindBalanceOverflow, "ticket balance overflow for %s/%s", ticketHash, owner)
	}
	return t.putBalance(ticketHash, owner, next)
}

// Sub debits amount from (ticketHash, owner). An absent entry fails with
// AccountNotFound (distinct from a present-but-too-small entry, which fails
// with InsufficientFunds), matching the original implementation's
// Entry::Vacant/Entry::Occupied split.
func (t *TicketTable) Sub(ticketHash Hash, owner Address, amount uint64) error {
	exists, err := t.tx.ContainsKey(ticketPath(ticketHash, owner))
	if err != nil {
		return err
	}
	if !exists {
		return New(KindTicketAccountNotFound, "no ticket entry for %s/%s", ticketHash, owner)
	}
	cur, err := t.GetBalance(ticketHash, owner)
	if err != nil {
		return err
	}
	if cur < amount {
		return New(KindTicketInsufficientFunds, "ticket %s/%s has %d, needs %d", ticketHash, owner, cur, amount)
	}
	return t.putBalance(ticketHash, owner, cur-amount)
}
