package core

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultOutboxBound matches the host's typical per-level outbox capacity
// (spec §4.1: "typically 100 entries/level").
const DefaultOutboxBound = 100

// TicketInfo identifies the FA ticket being withdrawn: its id, optional
// content payload, and the L1 contract that originated it.
type TicketInfo struct {
	ID       uint32
	Content  []byte
	Ticketer Address
}

// RoutingInfo names the L1 receiver and the proxy contract a withdrawal
// routes through.
type RoutingInfo struct {
	Receiver       Address
	ProxyL1Contract Address
}

// OutboxMessage is a single L1-bound withdrawal, queued by a committed
// transaction and later serialized into the rollup host's outbox.
type OutboxMessage struct {
	ID      string
	Routing RoutingInfo
	Ticket  TicketInfo
	Amount  uint64
}

// NewWithdrawalMessage builds the outbox message for a withdrawal, grounded
// on the original implementation's FA-withdraw message shape: a call to
// proxy_l1_contract.%withdraw with (receiver, reconstructed ticket).
func NewWithdrawalMessage(routing RoutingInfo, ticket TicketInfo, amount uint64) OutboxMessage {
	return OutboxMessage{
		ID:      uuid.NewString(),
		Routing: routing,
		Ticket:  ticket,
		Amount:  amount,
	}
}

// OutboxQueue is the ordered, bounded, per-level queue of outbound
// messages. Enqueue is only ever called from Transaction.Commit at the
// top level, never directly from JS.
type OutboxQueue struct {
	mu       sync.Mutex
	bound    int
	messages []OutboxMessage
}

func NewOutboxQueue(bound int) *OutboxQueue {
	if bound <= 0 {
		bound = DefaultOutboxBound
	}
	return &OutboxQueue{bound: bound}
}

func (q *OutboxQueue) Bound() int {
	return q.bound
}

func (q *OutboxQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Enqueue appends msg. Bound enforcement happens earlier, in
// Transaction.QueueOutbox, so a message reaching here always has room.
func (q *OutboxQueue) Enqueue(msg OutboxMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
}

// Drain returns and clears the queued messages, in enqueue order, for
// handoff to the rollup host at level end.
func (q *OutboxQueue) Drain() []OutboxMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.messages
	q.messages = nil
	return out
}
