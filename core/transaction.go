package core

// frame is one layer of a Transaction's overlay stack (spec §3 "Transaction
// layer frame"). writes holds present values; tombstones holds pending
// removals; reads tracks keys observed in this frame for read-lock
// accounting; outboxAppends holds withdrawals enqueued in this frame.
type frame struct {
	writes        map[Path][]byte
	tombstones    map[Path]struct{}
	reads         map[Path]struct{}
	outboxAppends []OutboxMessage
}

func newFrame() *frame {
	return &frame{
		writes:     make(map[Path][]byte),
		tombstones: make(map[Path]struct{}),
		reads:      make(map[Path]struct{}),
	}
}

// Transaction is a stack of overlay frames over a durable StorageRW, per
// spec §4.1. A Transaction always has at least one open frame for the
// lifetime between NewTransaction and its final Commit/Rollback.
type Transaction struct {
	store  StorageRW
	outbox *OutboxQueue
	frames []*frame
}

// NewTransaction opens the top-level frame of a new transaction. outbox may
// be nil if the caller never queues withdrawals on this transaction (e.g.
// deposit-only internal messages).
func NewTransaction(store StorageRW, outbox *OutboxQueue) *Transaction {
	return &Transaction{store: store, outbox: outbox, frames: []*frame{newFrame()}}
}

// Depth reports the number of open frames, including the top-level one.
func (tx *Transaction) Depth() int {
	return len(tx.frames)
}

func (tx *Transaction) top() *frame {
	return tx.frames[len(tx.frames)-1]
}

// Begin pushes a new nested frame, used per fetch hop (§4.4).
func (tx *Transaction) Begin() {
	tx.frames = append(tx.frames, newFrame())
}

// Commit merges the top frame into its parent, or, if the top frame is the
// last one, flushes it through to the durable store and outbox.
func (tx *Transaction) Commit() error {
	if len(tx.frames) == 0 {
		return New(KindStorageError, "commit called with no open frame")
	}
	top := tx.frames[len(tx.frames)-1]
	tx.frames = tx.frames[:len(tx.frames)-1]

	if len(tx.frames) == 0 {
		return tx.flush(top)
	}

	parent := tx.top()
	for p := range top.tombstones {
		parent.tombstones[p] = struct{}{}
		delete(parent.writes, p)
	}
	for p, v := range top.writes {
		parent.writes[p] = v
		delete(parent.tombstones, p)
	}
	for p := range top.reads {
		parent.reads[p] = struct{}{}
	}
	parent.outboxAppends = append(parent.outboxAppends, top.outboxAppends...)
	return nil
}

// Rollback pops and discards the top frame. Infallible per spec §4.1.
func (tx *Transaction) Rollback() {
	if len(tx.frames) == 0 {
		return
	}
	tx.frames = tx.frames[:len(tx.frames)-1]
}

func (tx *Transaction) flush(top *frame) error {
	for p := range top.tombstones {
		if err := tx.store.Delete(p); err != nil {
			return Wrap(KindStorageError, err, "flush delete "+string(p))
		}
	}
	for p, v := range top.writes {
		if err := tx.store.Set(p, v); err != nil {
			return Wrap(KindStorageError, err, "flush set "+string(p))
		}
	}
	if tx.outbox != nil {
		for _, msg := range top.outboxAppends {
			tx.outbox.Enqueue(msg)
		}
	}
	return nil
}

// Get walks the frame stack top-to-bottom, falling back to the durable
// store. A tombstone hit short-circuits to "not found" without consulting
// lower frames or the store.
func (tx *Transaction) Get(p Path) ([]byte, bool, error) {
	for i := len(tx.frames) - 1; i >= 0; i-- {
		f := tx.frames[i]
		if _, tomb := f.tombstones[p]; tomb {
			return nil, false, nil
		}
		if v, ok := f.writes[p]; ok {
			return v, true, nil
		}
	}
	v, ok, err := tx.store.Get(p)
	if err != nil {
		return nil, false, Wrap(KindStorageError, err, "get "+string(p))
	}
	if len(tx.frames) > 0 {
		tx.top().reads[p] = struct{}{}
	}
	return v, ok, nil
}

// ContainsKey is Get with a presence test.
func (tx *Transaction) ContainsKey(p Path) (bool, error) {
	_, ok, err := tx.Get(p)
	return ok, err
}

// Insert writes v into the top frame as present.
func (tx *Transaction) Insert(p Path, v []byte) error {
	if len(tx.frames) == 0 {
		return New(KindStorageError, "insert called with no open frame")
	}
	top := tx.top()
	top.writes[p] = v
	delete(top.tombstones, p)
	return nil
}

// Remove writes a tombstone into the top frame.
func (tx *Transaction) Remove(p Path) error {
	if len(tx.frames) == 0 {
		return New(KindStorageError, "remove called with no open frame")
	}
	top := tx.top()
	top.tombstones[p] = struct{}{}
	delete(top.writes, p)
	return nil
}

// QueueOutbox appends msg to the top frame's outbox list, failing with
// OutboxFull if the total number of messages already buffered across this
// transaction plus the durable queue would exceed the bound.
func (tx *Transaction) QueueOutbox(msg OutboxMessage) error {
	if tx.outbox != nil {
		pending := 0
		for _, f := range tx.frames {
			pending += len(f.outboxAppends)
		}
		if tx.outbox.Len()+pending+1 > tx.outbox.Bound() {
			return New(KindOutboxFull, "outbox queue is at capacity (%d)", tx.outbox.Bound())
		}
	}
	top := tx.top()
	top.outboxAppends = append(top.outboxAppends, msg)
	return nil
}
