package core

import "testing"

func TestTransactionCommitFlushesToStore(t *testing.T) {
	store := newMemStore()
	tx := NewTransaction(store, nil)

	if err := tx.Insert("/a", []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, ok, err := store.Get("/a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("expected /a=1 in durable store, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	store := newMemStore()
	tx := NewTransaction(store, nil)
	if err := tx.Insert("/a", []byte("1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	tx.Rollback()

	if _, ok, _ := store.Get("/a"); ok {
		t.Fatalf("rolled-back write leaked to durable store")
	}
}

func TestTransactionNestedCommitMergesIntoParent(t *testing.T) {
	store := newMemStore()
	tx := NewTransaction(store, nil)
	if err := tx.Insert("/a", []byte("outer")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tx.Begin()
	if err := tx.Insert("/b", []byte("inner")); err != nil {
		t.Fatalf("Insert nested: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("nested Commit: %v", err)
	}
	// Still one frame open (the outer one); nothing flushed yet.
	if _, ok, _ := store.Get("/b"); ok {
		t.Fatalf("nested commit must not flush to the durable store directly")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("outer Commit: %v", err)
	}
	if v, ok, _ := store.Get("/b"); !ok || string(v) != "inner" {
		t.Fatalf("expected /b=inner after outer commit, got %q ok=%v", v, ok)
	}
	if v, ok, _ := store.Get("/a"); !ok || string(v) != "outer" {
		t.Fatalf("expected /a=outer after outer commit, got %q ok=%v", v, ok)
	}
}

func TestTransactionNestedRollbackPreservesParent(t *testing.T) {
	store := newMemStore()
	tx := NewTransaction(store, nil)
	if err := tx.Insert("/a", []byte("outer")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tx.Begin()
	if err := tx.Insert("/b", []byte("inner")); err != nil {
		t.Fatalf("Insert nested: %v", err)
	}
	tx.Rollback()

	if v, ok, err := tx.Get("/a"); err != nil || !ok || string(v) != "outer" {
		t.Fatalf("expected /a still visible after nested rollback, got %q ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := tx.Get("/b"); ok {
		t.Fatalf("/b should not be visible after its frame was rolled back")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("final Commit: %v", err)
	}
	if _, ok, _ := store.Get("/b"); ok {
		t.Fatalf("rolled-back nested write must never reach the durable store")
	}
}

func TestTransactionTombstoneShortCircuitsLowerFrames(t *testing.T) {
	store := newMemStore()
	store.Set("/a", []byte("durable"))

	tx := NewTransaction(store, nil)
	if err := tx.Remove("/a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := tx.Get("/a"); err != nil || ok {
		t.Fatalf("expected tombstoned key to read as absent, ok=%v err=%v", ok, err)
	}
}

func TestOutboxBoundEnforced(t *testing.T) {
	outbox := NewOutboxQueue(1)
	store := newMemStore()
	tx := NewTransaction(store, outbox)

	msg := NewWithdrawalMessage(RoutingInfo{}, TicketInfo{}, 10)
	if err := tx.QueueOutbox(msg); err != nil {
		t.Fatalf("first QueueOutbox should succeed: %v", err)
	}
	if err := tx.QueueOutbox(msg); !Is(err, KindOutboxFull) {
		t.Fatalf("expected OutboxFull, got %v", err)
	}
}
