package core

import "testing"

func TestTicketTableAddAndSub(t *testing.T) {
	tx := NewTransaction(newMemStore(), nil)
	tickets := NewTicketTable(tx)
	owner := testAddress(t)
	ticketHash := H([]byte("ticket content"))

	if bal, err := tickets.GetBalance(ticketHash, owner); err != nil || bal != 0 {
		t.Fatalf("expected zero balance for unseen entry, got %d err=%v", bal, err)
	}

	if err := tickets.Add(ticketHash, owner, 50); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if bal, _ := tickets.GetBalance(ticketHash, owner); bal != 50 {
		t.Fatalf("expected 50, got %d", bal)
	}

	if err := tickets.Sub(ticketHash, owner, 20); err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if bal, _ := tickets.GetBalance(ticketHash, owner); bal != 30 {
		t.Fatalf("expected 30, got %d", bal)
	}
}

func TestTicketTableSubOnMissingEntryIsAccountNotFound(t *testing.T) {
	tx := NewTransaction(newMemStore(), nil)
	tickets := NewTicketTable(tx)
	owner := testAddress(t)
	ticketHash := H([]byte("never seen"))

	if err := tickets.Sub(ticketHash, owner, 1); !Is(err, KindTicketAccountNotFound) {
		t.Fatalf("expected TicketAccountNotFound, got %v", err)
	}
}

func TestTicketTableSubInsufficientIsDistinctFromMissing(t *testing.T) {
	tx := NewTransaction(newMemStore(), nil)
	tickets := NewTicketTable(tx)
	owner := testAddress(t)
	ticketHash := H([]byte("present but small"))

	if err := tickets.Add(ticketHash, owner, 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tickets.Sub(ticketHash, owner, 10); !Is(err, KindTicketInsufficientFunds) {
		t.Fatalf("expected TicketInsufficientFunds, got %v", err)
	}
}
