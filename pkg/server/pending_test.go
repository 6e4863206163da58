package server

import (
	"sync"
	"testing"
	"time"
)

func TestPendingCreateDuplicate(t *testing.T) {
	l := NewPendingLedger()
	if !l.Create("alice", "bob") {
		t.Fatal("first create rejected")
	}
	if l.Create("alice", "bob") {
		t.Fatal("duplicate ordered pair accepted")
	}
	// The reverse ordering is an independent request.
	if !l.Create("bob", "alice") {
		t.Fatal("reverse pair rejected")
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 requests, got %d", l.Len())
	}
}

func TestPendingPopConsumesOnce(t *testing.T) {
	l := NewPendingLedger()
	l.Create("alice", "bob")

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.PopIfExists("alice", "bob") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
	if l.Len() != 0 {
		t.Fatalf("ledger not empty: %d", l.Len())
	}
}

func TestPendingSweepExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	l := NewPendingLedgerWithClock(clock)

	l.Create("carol", "dave")
	l.Create("alice", "bob")
	now = now.Add(90 * time.Second)
	l.Create("erin", "frank")

	expired := l.SweepExpired(time.Minute)
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired, got %v", expired)
	}
	// Deterministic requester-then-target order.
	if expired[0] != (Pair{Requester: "alice", Target: "bob"}) ||
		expired[1] != (Pair{Requester: "carol", Target: "dave"}) {
		t.Fatalf("unexpected sweep order: %v", expired)
	}
	if l.Len() != 1 {
		t.Fatalf("fresh request swept, len=%d", l.Len())
	}
	if !l.PopIfExists("erin", "frank") {
		t.Fatal("fresh request missing after sweep")
	}
}
