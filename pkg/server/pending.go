package server

import (
	"sort"
	"sync"
	"time"
)

// Pair is the ordered (requester, target) key of a pending private-chat
// invitation. The reverse ordering is an independent key.
type Pair struct {
	Requester string
	Target    string
}

// PendingRequest is one outstanding invitation with its creation time.
type PendingRequest struct {
	Pair
	CreatedAt time.Time
}

// PendingLedger is the shared map of in-flight private-chat
// invitations. At most one request exists per ordered pair; accept and
// decline race through PopIfExists, which consumes a request exactly
// once.
type PendingLedger struct {
	mu       sync.Mutex
	now      func() time.Time
	requests map[Pair]time.Time
}

// NewPendingLedger creates a ledger using time.Now.
func NewPendingLedger() *PendingLedger {
	return NewPendingLedgerWithClock(time.Now)
}

// NewPendingLedgerWithClock creates a ledger with a custom clock.
func NewPendingLedgerWithClock(now func() time.Time) *PendingLedger {
	if now == nil {
		now = time.Now
	}
	return &PendingLedger{now: now, requests: make(map[Pair]time.Time)}
}

// Create records an invitation. Returns false if one is already
// outstanding for this ordered pair.
func (l *PendingLedger) Create(requester, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := Pair{Requester: requester, Target: target}
	if _, exists := l.requests[key]; exists {
		return false
	}
	l.requests[key] = l.now()
	return true
}

// PopIfExists atomically checks for and removes an invitation. Exactly
// one of any number of concurrent callers for the same pair sees true.
func (l *PendingLedger) PopIfExists(requester, target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := Pair{Requester: requester, Target: target}
	if _, exists := l.requests[key]; !exists {
		return false
	}
	delete(l.requests, key)
	return true
}

// SweepExpired removes and returns every invitation older than ttl,
// ordered by requester then target so sweep logs and notifications are
// deterministic.
func (l *PendingLedger) SweepExpired(ttl time.Duration) []Pair {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-ttl)
	var expired []Pair
	for key, created := range l.requests {
		if created.Before(cutoff) {
			expired = append(expired, key)
			delete(l.requests, key)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].Requester != expired[j].Requester {
			return expired[i].Requester < expired[j].Requester
		}
		return expired[i].Target < expired[j].Target
	})
	return expired
}

// Snapshot returns a copy of all outstanding invitations, ordered by
// requester then target. Used by the admin console.
func (l *PendingLedger) Snapshot() []PendingRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PendingRequest, 0, len(l.requests))
	for key, created := range l.requests {
		out = append(out, PendingRequest{Pair: key, CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requester != out[j].Requester {
			return out[i].Requester < out[j].Requester
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Len returns the number of outstanding invitations.
func (l *PendingLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}
