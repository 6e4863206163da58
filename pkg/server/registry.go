package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tdnguyen/parley/pkg/model"
)

var (
	// ErrAlreadyRegistered means the username already has a live session.
	ErrAlreadyRegistered = errors.New("registry: username already registered")

	// ErrNotRegistered means no live session exists for the username.
	ErrNotRegistered = errors.New("registry: username not registered")

	// ErrBusy means a session is already in a private pairing, so it
	// cannot enter another one.
	ErrBusy = errors.New("registry: session already in a private room")
)

// Registry is the single shared table of connected, authenticated
// sessions and their room assignment. Every read and mutation happens
// under one mutex; callers never touch a live *model.Session directly.
// Operations that affect both sides of a private pair run inside a
// single critical section so the pair-symmetry invariant is never
// observable half-applied.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*model.Session)}
}

// Register appends a session. The duplicate-username check and the
// insert share the critical section, so two concurrent logins for the
// same name cannot both succeed.
func (r *Registry) Register(s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.Username]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, s.Username)
	}
	r.sessions[s.Username] = s
	return nil
}

// Get returns a copy of the named session. Mutations go through the
// registry's own operations, never through the returned value.
func (r *Registry) Get(username string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[username]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// Snapshot returns a copy of all sessions ordered by username. Callers
// iterate and perform I/O on the copy after the lock is released.
func (r *Registry) Snapshot() []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// UpdateRoom mutates one session's room fields in place.
func (r *Registry) UpdateRoom(username string, mode model.RoomMode, partner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, username)
	}
	s.Mode = mode
	s.Partner = partner
	return nil
}

// Pair moves two public sessions into a private pairing with each
// other. Both mutations happen in this one critical section. If either
// side is gone or no longer public the pairing is refused and nothing
// changes.
func (r *Registry) Pair(a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sa, ok := r.sessions[a]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, a)
	}
	sb, ok := r.sessions[b]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, b)
	}
	if sa.Mode == model.RoomPrivate {
		return fmt.Errorf("%w: %s", ErrBusy, a)
	}
	if sb.Mode == model.RoomPrivate {
		return fmt.Errorf("%w: %s", ErrBusy, b)
	}

	sa.Mode, sa.Partner = model.RoomPrivate, b
	sb.Mode, sb.Partner = model.RoomPrivate, a
	return nil
}

// Unpair returns the named session to the public room. The partner is
// reset too, but only if it still points back at username — a partner
// that has since moved to a different pairing or back to public is left
// alone.
func (r *Registry) Unpair(username string) (partner string, partnerReset, wasPrivate bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	if !ok {
		return "", false, false, fmt.Errorf("%w: %s", ErrNotRegistered, username)
	}
	if s.Mode != model.RoomPrivate {
		return "", false, false, nil
	}

	partner = s.Partner
	s.Mode, s.Partner = model.RoomPublic, ""

	if p, ok := r.sessions[partner]; ok && p.Mode == model.RoomPrivate && p.Partner == username {
		p.Mode, p.Partner = model.RoomPublic, ""
		partnerReset = true
	}
	return partner, partnerReset, true, nil
}

// RemoveAndUnpair deletes the session and, if it was in a private pair
// whose partner still points back at it, resets that partner to public.
// Removal and the partner reset share one critical section. Idempotent:
// a second call for the same username reports removed == false.
func (r *Registry) RemoveAndUnpair(username string) (removed bool, mode model.RoomMode, partner string, partnerReset bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	if !ok {
		return false, model.RoomPublic, "", false
	}
	mode, partner = s.Mode, s.Partner
	delete(r.sessions, username)

	if mode == model.RoomPrivate {
		if p, ok := r.sessions[partner]; ok && p.Mode == model.RoomPrivate && p.Partner == username {
			p.Mode, p.Partner = model.RoomPublic, ""
			partnerReset = true
		}
	}
	return true, mode, partner, partnerReset
}

// Remove deletes the session. Idempotent.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
