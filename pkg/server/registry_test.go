package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tdnguyen/parley/pkg/model"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&model.Session{Username: "alice"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(&model.Session{Username: "alice"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Count())
	}
}

func TestRegistryRegisterRace(t *testing.T) {
	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(&model.Session{Username: "alice"}) == nil {
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
		t.Fatalf("expected exactly one successful register, got %d", n)
	}
}

func TestRegistryPairSymmetry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "bob", "carol"} {
		if err := r.Register(&model.Session{Username: name, Mode: model.RoomPublic}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := r.Pair("alice", "bob"); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	a, _ := r.Get("alice")
	b, _ := r.Get("bob")
	if a.Mode != model.RoomPrivate || a.Partner != "bob" {
		t.Fatalf("alice not paired: %+v", a)
	}
	if b.Mode != model.RoomPrivate || b.Partner != "alice" {
		t.Fatalf("bob not paired: %+v", b)
	}

	// A busy side refuses the pairing and leaves the other side alone.
	if err := r.Pair("carol", "bob"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	c, _ := r.Get("carol")
	if c.Mode != model.RoomPublic || c.Partner != "" {
		t.Fatalf("carol mutated by refused pairing: %+v", c)
	}

	if err := r.Pair("carol", "ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegistryUnpair(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "bob"} {
		if err := r.Register(&model.Session{Username: name, Mode: model.RoomPublic}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := r.Pair("alice", "bob"); err != nil {
		t.Fatalf("Pair: %v", err)
	}

	partner, partnerReset, wasPrivate, err := r.Unpair("alice")
	if err != nil || !wasPrivate || !partnerReset || partner != "bob" {
		t.Fatalf("Unpair: partner=%q reset=%v private=%v err=%v", partner, partnerReset, wasPrivate, err)
	}
	for _, name := range []string{"alice", "bob"} {
		s, _ := r.Get(name)
		if s.Mode != model.RoomPublic || s.Partner != "" {
			t.Fatalf("%s not back in public: %+v", name, s)
		}
	}

	// Already public: a no-op, not an error.
	_, _, wasPrivate, err = r.Unpair("alice")
	if err != nil || wasPrivate {
		t.Fatalf("Unpair on public session: private=%v err=%v", wasPrivate, err)
	}
}

func TestRegistryUpdateRoom(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&model.Session{Username: "alice", Mode: model.RoomPublic}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.UpdateRoom("alice", model.RoomPrivate, "bob"); err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	a, _ := r.Get("alice")
	if a.Mode != model.RoomPrivate || a.Partner != "bob" {
		t.Fatalf("room not updated: %+v", a)
	}

	if err := r.UpdateRoom("ghost", model.RoomPublic, ""); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegistryRemoveAndUnpair(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "bob"} {
		if err := r.Register(&model.Session{Username: name, Mode: model.RoomPublic}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := r.Pair("alice", "bob"); err != nil {
		t.Fatalf("Pair: %v", err)
	}

	removed, mode, partner, partnerReset := r.RemoveAndUnpair("alice")
	if !removed || mode != model.RoomPrivate || partner != "bob" || !partnerReset {
		t.Fatalf("RemoveAndUnpair: removed=%v mode=%v partner=%q reset=%v",
			removed, mode, partner, partnerReset)
	}
	if _, ok := r.Get("alice"); ok {
		t.Fatal("alice still registered after removal")
	}
	b, _ := r.Get("bob")
	if b.Mode != model.RoomPublic || b.Partner != "" {
		t.Fatalf("bob not reset: %+v", b)
	}

	// Second removal for the same name reports nothing removed.
	removed, _, _, _ = r.RemoveAndUnpair("alice")
	if removed {
		t.Fatal("second RemoveAndUnpair reported removed")
	}
}

func TestRegistrySnapshotOrdered(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"carol", "alice", "bob"} {
		if err := r.Register(&model.Session{Username: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	var got []string
	for _, s := range r.Snapshot() {
		got = append(got, s.Username)
	}
	want := fmt.Sprint([]string{"alice", "bob", "carol"})
	if fmt.Sprint(got) != want {
		t.Fatalf("snapshot order: got %v", got)
	}
}
