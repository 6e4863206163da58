package datastore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tdnguyen/parley/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "parley_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndVerifyUser(t *testing.T) {
	s := newTestStore(t)

	u, err := s.CreateUser("alice", "secret123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 || u.Username != "alice" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}

	ok, err := s.VerifyUser("alice", "secret123")
	if err != nil || !ok {
		t.Fatalf("VerifyUser correct password: ok=%v err=%v", ok, err)
	}
	ok, err = s.VerifyUser("alice", "wrong")
	if err != nil || ok {
		t.Fatalf("VerifyUser wrong password: ok=%v err=%v", ok, err)
	}
	ok, err = s.VerifyUser("nobody", "secret123")
	if err != nil || ok {
		t.Fatalf("VerifyUser unknown user: ok=%v err=%v", ok, err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("alice", "secret123"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := s.CreateUser("alice", "other-pass")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateUser("alice", "oldpass1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ok, err := s.ChangePassword("alice", "wrongold", "newpass1")
	if err != nil || ok {
		t.Fatalf("ChangePassword with wrong old: ok=%v err=%v", ok, err)
	}
	ok, err = s.ChangePassword("nobody", "oldpass1", "newpass1")
	if err != nil || ok {
		t.Fatalf("ChangePassword unknown user: ok=%v err=%v", ok, err)
	}

	ok, err = s.ChangePassword("alice", "oldpass1", "newpass1")
	if err != nil || !ok {
		t.Fatalf("ChangePassword: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.VerifyUser("alice", "oldpass1"); ok {
		t.Fatal("old password still valid")
	}
	if ok, _ := s.VerifyUser("alice", "newpass1"); !ok {
		t.Fatal("new password not valid")
	}
}

func TestAppendAndListMessages(t *testing.T) {
	s := newTestStore(t)

	seed := []model.Message{
		{Sender: "alice", Body: "hello room"},
		{Sender: "bob", Body: "psst", PrivateTo: "alice"},
		{Sender: "alice", Body: "heard you", PrivateTo: "bob"},
		{Sender: "carol", Body: "anyone here?"},
		{Sender: "carol", Body: "secret", PrivateTo: "dave"},
	}
	for i := range seed {
		if err := s.AppendMessage(&seed[i]); err != nil {
			t.Fatalf("AppendMessage(%d): %v", i, err)
		}
		if seed[i].ID == 0 {
			t.Fatalf("AppendMessage(%d) did not assign an ID", i)
		}
	}

	ignore := cmpopts.IgnoreFields(model.Message{}, "ID", "CreatedAt")

	public, err := s.ListMessages(model.MessageFilters{PublicOnly: true})
	if err != nil {
		t.Fatalf("ListMessages public: %v", err)
	}
	wantPublic := []model.Message{
		{Sender: "alice", Body: "hello room"},
		{Sender: "carol", Body: "anyone here?"},
	}
	if diff := cmp.Diff(wantPublic, public, ignore); diff != "" {
		t.Fatalf("public history mismatch (-want +got):\n%s", diff)
	}

	// Between matches both directions of the pair and nothing else.
	private, err := s.ListMessages(model.MessageFilters{Between: []string{"alice", "bob"}})
	if err != nil {
		t.Fatalf("ListMessages between: %v", err)
	}
	wantPrivate := []model.Message{
		{Sender: "bob", Body: "psst", PrivateTo: "alice"},
		{Sender: "alice", Body: "heard you", PrivateTo: "bob"},
	}
	if diff := cmp.Diff(wantPrivate, private, ignore); diff != "" {
		t.Fatalf("private history mismatch (-want +got):\n%s", diff)
	}
}

func TestListMessagesLimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	for _, body := range []string{"one", "two", "three", "four"} {
		if err := s.AppendMessage(&model.Message{Sender: "alice", Body: body}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.ListMessages(model.MessageFilters{PublicOnly: true, Limit: 2})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 2 || got[0].Body != "three" || got[1].Body != "four" {
		t.Fatalf("expected newest two oldest-first, got %+v", got)
	}
}

func TestAppendMessageRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendMessage(&model.Message{Sender: "alice", Body: "  "}); err == nil {
		t.Fatal("empty body accepted")
	}
}
