// Package datastore persists accounts and chat history.
package datastore

import (
	"errors"

	"github.com/tdnguyen/parley/pkg/model"
)

// ErrUsernameTaken is returned by CreateUser when the username is
// already registered.
var ErrUsernameTaken = errors.New("datastore: username already taken")

// CredentialStore verifies and maintains account credentials. Password
// hashing is handled inside the store; callers only ever see plaintext
// passwords on their way in.
type CredentialStore interface {
	// CreateUser registers a new account. Fails with ErrUsernameTaken
	// when the username exists.
	CreateUser(username, password string) (*model.User, error)

	// VerifyUser reports whether the username/password pair matches a
	// registered account. An unknown username is a clean false, not an
	// error.
	VerifyUser(username, password string) (bool, error)

	// ChangePassword swaps the password if oldPass matches. Returns
	// false when the old password is wrong or the user is unknown.
	ChangePassword(username, oldPass, newPass string) (bool, error)
}

// HistoryStore records and replays chat lines.
type HistoryStore interface {
	AppendMessage(m *model.Message) error
	ListMessages(f model.MessageFilters) ([]model.Message, error)
}

// DataStore is the persistence surface the server depends on.
// Implementations include the default SQLite store and the in-memory
// store used by tests.
type DataStore interface {
	CredentialStore
	HistoryStore
	Close() error
}
