// Package store provides an in-memory DataStore implementation for
// tests. It mirrors the SQLite store's validation and error behavior.
package store

import (
	"sync"
	"time"

	"github.com/tdnguyen/parley/pkg/crypto"
	"github.com/tdnguyen/parley/pkg/datastore"
	"github.com/tdnguyen/parley/pkg/model"
)

const defaultHistoryLimit = 50

// MemoryStore is a map-backed datastore.DataStore.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextUserID    int64
	nextMessageID int64

	users    map[string]*memoryUser
	messages []model.Message
}

type memoryUser struct {
	id        int64
	username  string
	hash      []byte
	salt      []byte
	createdAt time.Time
}

var _ datastore.DataStore = (*MemoryStore)(nil)

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:           now,
		nextUserID:    1,
		nextMessageID: 1,
		users:         make(map[string]*memoryUser),
	}
}

func (s *MemoryStore) Close() error { return nil }

// CreateUser registers an account, failing on duplicate usernames.
func (s *MemoryStore) CreateUser(username, password string) (*model.User, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, datastore.ErrUsernameTaken
	}
	u := &memoryUser{
		id:        s.nextUserID,
		username:  username,
		hash:      crypto.HashPassword(password, salt),
		salt:      salt,
		createdAt: s.now(),
	}
	s.nextUserID++
	s.users[username] = u
	return &model.User{ID: u.id, Username: u.username, CreatedAt: u.createdAt}, nil
}

// VerifyUser checks a username/password pair.
func (s *MemoryStore) VerifyUser(username, password string) (bool, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return crypto.VerifyPassword(password, u.salt, u.hash), nil
}

// ChangePassword swaps the password when oldPass matches.
func (s *MemoryStore) ChangePassword(username, oldPass, newPass string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return false, nil
	}
	if !crypto.VerifyPassword(oldPass, u.salt, u.hash) {
		return false, nil
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return false, err
	}
	u.salt = salt
	u.hash = crypto.HashPassword(newPass, salt)
	return true, nil
}

// AppendMessage stores one chat line.
func (s *MemoryStore) AppendMessage(m *model.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextMessageID
	s.nextMessageID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.messages = append(s.messages, *m)
	return nil
}

// ListMessages fetches matching rows, newest-last, capped at the limit.
func (s *MemoryStore) ListMessages(f model.MessageFilters) ([]model.Message, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	for _, m := range s.messages {
		if f.PublicOnly && m.PrivateTo != "" {
			continue
		}
		if len(f.Between) == 2 {
			a, b := f.Between[0], f.Between[1]
			if !(m.Sender == a && m.PrivateTo == b) && !(m.Sender == b && m.PrivateTo == a) {
				continue
			}
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
