package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tdnguyen/parley/pkg/crypto"
	"github.com/tdnguyen/parley/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// defaultHistoryLimit caps a ListMessages fetch when the filter does not
// name its own limit.
const defaultHistoryLimit = 50

// Store is the SQLite-backed DataStore.
type Store struct {
	db *sql.DB
}

var _ DataStore = (*Store)(nil)

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// WAL for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Avoid "database is locked" under concurrent connection workers
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		username   TEXT    NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 32),
		pass_hash  BLOB    NOT NULL,
		pass_salt  BLOB    NOT NULL,
		created_at TEXT    NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		sender     TEXT    NOT NULL,
		body       TEXT    NOT NULL,
		private_to TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_private ON messages(sender, private_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser registers a new account with a fresh salt.
func (s *Store) CreateUser(username, password string) (*model.User, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash := crypto.HashPassword(password, salt)
	now := time.Now().UTC()

	res, err := s.db.Exec(
		"INSERT INTO users (username, pass_hash, pass_salt, created_at) VALUES (?, ?, ?, ?)",
		username, hash, salt, now.Format(dbTimeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("datastore: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("datastore: create user id: %w", err)
	}
	return &model.User{ID: id, Username: username, CreatedAt: now}, nil
}

// VerifyUser checks a username/password pair against the stored hash.
func (s *Store) VerifyUser(username, password string) (bool, error) {
	var hash, salt []byte
	err := s.db.QueryRow(
		"SELECT pass_hash, pass_salt FROM users WHERE username = ?", username,
	).Scan(&hash, &salt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: verify user: %w", err)
	}
	return crypto.VerifyPassword(password, salt, hash), nil
}

// ChangePassword verifies the old password and swaps in the new one
// inside a single transaction so concurrent changes cannot interleave.
func (s *Store) ChangePassword(username, oldPass, newPass string) (bool, error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return false, fmt.Errorf("datastore: change password: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var hash, salt []byte
	err = tx.QueryRow(
		"SELECT pass_hash, pass_salt FROM users WHERE username = ?", username,
	).Scan(&hash, &salt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: change password: %w", err)
	}
	if !crypto.VerifyPassword(oldPass, salt, hash) {
		return false, nil
	}

	newSalt, err := crypto.GenerateSalt()
	if err != nil {
		return false, err
	}
	newHash := crypto.HashPassword(newPass, newSalt)
	if _, err := tx.Exec(
		"UPDATE users SET pass_hash = ?, pass_salt = ? WHERE username = ?",
		newHash, newSalt, username,
	); err != nil {
		return false, fmt.Errorf("datastore: change password: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("datastore: change password: %w", err)
	}
	return true, nil
}

// AppendMessage stores one chat line.
func (s *Store) AppendMessage(m *model.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		"INSERT INTO messages (sender, body, private_to, created_at) VALUES (?, ?, ?, ?)",
		m.Sender, m.Body, m.PrivateTo, createdAt.Format(dbTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("datastore: append message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	m.CreatedAt = createdAt
	return nil
}

// ListMessages fetches history rows matching the filters, newest-last.
// Only the most recent Limit rows are kept; they come back oldest-first.
func (s *Store) ListMessages(f model.MessageFilters) ([]model.Message, error) {
	var where []string
	var args []any

	if f.PublicOnly {
		where = append(where, "private_to = ''")
	}
	if len(f.Between) == 2 {
		where = append(where, "((sender = ? AND private_to = ?) OR (sender = ? AND private_to = ?))")
		args = append(args, f.Between[0], f.Between[1], f.Between[1], f.Between[0])
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := "SELECT id, sender, body, private_to, created_at FROM messages"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query = "SELECT id, sender, body, private_to, created_at FROM (" +
		query + " ORDER BY id DESC LIMIT ?) ORDER BY id ASC"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("datastore: list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var created string
		if err := rows.Scan(&m.ID, &m.Sender, &m.Body, &m.PrivateTo, &created); err != nil {
			return nil, fmt.Errorf("datastore: scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(dbTimeLayout, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
