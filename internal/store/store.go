// Package store provides SQLite-backed persistence for the assistant:
// the user registry with biometric records, per-user and global chat
// history, and the single active session.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Message is one chat turn, ordered by creation time.
type Message struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// User is one registered account: a face embedding plus a voice password.
type User struct {
	Username  string
	Face      []float32
	Password  string
	CreatedAt time.Time
}

var ErrUserExists = errors.New("username already registered")

type Store struct {
	db *sql.DB
}

// Open creates the database if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		face BLOB NOT NULL,
		password TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(username, created_at);

	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		username TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RegisterUser stores a new account. ErrUserExists when the username is
// taken.
func (s *Store) RegisterUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, face, password, created_at) VALUES (?, ?, ?, ?)`,
		u.Username, encodeEmbedding(u.Face), u.Password, time.Now().UTC())
	if err != nil {
		var exists int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, u.Username)
		if scanErr := row.Scan(&exists); scanErr == nil && exists > 0 {
			return ErrUserExists
		}
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// LookupUser returns the stored record, or (nil, nil) if no such user.
func (s *Store) LookupUser(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, face, password, created_at FROM users WHERE username = ?`, username)

	var u User
	var face []byte
	err := row.Scan(&u.Username, &face, &u.Password, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	u.Face = decodeEmbedding(face)
	return &u, nil
}

func (s *Store) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// AppendMessage records one chat turn. An empty username is the global
// scope used when nobody is logged in.
func (s *Store) AppendMessage(ctx context.Context, username, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, username, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), username, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// History returns the scoped chat log oldest-first. A read failure is
// treated as an empty history by callers.
func (s *Store) History(ctx context.Context, username string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE username = ? ORDER BY created_at, id`,
		username)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ActiveUser returns the logged-in username, or "" when nobody is.
func (s *Store) ActiveUser(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT username FROM session WHERE id = 1`)
	var u string
	err := row.Scan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("active user: %w", err)
	}
	return u, nil
}

func (s *Store) SetActiveUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, username) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username`, username)
	if err != nil {
		return fmt.Errorf("set active user: %w", err)
	}
	return nil
}

func (s *Store) ClearActiveUser(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("clear active user: %w", err)
	}
	return nil
}

func encodeEmbedding(v []float32) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(v)*4))
	for _, f := range v {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func decodeEmbedding(b []byte) []float32 {
	v := make([]float32, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		v = append(v, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
	}
	return v
}
