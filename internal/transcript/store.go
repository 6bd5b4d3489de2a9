// Package transcript keeps a local sqlite journal of the conversations this
// client has displayed, so they can be reviewed without the backend. The
// backend stays the source of truth; the journal is overwritten whenever a
// newer copy of a session is saved.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BuyBuddy/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Load for an unknown session
var ErrNotFound = errors.New("transcript not found")

// Summary describes one saved session
type Summary struct {
	SessionID    string
	SavedAt      time.Time
	MessageCount int
	FirstMessage string
}

// Store is the sqlite backed journal
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	saved_at DATETIME,
	message_count INTEGER
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	seq INTEGER,
	message_id TEXT,
	role TEXT,
	content TEXT,
	timestamp DATETIME,
	products TEXT,
	price_comparison TEXT,
	product_message TEXT,
	error TEXT,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);`

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// private in-memory journal.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection also keeps ":memory:"
	// pointing at one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transcript tables: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored copy of sess. Sessions the backend has not
// assigned an id to yet are skipped.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (id, saved_at, message_count) VALUES (?, ?, ?)",
		sess.ID, s.now().UTC(), len(sess.Messages),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for _, msg := range sess.Messages {
		products, comparison, err := encodeAttachments(msg)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, message_id, role, content, timestamp,
				products, price_comparison, product_message, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, msg.Seq, msg.ID, string(msg.Role), msg.Content, msg.Timestamp.UTC(),
			products, comparison, msg.ProductMessage, msg.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("transcript saved", "session_id", sess.ID, "message_count", len(sess.Messages))
	return nil
}

// Load reads a saved session back
func (s *Store) Load(ctx context.Context, sessionID string) (session.Session, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT message_count FROM sessions WHERE id = ?", sessionID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, message_id, role, content, timestamp, products, price_comparison, product_message, error
		FROM messages WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	sess := session.Session{ID: sessionID, Messages: make([]session.Message, 0, count)}
	for rows.Next() {
		var (
			msg                  session.Message
			role                 string
			products, comparison sql.NullString
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &role, &msg.Content, &msg.Timestamp,
			&products, &comparison, &msg.ProductMessage, &msg.Error); err != nil {
			return session.Session{}, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = session.Role(role)
		if err := decodeAttachments(&msg, products, comparison); err != nil {
			return session.Session{}, err
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, fmt.Errorf("failed to read messages: %w", err)
	}

	return sess, nil
}

// List returns the most recently saved sessions first
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.saved_at, s.message_count,
			COALESCE((SELECT m.content FROM messages m
				WHERE m.session_id = s.id AND m.role = 'user'
				ORDER BY m.seq LIMIT 1), '')
		FROM sessions s ORDER BY s.saved_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.SessionID, &sum.SavedAt, &sum.MessageCount, &sum.FirstMessage); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	return summaries, nil
}

func encodeAttachments(msg session.Message) (products, comparison sql.NullString, err error) {
	if len(msg.Products) > 0 {
		data, err := json.Marshal(msg.Products)
		if err != nil {
			return products, comparison, fmt.Errorf("failed to encode products of %s: %w", msg.ID, err)
		}
		products = sql.NullString{String: string(data), Valid: true}
	}
	if msg.PriceComparison != nil {
		data, err := json.Marshal(msg.PriceComparison)
		if err != nil {
			return products, comparison, fmt.Errorf("failed to encode comparison of %s: %w", msg.ID, err)
		}
		comparison = sql.NullString{String: string(data), Valid: true}
	}
	return products, comparison, nil
}

func decodeAttachments(msg *session.Message, products, comparison sql.NullString) error {
	if products.Valid && products.String != "" {
		if err := json.Unmarshal([]byte(products.String), &msg.Products); err != nil {
			return fmt.Errorf("failed to decode products of %s: %w", msg.ID, err)
		}
	}
	if comparison.Valid && comparison.String != "" {
		var pc session.PriceComparison
		if err := json.Unmarshal([]byte(comparison.String), &pc); err != nil {
			return fmt.Errorf("failed to decode comparison of %s: %w", msg.ID, err)
		}
		msg.PriceComparison = &pc
	}
	return nil
}
