package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, persona_id, title, message_count, created_at, updated_at`

const messageColumns = `id, session_id, role, content, COALESCE(provider, '') AS provider,
	sequence_number, created_at`

// Store manages sessions and messages in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger.With("component", "session")}
}

// Create starts a new session for a persona. The title defaults to a
// truncated form of the first user message when empty.
func (s *Store) Create(ctx context.Context, personaID uuid.UUID, title string) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (persona_id, title) VALUES ($1, $2)
		 RETURNING `+sessionColumns,
		personaID, title,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("session created", "id", sess.ID, "persona_id", personaID)
	return sess, nil
}

// Get returns a session by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered by recent activity. personaID filters
// when non-nil. limit <= 0 means 50; offset < 0 means 0.
func (s *Store) List(ctx context.Context, personaID *uuid.UUID, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE $1::uuid IS NULL OR persona_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		personaID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and, via FK cascade, its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("session deleted", "id", id)
	return nil
}

// Messages returns a session's messages in sequence order.
// limit <= 0 returns all.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + `
		 FROM session_messages
		 WHERE session_id = $1
		 ORDER BY sequence_number`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// RecentMessages returns the newest n messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, sessionID uuid.UUID, n int32) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM (
		     SELECT `+messageColumns+`
		     FROM session_messages
		     WHERE session_id = $1
		     ORDER BY sequence_number DESC
		     LIMIT $2
		 ) recent
		 ORDER BY sequence_number`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// AppendExchange atomically appends a user turn and the assistant
// reply. The session row is locked FOR UPDATE so concurrent appends to
// the same session serialize and sequence numbers stay gapless and
// strictly increasing.
func (s *Store) AppendExchange(ctx context.Context, sessionID uuid.UUID, ex Exchange) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("transaction rollback failed", "error", rbErr)
		}
	}()

	var title string
	err = tx.QueryRow(ctx,
		`SELECT title FROM sessions WHERE id = $1 FOR UPDATE`, sessionID,
	).Scan(&title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking session: %w", err)
	}

	var maxSeq int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0)
		 FROM session_messages WHERE session_id = $1`, sessionID,
	).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO session_messages (session_id, role, content, sequence_number)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, RoleUser, ex.UserContent, maxSeq+1,
	)
	if err != nil {
		return fmt.Errorf("inserting user message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO session_messages (session_id, role, content, provider, sequence_number)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		sessionID, RoleAssistant, ex.AssistantContent, ex.Provider, maxSeq+2,
	)
	if err != nil {
		return fmt.Errorf("inserting assistant message: %w", err)
	}

	// First exchange titles the session from the user's opening line.
	if title == "" {
		title = deriveTitle(ex.UserContent)
	}

	_, err = tx.Exec(ctx,
		`UPDATE sessions
		 SET message_count = message_count + 2, title = $2, updated_at = now()
		 WHERE id = $1`,
		sessionID, title,
	)
	if err != nil {
		return fmt.Errorf("updating session metadata: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing exchange: %w", err)
	}
	return nil
}

// deriveTitle makes a short session title from the first user message.
func deriveTitle(content string) string {
	const maxLen = 60
	title := strings.Join(strings.Fields(content), " ")
	if len(title) <= maxLen {
		return title
	}
	// Back off to a rune boundary so multibyte input is never torn.
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return strings.TrimSpace(title[:cut]) + "…"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.PersonaID, &sess.Title, &sess.MessageCount,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Provider,
		&m.SequenceNumber, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
