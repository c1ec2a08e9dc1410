package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	id "becoming/pkg/domain"
	"becoming/pkg/platform/events"
	txcontext "becoming/pkg/platform/tx"
)

// NotifyChannel is the LISTEN/NOTIFY channel signalled on every append.
// Notifications are delivered on commit, so listeners only wake for events
// that are actually persisted.
const NotifyChannel = "becoming_outbox"

// Store implements events.Store and events.Outbox on the outbox table.
// Appends join the transaction carried in the context when present.
type Store struct {
	db *sqlx.DB
}

// New creates a new PostgreSQL outbox store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type outboxRow struct {
	ID        uuid.UUID      `db:"id"`
	EventType string         `db:"event_type"`
	Topics    pq.StringArray `db:"topics"`
	Payload   []byte         `db:"payload"`
	RequestID sql.NullString `db:"request_id"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r outboxRow) toEvent() events.Event {
	return events.Event{
		ID:        r.ID,
		Name:      r.EventType,
		Topics:    []string(r.Topics),
		Payload:   r.Payload,
		RequestID: r.RequestID.String,
		CreatedAt: r.CreatedAt,
	}
}

// Append writes an event to the outbox and signals listeners.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	exec := s.execer(ctx)
	query := `
		INSERT INTO outbox (id, event_type, topics, payload, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	requestID := sql.NullString{String: event.RequestID, Valid: event.RequestID != ""}
	_, err := exec.ExecContext(ctx, query,
		event.ID,
		event.Name,
		pq.Array(event.Topics),
		[]byte(event.Payload),
		requestID,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, event.Name); err != nil {
		return fmt.Errorf("notify outbox listeners: %w", err)
	}
	return nil
}

// Unpublished returns the oldest events not yet relayed.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]events.Event, error) {
	query := `
		SELECT id, event_type, topics, payload, request_id, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	var rows []outboxRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("query unpublished outbox entries: %w", err)
	}
	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEvent())
	}
	return out, nil
}

// ListByTopic returns every event indexed under account, oldest first.
func (s *Store) ListByTopic(ctx context.Context, account id.AccountID) ([]events.Event, error) {
	query := `
		SELECT id, event_type, topics, payload, request_id, created_at
		FROM outbox
		WHERE $1 = ANY(topics)
		ORDER BY seq
	`
	var rows []outboxRow
	if err := s.db.SelectContext(ctx, &rows, query, account.String()); err != nil {
		return nil, fmt.Errorf("query outbox by topic: %w", err)
	}
	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEvent())
	}
	return out, nil
}

// MarkPublished records that the relay delivered ids.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, eventID := range ids {
		keys[i] = eventID.String()
	}
	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, at, pq.Array(keys)); err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

// PrunePublished deletes delivered entries older than cutoff.
func (s *Store) PrunePublished(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return int(n), nil
}
