package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	"becoming/pkg/platform/sentinel"
)

// PostgresStore reads the record from PostgreSQL. Mutations go through
// PostgresTx inside a caller-managed transaction.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the record administered by admin unless one already exists.
// An existing record keeps its admin and owner.
func (s *PostgresStore) Init(ctx context.Context, admin id.AccountID, now time.Time) error {
	query := `
		INSERT INTO record_store (id, admin, created_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, admin.String(), now); err != nil {
		return fmt.Errorf("init record store: %w", err)
	}
	return nil
}

// Load reads the record and its milestones from one snapshot.
func (s *PostgresStore) Load(ctx context.Context) (*models.Record, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	record, err := loadRecord(ctx, tx, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit read: %w", err)
	}
	return record, nil
}

// PostgresTx mutates the record inside tx.
type PostgresTx struct {
	tx *sqlx.Tx
}

func NewPostgresTx(tx *sqlx.Tx) *PostgresTx {
	return &PostgresTx{tx: tx}
}

// Load locks the record row until the transaction ends.
func (s *PostgresTx) Load(ctx context.Context) (*models.Record, error) {
	return loadRecord(ctx, s.tx, true)
}

func (s *PostgresTx) BindOwner(ctx context.Context, owner id.AccountID) error {
	query := `UPDATE record_store SET owner = $1 WHERE id = 1 AND owner IS NULL`
	res, err := s.tx.ExecContext(ctx, query, owner.String())
	if err != nil {
		return fmt.Errorf("bind owner: %w", err)
	}
	return expectOneRow(res, sentinel.ErrConflict)
}

func (s *PostgresTx) AppendMilestone(ctx context.Context, m models.Milestone) error {
	query := `
		INSERT INTO milestones (id, title, proof_hash, description, category, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.tx.ExecContext(ctx, query,
		int64(m.ID),
		textBytes(m.Title),
		m.ProofHash,
		nullBytes(m.Description),
		nullBytes(m.Category),
		m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append milestone: %w", err)
	}
	return expectOneRow(res, sentinel.ErrConflict)
}

func (s *PostgresTx) SetAdmin(ctx context.Context, admin id.AccountID) error {
	res, err := s.tx.ExecContext(ctx, `UPDATE record_store SET admin = $1 WHERE id = 1`, admin.String())
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return expectOneRow(res, sentinel.ErrNotFound)
}

type recordRow struct {
	Owner     sql.NullString `db:"owner"`
	Admin     string         `db:"admin"`
	CreatedAt time.Time      `db:"created_at"`
}

type milestoneRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	ProofHash   string         `db:"proof_hash"`
	Description sql.NullString `db:"description"`
	Category    sql.NullString `db:"category"`
	RecordedAt  time.Time      `db:"recorded_at"`
}

func loadRecord(ctx context.Context, q sqlx.QueryerContext, forUpdate bool) (*models.Record, error) {
	query := `SELECT owner, admin, created_at FROM record_store WHERE id = 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row recordRow
	if err := sqlx.GetContext(ctx, q, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	admin, err := id.ParseAccountID(row.Admin)
	if err != nil {
		return nil, fmt.Errorf("decode admin: %w", err)
	}
	record := &models.Record{Admin: admin, CreatedAt: row.CreatedAt}
	if row.Owner.Valid {
		owner, err := id.ParseAccountID(row.Owner.String)
		if err != nil {
			return nil, fmt.Errorf("decode owner: %w", err)
		}
		record.Owner = &owner
	}

	var rows []milestoneRow
	milestoneQuery := `
		SELECT id, title, proof_hash, description, category, recorded_at
		FROM milestones
		ORDER BY id
	`
	if err := sqlx.SelectContext(ctx, q, &rows, milestoneQuery); err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	for _, r := range rows {
		record.Milestones = append(record.Milestones, models.Milestone{
			ID:          uint32(r.ID),
			Title:       r.Title,
			ProofHash:   r.ProofHash,
			Description: fromNullString(r.Description),
			Category:    fromNullString(r.Category),
			Timestamp:   r.RecordedAt,
		})
	}
	return record, nil
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

// Free text is stored as BYTEA so any byte, NUL included, round-trips.
func textBytes(s string) []byte {
	return append([]byte{}, s...)
}

func nullBytes(s *string) any {
	if s == nil {
		return nil
	}
	return textBytes(*s)
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
