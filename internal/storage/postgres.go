package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Amounts live in a DECIMAL(10,2) column; the statements convert to and
// from integer cents so no float ever touches a value.
const (
	pgColumns = `id, user_id, title, (amount * 100)::bigint, category, created_at`

	pgInsert = `INSERT INTO transactions (user_id, title, amount, category, created_at)
VALUES ($1, $2, $3::bigint::numeric / 100, $4, COALESCE($5::date, CURRENT_DATE))
RETURNING ` + pgColumns

	pgListByUser = `SELECT ` + pgColumns + `
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`

	pgUpdate = `UPDATE transactions
SET title = COALESCE($1, title),
    amount = COALESCE($2::bigint::numeric / 100, amount),
    category = COALESCE($3, category)
WHERE id = $4
RETURNING ` + pgColumns

	pgDelete = `DELETE FROM transactions WHERE id = $1 RETURNING ` + pgColumns

	pgSummary = `SELECT
    COALESCE(SUM(amount * 100), 0)::bigint,
    COALESCE(SUM(CASE WHEN amount > 0 THEN amount * 100 ELSE 0 END), 0)::bigint,
    COALESCE(SUM(CASE WHEN amount < 0 THEN amount * 100 ELSE 0 END), 0)::bigint
FROM transactions
WHERE user_id = $1`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository connects a pool to databaseURL and applies pending
// migrations.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Postgres repository ready",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	var createdAt *time.Time
	if !n.CreatedAt.IsZero() {
		createdAt = &n.CreatedAt.Time
	}

	row := r.pool.QueryRow(ctx, pgInsert, n.UserID, n.Title, n.Amount.Cents, n.Category, createdAt)
	t, err := scanPostgres(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, pgListByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	var amount *int64
	if patch.Amount != nil {
		amount = &patch.Amount.Cents
	}

	t, err := scanPostgres(r.pool.QueryRow(ctx, pgUpdate, patch.Title, amount, patch.Category, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanPostgres(r.pool.QueryRow(ctx, pgDelete, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Summarize(ctx context.Context, userID string) (core.Summary, error) {
	var s core.Summary
	err := r.pool.QueryRow(ctx, pgSummary, userID).
		Scan(&s.Balance.Cents, &s.Income.Cents, &s.Expenses.Cents)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return s, nil
}

func scanPostgres(row pgx.Row) (core.Transaction, error) {
	var (
		t         core.Transaction
		createdAt time.Time
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Amount.Cents, &t.Category, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = core.DateOf(createdAt)
	return t, nil
}
