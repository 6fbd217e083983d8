// Package storage is the gateway between the transaction service and the
// relational store. Every statement is parameterized; caller values never
// reach the SQL text.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// Repository persists transactions. Missing ids are reported as
// *core.NotFoundError; every other error is a store failure.
type Repository interface {
	Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	Update(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error)
	Delete(ctx context.Context, id int64) (core.Transaction, error)
	Summarize(ctx context.Context, userID string) (core.Summary, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	sqliteColumns = `id, user_id, title, amount_cents, category, created_at`

	sqliteInsert = `INSERT INTO transactions (user_id, title, amount_cents, category, created_at)
VALUES (?, ?, ?, ?, COALESCE(?, date('now')))
RETURNING ` + sqliteColumns

	sqliteListByUser = `SELECT ` + sqliteColumns + `
FROM transactions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC`

	sqliteUpdate = `UPDATE transactions
SET title = COALESCE(?, title),
    amount_cents = COALESCE(?, amount_cents),
    category = COALESCE(?, category)
WHERE id = ?
RETURNING ` + sqliteColumns

	sqliteDelete = `DELETE FROM transactions WHERE id = ? RETURNING ` + sqliteColumns

	sqliteSummary = `SELECT
    COALESCE(SUM(amount_cents), 0),
    COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN amount_cents < 0 THEN amount_cents ELSE 0 END), 0)
FROM transactions
WHERE user_id = ?`
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath)

	return &SQLiteRepository{db: db}, nil
}

func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	var createdAt any
	if !n.CreatedAt.IsZero() {
		createdAt = n.CreatedAt.String()
	}

	row := r.db.QueryRowContext(ctx, sqliteInsert, n.UserID, n.Title, n.Amount.Cents, n.Category, createdAt)
	t, err := scanSQLite(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", t.ID, "user_id", t.UserID)
	return t, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, sqliteListByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanSQLite(rows)
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

func (r *SQLiteRepository) Update(ctx context.Context, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	var title, category sql.NullString
	var amount sql.NullInt64
	if patch.Title != nil {
		title = sql.NullString{String: *patch.Title, Valid: true}
	}
	if patch.Category != nil {
		category = sql.NullString{String: *patch.Category, Valid: true}
	}
	if patch.Amount != nil {
		amount = sql.NullInt64{Int64: patch.Amount.Cents, Valid: true}
	}

	t, err := scanSQLite(r.db.QueryRowContext(ctx, sqliteUpdate, title, amount, category, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanSQLite(r.db.QueryRowContext(ctx, sqliteDelete, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Summarize(ctx context.Context, userID string) (core.Summary, error) {
	var s core.Summary
	err := r.db.QueryRowContext(ctx, sqliteSummary, userID).
		Scan(&s.Balance.Cents, &s.Income.Cents, &s.Expenses.Cents)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Amount.Cents, &t.Category, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	t.CreatedAt = d
	return t, nil
}
