// Package storage persists the working ledger and goal registry in
// SQLite so a session survives restarts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pisopatrol/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceLedger swaps the stored ledger for the given rows in one
// transaction. A new import always replaces the previous one whole.
func (r *SQLiteRepository) ReplaceLedger(ctx context.Context, txs []core.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (date, amount_cents, category, notes, type, account, goal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, tx := range txs {
		if _, err := stmt.ExecContext(ctx,
			tx.Date.String(), tx.Amount.Cents, tx.Category, tx.Notes,
			string(tx.Type), tx.Account, tx.Goal); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "ledger persisted", "rows", len(txs))
	return nil
}

// LoadLedger reads the stored ledger in date order.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, amount_cents, category, notes, type, account, goal
		FROM transactions ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			dateStr string
			tx      core.Transaction
			typ     string
		)
		if err := rows.Scan(&dateStr, &tx.Amount.Cents, &tx.Category, &tx.Notes,
			&typ, &tx.Account, &tx.Goal); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		tx.Date = core.DateOf(t)
		tx.Type = core.TxType(typ)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// SaveGoal inserts or updates a goal by name.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (name, target_cents, emoji) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET target_cents = excluded.target_cents, emoji = excluded.emoji`,
		g.Name, g.Target.Cents, g.Emoji)
	if err != nil {
		return fmt.Errorf("save goal %q: %w", g.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete goal %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrUnknownGoal
	}
	return nil
}

// ListGoals returns all goals ordered by name.
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, target_cents, emoji FROM goals ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		if err := rows.Scan(&g.Name, &g.Target.Cents, &g.Emoji); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}
