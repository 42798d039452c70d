package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the single source of truth for users, transactions,
// limits and assistant memory.
type SQLiteRepository struct {
	db *sql.DB
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
}

// TxFilter narrows ListTransactions. Zero values mean "no filter".
type TxFilter struct {
	Kind  core.TransactionKind
	Month string // YYYY-MM
	Limit int
}

var (
	ErrUserExists   = errors.New("username already registered")
	ErrUserNotFound = errors.New("user not found")
)

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

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	// Serialize writers so the balance-guarded insert sees a stable ledger.
	db.SetMaxOpenConns(1)

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

// ---- users ----

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	var emailVal any
	if email != "" {
		emailVal = email
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
		username, passwordHash, emailVal)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, COALESCE(email, '') FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ---- transactions ----

// CreateTransaction persists a ledger entry and returns its ID. For expenses
// the balance check and the insert run inside one store transaction, closing
// the window where two concurrent submissions could each pass the check.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if t.Kind == core.Expense {
		income, expense, err := sumKinds(ctx, tx, t.OwnerID, "")
		if err != nil {
			return 0, err
		}
		balance := income - expense
		if balance-t.Amount.Cents < 0 {
			return 0, &core.BalanceError{
				Balance:   core.Money{Cents: balance},
				Attempted: t.Amount,
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, category, amount_cents, note, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.OwnerID, string(t.Kind), t.Category, t.Amount.Cents, t.Note, t.Date)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"owner_id", t.OwnerID,
		"type", string(t.Kind),
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"date", t.Date)
	return id, nil
}

// DeleteTransaction removes the caller's own row. Deleting a missing or
// foreign row is a no-op, mirroring idempotent delete semantics.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64, f TxFilter) ([]core.Transaction, error) {
	query := `SELECT id, user_id, type, category, amount_cents, note, date
	          FROM transactions WHERE user_id = ?`
	args := []any{ownerID}

	if f.Kind.Valid() {
		query += ` AND type = ?`
		args = append(args, string(f.Kind))
	}
	if f.Month != "" {
		query += ` AND date LIKE ?`
		args = append(args, f.Month+"-%")
	}
	query += ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var kind string
		if err := rows.Scan(&t.ID, &t.OwnerID, &kind, &t.Category, &t.Amount.Cents, &t.Note, &t.Date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Kind = core.TransactionKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- aggregation ----

// Summary recomputes the derived view from the ledger. A non-empty month
// filters totals and the category breakdown; the trend always spans the six
// most recent months with data.
func (r *SQLiteRepository) Summary(ctx context.Context, ownerID int64, month string) (core.Summary, error) {
	var s core.Summary

	income, expense, err := sumKinds(ctx, r.db, ownerID, month)
	if err != nil {
		return s, err
	}
	s.Income = core.Money{Cents: income}
	s.Expense = core.Money{Cents: expense}
	s.Balance = core.Money{Cents: income - expense}

	catQuery := `SELECT category, SUM(amount_cents) AS total
	             FROM transactions
	             WHERE user_id = ? AND type = 'expense'`
	catArgs := []any{ownerID}
	if month != "" {
		catQuery += ` AND date LIKE ?`
		catArgs = append(catArgs, month+"-%")
	}
	catQuery += ` GROUP BY category ORDER BY total DESC, category ASC`

	rows, err := r.db.QueryContext(ctx, catQuery, catArgs...)
	if err != nil {
		return s, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return s, fmt.Errorf("scan category total: %w", err)
		}
		s.Categories = append(s.Categories, ct)
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	trendRows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month,
		       SUM(CASE WHEN type = 'income'  THEN amount_cents ELSE 0 END) AS income,
		       SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END) AS expense
		FROM transactions
		WHERE user_id = ?
		GROUP BY month
		ORDER BY month DESC
		LIMIT 6`, ownerID)
	if err != nil {
		return s, fmt.Errorf("monthly trend: %w", err)
	}
	defer trendRows.Close()
	var trend []core.MonthFlow
	for trendRows.Next() {
		var mf core.MonthFlow
		if err := trendRows.Scan(&mf.Month, &mf.Income.Cents, &mf.Expense.Cents); err != nil {
			return s, fmt.Errorf("scan trend row: %w", err)
		}
		trend = append(trend, mf)
	}
	if err := trendRows.Err(); err != nil {
		return s, err
	}
	// Query returns newest first; the trend reads oldest first.
	for i := len(trend) - 1; i >= 0; i-- {
		s.Trend = append(s.Trend, trend[i])
	}

	return s, nil
}

// Months returns the distinct months with data, newest first.
func (r *SQLiteRepository) Months(ctx context.Context, ownerID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT substr(date, 1, 7) AS m
		FROM transactions WHERE user_id = ? ORDER BY m DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- limits ----

// UpsertLimit replaces any previous limit for (owner, category).
func (r *SQLiteRepository) UpsertLimit(ctx context.Context, l core.CategoryLimit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO limits (user_id, category, monthly_limit_cents)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, category)
		DO UPDATE SET monthly_limit_cents = excluded.monthly_limit_cents`,
		l.OwnerID, l.Category, l.Monthly.Cents)
	if err != nil {
		return fmt.Errorf("upsert limit: %w", err)
	}
	return nil
}

// GetLimit returns the configured limit and whether one exists.
func (r *SQLiteRepository) GetLimit(ctx context.Context, ownerID int64, category string) (core.CategoryLimit, bool, error) {
	l := core.CategoryLimit{OwnerID: ownerID, Category: category}
	err := r.db.QueryRowContext(ctx,
		`SELECT monthly_limit_cents FROM limits WHERE user_id = ? AND category = ?`,
		ownerID, category).Scan(&l.Monthly.Cents)
	if err == sql.ErrNoRows {
		return l, false, nil
	}
	if err != nil {
		return l, false, fmt.Errorf("get limit: %w", err)
	}
	return l, true, nil
}

func (r *SQLiteRepository) ListLimits(ctx context.Context, ownerID int64) ([]core.CategoryLimit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, monthly_limit_cents FROM limits WHERE user_id = ? ORDER BY category`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list limits: %w", err)
	}
	defer rows.Close()
	var out []core.CategoryLimit
	for rows.Next() {
		l := core.CategoryLimit{OwnerID: ownerID}
		if err := rows.Scan(&l.Category, &l.Monthly.Cents); err != nil {
			return nil, fmt.Errorf("scan limit: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CategoryMonthExpense sums expenses for one category within one month.
func (r *SQLiteRepository) CategoryMonthExpense(ctx context.Context, ownerID int64, category, month string) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE user_id = ? AND type = 'expense' AND category = ? AND date LIKE ?`,
		ownerID, category, month+"-%").Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("category month expense: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ---- assistant memory ----

// UpsertNote stores a memory note. Re-inserting identical content for the
// same (owner, tag) is a no-op, keeping exactly one row.
func (r *SQLiteRepository) UpsertNote(ctx context.Context, n core.MemoryNote) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_memory (user_id, tag, content) VALUES (?, ?, ?)
		ON CONFLICT(user_id, tag, content) DO NOTHING`,
		n.OwnerID, n.Tag, n.Content)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

// ListNotes returns note contents for one tag in insertion order.
func (r *SQLiteRepository) ListNotes(ctx context.Context, ownerID int64, tag string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT content FROM ai_memory WHERE user_id = ? AND tag = ? ORDER BY id`,
		ownerID, tag)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllNotes returns every note for the owner ordered by tag then insertion.
func (r *SQLiteRepository) AllNotes(ctx context.Context, ownerID int64) ([]core.MemoryNote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag, content FROM ai_memory WHERE user_id = ? ORDER BY tag, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("all notes: %w", err)
	}
	defer rows.Close()
	var out []core.MemoryNote
	for rows.Next() {
		n := core.MemoryNote{OwnerID: ownerID}
		if err := rows.Scan(&n.Tag, &n.Content); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// querier lets sumKinds run against the pool or an open transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumKinds(ctx context.Context, q querier, ownerID int64, month string) (income, expense int64, err error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'income'  THEN amount_cents ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM transactions WHERE user_id = ?`
	args := []any{ownerID}
	if month != "" {
		query += ` AND date LIKE ?`
		args = append(args, month+"-%")
	}
	if err := q.QueryRowContext(ctx, query, args...).Scan(&income, &expense); err != nil {
		return 0, 0, fmt.Errorf("sum transactions: %w", err)
	}
	return income, expense, nil
}
