package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fima/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a point read matches no row.
var ErrNotFound = errors.New("record not found")

// Repository is the SQLite-backed store for everything except the revenue
// consistency routine, which runs its own transactions via DB().
type Repository struct {
	db *sql.DB
}

// NewRepository opens (and migrates) the SQLite database at dbPath.
// Transactions are opened with an immediate write lock so that concurrent
// mutations serialize at BEGIN instead of failing at first write.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for the ledger's transactions.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// CreateUser inserts the user and provisions the twelve revenue buckets in
// one transaction. A user without a full set of buckets is a configuration
// error the ledger treats as fatal, so the two must not be separable.
func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	for month := 1; month <= 12; month++ {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO revenue (month, user_id, amount_cents) VALUES (?, ?, 0)`,
			month, u.ID); err != nil {
			return fmt.Errorf("provision revenue bucket %d: %w", month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "email", u.Email)
	return nil
}

// GetUserByEmail looks a user up for login.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUser returns the user row by id.
func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists reports whether a user with the given email is registered.
func (r *Repository) UserExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return n > 0, nil
}

// UpdateUserSettings updates name, email and password hash for the user.
func (r *Repository) UpdateUserSettings(ctx context.Context, u core.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ? WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, u.ID)
	if err != nil {
		return fmt.Errorf("update user settings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "User settings updated", "user_id", u.ID)
	return nil
}

// RevenueByUser returns the twelve buckets in month order.
func (r *Repository) RevenueByUser(ctx context.Context, userID string) ([]core.MonthRevenue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, amount_cents FROM revenue WHERE user_id = ? ORDER BY month`, userID)
	if err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	defer rows.Close()

	var out []core.MonthRevenue
	for rows.Next() {
		var mr core.MonthRevenue
		if err := rows.Scan(&mr.Month, &mr.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		out = append(out, mr)
	}
	return out, rows.Err()
}

// BucketAmount returns the current total for one bucket.
func (r *Repository) BucketAmount(ctx context.Context, month int, userID string) (core.Money, error) {
	var m core.Money
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents FROM revenue WHERE month = ? AND user_id = ?`, month, userID).
		Scan(&m.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, ErrNotFound
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get bucket amount: %w", err)
	}
	return m, nil
}

// Device is one entry of the settings page device list.
type Device struct {
	ID        int64
	UserID    string
	Name      string
	LastLogin time.Time
}

// ListDevices returns the devices recorded for a user.
func (r *Repository) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, device_name, last_login FROM devices WHERE user_id = ? ORDER BY last_login DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.LastLogin); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddDevice records a login device for the user.
func (r *Repository) AddDevice(ctx context.Context, userID, deviceName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (user_id, device_name, last_login) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		userID, deviceName)
	if err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	return nil
}
