// Package ledger keeps the per-user monthly revenue buckets consistent with
// the set of income-status invoices.
//
// Invariant: for every user and month, the bucket amount equals the sum of
// that user's income invoices dated in that month. Each mutation maintains
// the invariant incrementally with a signed delta inside one transaction;
// there is never a full recomputation scan.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fima/internal/core"
)

var (
	// ErrInvoiceNotFound means the referenced invoice does not exist (or is
	// not owned by the caller) at update/delete time.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrBucketMissing means the revenue bucket row for the invoice's month
	// is absent. Buckets are provisioned at registration, so this is a
	// configuration error and the whole operation aborts.
	ErrBucketMissing = errors.New("revenue bucket missing")

	// ErrBucketNegative means applying the delta would drive the bucket
	// below zero, which the invariant forbids.
	ErrBucketNegative = errors.New("revenue bucket would go negative")
)

// InvoiceUpdate carries the editable invoice fields. The date is
// deliberately absent: the bucket month always derives from the stored
// date, and the edit flow does not change dates.
type InvoiceUpdate struct {
	CustomerID string
	Amount     core.Money
	Status     core.InvoiceStatus
	Note       string
}

// Ledger runs the three invoice mutations, each as one atomic transaction
// covering the invoice row and the affected revenue bucket.
type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

const dateLayout = "2006-01-02"

// CreateInvoice persists the invoice and, if it has income status, adds its
// amount to the bucket for (month(date), user). Either both writes commit
// or neither does.
func (l *Ledger) CreateInvoice(ctx context.Context, inv core.Invoice) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, user_id, customer_id, amount_cents, status, date, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.UserID, inv.CustomerID, inv.Amount.Cents, inv.Status,
		inv.Date.Format(dateLayout), inv.Note)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}

	if inv.Contributing() {
		if err := l.adjustBucket(ctx, tx, inv.Date.Month(), inv.UserID, inv.Amount.Cents); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Invoice created",
		"invoice_id", inv.ID,
		"user_id", inv.UserID,
		"status", inv.Status,
		"amount_cents", inv.Amount.Cents,
		"month", inv.Date.Month())
	return nil
}

// UpdateInvoice applies new customer/amount/status/note values to an
// existing invoice and adjusts the bucket by the difference between the
// invoice's previous and new contribution. The previous state is read
// inside the same transaction, so two concurrent updates of one invoice
// cannot both apply a delta computed from the same stale amount.
func (l *Ledger) UpdateInvoice(ctx context.Context, id, userID string, upd InvoiceUpdate) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		oldAmount int64
		oldStatus core.InvoiceStatus
		storedDay string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT amount_cents, status, date FROM invoices WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&oldAmount, &oldStatus, &storedDay)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return fmt.Errorf("read previous invoice state: %w", err)
	}

	// The bucket month comes from the stored date, never from the update
	// payload: the date field is not editable in this flow.
	stored, err := time.Parse(dateLayout, storedDay)
	if err != nil {
		return fmt.Errorf("parse stored date %q: %w", storedDay, err)
	}
	month := int(stored.Month())

	_, err = tx.ExecContext(ctx, `
		UPDATE invoices SET customer_id = ?, amount_cents = ?, status = ?, note = ?
		WHERE id = ? AND user_id = ?`,
		upd.CustomerID, upd.Amount.Cents, upd.Status, upd.Note, id, userID)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}

	delta := contributionDelta(oldStatus, oldAmount, upd.Status, upd.Amount.Cents)
	if delta != 0 {
		if err := l.adjustBucket(ctx, tx, month, userID, delta); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Invoice updated",
		"invoice_id", id,
		"user_id", userID,
		"old_status", oldStatus,
		"new_status", upd.Status,
		"bucket_delta_cents", delta,
		"month", month)
	return nil
}

// DeleteInvoice removes the invoice; if it was contributing, its amount is
// first subtracted from the bucket. Both steps share one transaction.
func (l *Ledger) DeleteInvoice(ctx context.Context, id, userID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		amount    int64
		status    core.InvoiceStatus
		storedDay string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT amount_cents, status, date FROM invoices WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&amount, &status, &storedDay)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return fmt.Errorf("read invoice state: %w", err)
	}

	if status == core.StatusIncome {
		stored, err := time.Parse(dateLayout, storedDay)
		if err != nil {
			return fmt.Errorf("parse stored date %q: %w", storedDay, err)
		}
		if err := l.adjustBucket(ctx, tx, int(stored.Month()), userID, -amount); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invoices WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Invoice deleted",
		"invoice_id", id,
		"user_id", userID,
		"status", status,
		"amount_cents", amount)
	return nil
}

// contributionDelta maps the (old, new) contribution states to the signed
// bucket adjustment:
//
//	income -> not income:  -old
//	not income -> income:  +new
//	income -> income:      new - old
//	otherwise:             0
func contributionDelta(oldStatus core.InvoiceStatus, oldAmount int64, newStatus core.InvoiceStatus, newAmount int64) int64 {
	wasIncome := oldStatus == core.StatusIncome
	isIncome := newStatus == core.StatusIncome
	switch {
	case wasIncome && !isIncome:
		return -oldAmount
	case !wasIncome && isIncome:
		return newAmount
	case wasIncome && isIncome:
		return newAmount - oldAmount
	default:
		return 0
	}
}

// adjustBucket applies delta to one bucket as a single atomic increment.
// The guard in the predicate keeps the bucket from going negative without a
// separate read, and a zero row count distinguishes a missing bucket from a
// forbidden delta.
func (l *Ledger) adjustBucket(ctx context.Context, tx *sql.Tx, month int, userID string, delta int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE revenue SET amount_cents = amount_cents + ?
		WHERE month = ? AND user_id = ? AND amount_cents + ? >= 0`,
		delta, month, userID, delta)
	if err != nil {
		return fmt.Errorf("adjust revenue bucket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust revenue bucket rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revenue WHERE month = ? AND user_id = ?`,
		month, userID).Scan(&exists); err != nil {
		return fmt.Errorf("probe revenue bucket: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: month=%d user=%s", ErrBucketMissing, month, userID)
	}
	return fmt.Errorf("%w: month=%d user=%s delta=%d", ErrBucketNegative, month, userID, delta)
}
