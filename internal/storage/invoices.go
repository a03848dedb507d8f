package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fima/internal/core"
)

// InvoicesPerPage is the fixed page size of the invoices table.
const InvoicesPerPage = 6

// InvoiceRow is one row of the invoices table, joined with its customer.
type InvoiceRow struct {
	core.Invoice
	CustomerName  string
	CustomerEmail string
	ImageURL      string
}

const dateLayout = "2006-01-02"

func scanDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

// GetInvoice returns one invoice owned by userID. Reads outside a ledger
// transaction serve the edit form only; the ledger re-reads inside its own
// transaction before mutating.
func (r *Repository) GetInvoice(ctx context.Context, id, userID string) (core.Invoice, error) {
	var inv core.Invoice
	var date string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, customer_id, amount_cents, status, date, note
		FROM invoices WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.Amount.Cents, &inv.Status, &date, &inv.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Date, err = scanDate(date); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

// SearchInvoices returns one page of the user's invoices joined with their
// customers, newest first. The query matches customer name/email and the
// invoice amount, date and status, case-insensitively.
func (r *Repository) SearchInvoices(ctx context.Context, userID, query string, page int) ([]InvoiceRow, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * InvoicesPerPage
	like := "%" + query + "%"

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			i.id, i.user_id, i.customer_id, i.amount_cents, i.status, i.date, i.note,
			c.name, c.email, c.image_url
		FROM invoices i
		JOIN customers c ON i.customer_id = c.id
		WHERE i.user_id = ?
		  AND (c.name LIKE ? COLLATE NOCASE OR
		       c.email LIKE ? COLLATE NOCASE OR
		       CAST(i.amount_cents AS TEXT) LIKE ? OR
		       i.date LIKE ? OR
		       i.status LIKE ? COLLATE NOCASE)
		ORDER BY i.date DESC, i.created_at DESC
		LIMIT ? OFFSET ?`,
		userID, like, like, like, like, like, InvoicesPerPage, offset)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var row InvoiceRow
		var date string
		if err := rows.Scan(&row.ID, &row.UserID, &row.CustomerID, &row.Amount.Cents,
			&row.Status, &date, &row.Note,
			&row.CustomerName, &row.CustomerEmail, &row.ImageURL); err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		if row.Invoice.Date, err = scanDate(date); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountInvoicePages returns how many pages SearchInvoices would yield.
func (r *Repository) CountInvoicePages(ctx context.Context, userID, query string) (int, error) {
	like := "%" + query + "%"
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM invoices i
		JOIN customers c ON i.customer_id = c.id
		WHERE i.user_id = ?
		  AND (c.name LIKE ? COLLATE NOCASE OR
		       c.email LIKE ? COLLATE NOCASE OR
		       CAST(i.amount_cents AS TEXT) LIKE ? OR
		       i.date LIKE ? OR
		       i.status LIKE ? COLLATE NOCASE)`,
		userID, like, like, like, like, like).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	pages := (n + InvoicesPerPage - 1) / InvoicesPerPage
	if pages < 1 {
		pages = 1
	}
	return pages, nil
}

// LatestInvoices returns the five most recent invoices for the dashboard.
func (r *Repository) LatestInvoices(ctx context.Context, userID string) ([]core.LatestInvoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, c.name, c.email, c.image_url, i.amount_cents
		FROM invoices i
		JOIN customers c ON i.customer_id = c.id
		WHERE i.user_id = ?
		ORDER BY i.date DESC, i.created_at DESC
		LIMIT 5`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query latest invoices: %w", err)
	}
	defer rows.Close()

	var out []core.LatestInvoice
	for rows.Next() {
		var li core.LatestInvoice
		if err := rows.Scan(&li.InvoiceID, &li.CustomerName, &li.CustomerEmail,
			&li.ImageURL, &li.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan latest invoice: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// CardData returns the dashboard headline numbers for one user.
func (r *Repository) CardData(ctx context.Context, userID string) (core.CardData, error) {
	var cd core.CardData
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM invoices WHERE user_id = ?),
			(SELECT COUNT(*) FROM customers WHERE user_id = ?),
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN amount_cents ELSE 0 END), 0)
		FROM invoices
		WHERE user_id = ?`,
		userID, userID, userID).
		Scan(&cd.InvoiceCount, &cd.CustomerCount, &cd.TotalPaid.Cents, &cd.TotalPending.Cents)
	if err != nil {
		return core.CardData{}, fmt.Errorf("card data: %w", err)
	}
	return cd, nil
}
