package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fima/internal/core"
)

// CreateCustomer inserts a customer owned by its UserID.
func (r *Repository) CreateCustomer(ctx context.Context, c core.Customer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (id, user_id, name, email, image_url) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.ImageURL)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	slog.InfoContext(ctx, "Customer created", "customer_id", c.ID, "user_id", c.UserID)
	return nil
}

// UpdateCustomer rewrites name, email and image URL. Ownership is part of
// the predicate so one user can never touch another user's customer.
func (r *Repository) UpdateCustomer(ctx context.Context, c core.Customer) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, email = ?, image_url = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Email, c.ImageURL, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomer removes a customer owned by userID.
func (r *Repository) DeleteCustomer(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM customers WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Customer deleted", "customer_id", id, "user_id", userID)
	return nil
}

// GetCustomer returns one customer owned by userID.
func (r *Repository) GetCustomer(ctx context.Context, id, userID string) (core.Customer, error) {
	var c core.Customer
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, image_url FROM customers WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Customer{}, ErrNotFound
	}
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// ListCustomers returns the user's customers ordered by name, for form
// select boxes.
func (r *Repository) ListCustomers(ctx context.Context, userID string) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, email, image_url FROM customers WHERE user_id = ? ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchCustomers returns customers matching query (name or email,
// case-insensitive) with per-customer invoice aggregates.
func (r *Repository) SearchCustomers(ctx context.Context, userID, query string) ([]core.CustomerSummary, error) {
	like := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			c.id, c.user_id, c.name, c.email, c.image_url,
			COUNT(i.id) AS total_invoices,
			COALESCE(SUM(CASE WHEN i.status = 'pending' THEN i.amount_cents ELSE 0 END), 0) AS total_pending,
			COALESCE(SUM(CASE WHEN i.status = 'paid' THEN i.amount_cents ELSE 0 END), 0) AS total_paid
		FROM customers c
		LEFT JOIN invoices i ON c.id = i.customer_id
		WHERE c.user_id = ?
		  AND (c.name LIKE ? COLLATE NOCASE OR c.email LIKE ? COLLATE NOCASE)
		GROUP BY c.id, c.user_id, c.name, c.email, c.image_url
		ORDER BY c.name`,
		userID, like, like)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	var out []core.CustomerSummary
	for rows.Next() {
		var cs core.CustomerSummary
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Name, &cs.Email, &cs.ImageURL,
			&cs.TotalInvoices, &cs.TotalPending.Cents, &cs.TotalPaid.Cents); err != nil {
			return nil, fmt.Errorf("scan customer summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// CustomerStats returns the invoice count and total spend for one customer.
func (r *Repository) CustomerStats(ctx context.Context, id, userID string) (orders int, spend core.Money, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM invoices
		WHERE customer_id = ? AND user_id = ?`,
		id, userID).Scan(&orders, &spend.Cents)
	if err != nil {
		return 0, core.Money{}, fmt.Errorf("customer stats: %w", err)
	}
	return orders, spend, nil
}
