package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Scan statuses. Pending scans are picked up by the OCR worker.
const (
	ScanPending = "pending"
	ScanDone    = "done"
	ScanFailed  = "failed"
)

// Scan is one uploaded receipt queued for OCR.
type Scan struct {
	ID         int64
	UserID     string
	FilePath   string
	Status     string
	Version    int64
	RawText    string
	Candidates string // JSON, see ocr.Candidates
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateScan inserts a pending scan row and returns its id.
func (r *Repository) CreateScan(ctx context.Context, userID, filePath string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO scans (user_id, file_path) VALUES (?, ?)`,
		userID, filePath)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scan insert id: %w", err)
	}
	slog.InfoContext(ctx, "Scan queued", "scan_id", id, "user_id", userID, "file", filePath)
	return id, nil
}

// GetScan returns one scan owned by userID.
func (r *Repository) GetScan(ctx context.Context, id int64, userID string) (Scan, error) {
	var s Scan
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_path, status, version, raw_text, candidates, created_at, updated_at
		FROM scans WHERE id = ? AND user_id = ?`,
		id, userID).
		Scan(&s.ID, &s.UserID, &s.FilePath, &s.Status, &s.Version, &s.RawText,
			&s.Candidates, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	if err != nil {
		return Scan{}, fmt.Errorf("get scan: %w", err)
	}
	return s, nil
}

// GetScanByID returns a scan regardless of owner, for the worker.
func (r *Repository) GetScanByID(ctx context.Context, id int64) (Scan, error) {
	var s Scan
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_path, status, version, raw_text, candidates, created_at, updated_at
		FROM scans WHERE id = ?`,
		id).
		Scan(&s.ID, &s.UserID, &s.FilePath, &s.Status, &s.Version, &s.RawText,
			&s.Candidates, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	if err != nil {
		return Scan{}, fmt.Errorf("get scan: %w", err)
	}
	return s, nil
}

// CompleteScan stores the OCR result and marks the scan done.
func (r *Repository) CompleteScan(ctx context.Context, id int64, rawText, candidates string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scans
		SET status = ?, raw_text = ?, candidates = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		ScanDone, rawText, candidates, id)
	if err != nil {
		return fmt.Errorf("complete scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Scan completed", "scan_id", id)
	return nil
}

// FailScan marks the scan failed so it is not swept again.
func (r *Repository) FailScan(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		ScanFailed, id)
	if err != nil {
		return fmt.Errorf("fail scan: %w", err)
	}
	slog.WarnContext(ctx, "Scan marked failed", "scan_id", id)
	return nil
}

// ListPendingScans returns up to limit scans still waiting for OCR, oldest
// first. The worker sweeps these periodically in case a queue message was
// lost.
func (r *Repository) ListPendingScans(ctx context.Context, limit int) ([]Scan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, file_path, status, version, raw_text, candidates, created_at, updated_at
		FROM scans WHERE status = ? ORDER BY created_at LIMIT ?`,
		ScanPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending scans: %w", err)
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.ID, &s.UserID, &s.FilePath, &s.Status, &s.Version,
			&s.RawText, &s.Candidates, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
