package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fima/internal/amqp"
	"fima/internal/ocr"
	"fima/internal/storage"
)

// ScanWorker runs OCR over uploaded receipts and stores the classified
// candidates back on the scan row.
type ScanWorker struct {
	storage   *storage.Repository
	batchSize int
}

func NewScanWorker(storage *storage.Repository, batchSize int) *ScanWorker {
	return &ScanWorker{
		storage:   storage,
		batchSize: batchSize,
	}
}

// HandleScanMessage processes a single scan message from AMQP
func (w *ScanWorker) HandleScanMessage(ctx context.Context, msg *amqp.ScanMessage) error {
	slog.InfoContext(ctx, "Processing scan message",
		"scan_id", msg.ID,
		"version", msg.Version)

	scan, err := w.storage.GetScanByID(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get scan from storage: %w", err)
	}

	// A requeued message can arrive after the sweep already handled the
	// scan. Done and failed scans are final.
	if scan.Status != storage.ScanPending {
		slog.InfoContext(ctx, "Scan already processed, skipping",
			"scan_id", scan.ID, "status", scan.Status)
		return nil
	}

	return w.process(ctx, scan)
}

// ProcessPendingScans sweeps scans that never got a queue message.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ScanWorker) ProcessPendingScans(ctx context.Context) error {
	pending, err := w.storage.ListPendingScans(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending scans: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending scans", "count", len(pending))

	for _, scan := range pending {
		if err := w.process(ctx, scan); err != nil {
			slog.ErrorContext(ctx, "Failed to process scan", "scan_id", scan.ID, "error", err)
		}
	}

	return nil
}

// process runs OCR and classification for one scan. An OCR failure marks
// the scan failed and does not return an error: retrying a file tesseract
// cannot read only requeues it forever.
func (w *ScanWorker) process(ctx context.Context, scan storage.Scan) error {
	text, err := ocr.ExtractText(scan.FilePath)
	if err != nil {
		slog.ErrorContext(ctx, "OCR failed",
			"scan_id", scan.ID,
			"file", scan.FilePath,
			"error", err)
		if failErr := w.storage.FailScan(ctx, scan.ID); failErr != nil {
			return fmt.Errorf("mark scan failed: %w", failErr)
		}
		return nil
	}

	candidates, err := ocr.Classify(text).ToJSON()
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	if err := w.storage.CompleteScan(ctx, scan.ID, text, candidates); err != nil {
		return fmt.Errorf("store scan result: %w", err)
	}

	slog.InfoContext(ctx, "Scan processed",
		"scan_id", scan.ID,
		"text_len", len(text))

	return nil
}
