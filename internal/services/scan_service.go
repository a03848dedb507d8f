package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"fima/internal/amqp"
	"fima/internal/storage"
)

// ScanService orchestrates receipt uploads across SQLite and AMQP
type ScanService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
	uploadDir  string
}

func NewScanService(storage *storage.Repository, amqpClient *amqp.Client, uploadDir string) *ScanService {
	return &ScanService{
		storage:    storage,
		amqpClient: amqpClient,
		uploadDir:  uploadDir,
	}
}

// SubmitScan saves the uploaded file, records a pending scan and publishes
// a message for the OCR worker.
func (s *ScanService) SubmitScan(ctx context.Context, userID, filename string, file io.Reader) (int64, error) {
	path, err := s.saveUpload(userID, filename, file)
	if err != nil {
		return 0, fmt.Errorf("save upload: %w", err)
	}

	// Record in SQLite first (fast, reliable)
	id, err := s.storage.CreateScan(ctx, userID, path)
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("record scan: %w", err)
	}

	// Publish async OCR message (non-blocking, version 1 for new scan)
	if err := s.publishScanMessage(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish scan message",
			"scan_id", id, "error", err)
		// Don't fail the request - the sweep loop will pick the scan up
	}

	return id, nil
}

// allowed upload extensions
var allowedExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".pdf": true,
}

func (s *ScanService) saveUpload(userID, filename string, file io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}

	dir := filepath.Join(s.uploadDir, userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func (s *ScanService) publishScanMessage(ctx context.Context, id, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping scan message")
		return nil
	}

	return s.amqpClient.PublishScan(ctx, id, version)
}

// Close closes both storage and AMQP connections
func (s *ScanService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close scan service: %v", errs)
	}

	return nil
}
