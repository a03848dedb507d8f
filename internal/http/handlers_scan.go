package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"fima/internal/auth"
	"fima/internal/ocr"
	"fima/internal/storage"
)

// maxUploadBytes caps receipt uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// handleSubmitScan accepts a receipt upload and queues it for OCR.
func (s *Server) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.scans == nil {
		InternalServerError("Receipt scanning is not configured").Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BadRequestError("Upload too large or malformed").Write(w)
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		BadRequestError("Missing receipt file").Write(w)
		return
	}
	defer file.Close()

	id, err := s.scans.SubmitScan(r.Context(), userID, header.Filename, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "Scan submission failed",
			"user_id", userID, "filename", header.Filename, "error", err)
		UnprocessableEntityError("Could not accept this file").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerScanQueued(id).
		TriggerSuccessNotification("Receipt queued for scanning").
		Write(w)
}

// handleScanStatus renders the scan result partial. While the scan is
// pending the partial keeps polling; once done it offers the classified
// candidates as invoice form pre-fills.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		BadRequestError("Invalid scan id").Write(w)
		return
	}

	scan, err := s.repo.GetScan(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Scan not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Scan lookup failed", "scan_id", id, "error", err)
		InternalServerError("Could not load scan").Write(w)
		return
	}

	data := struct {
		ID      int64
		Status  string
		Pending bool
		Failed  bool
		ocr.Candidates
	}{
		ID:      scan.ID,
		Status:  scan.Status,
		Pending: scan.Status == storage.ScanPending,
		Failed:  scan.Status == storage.ScanFailed,
	}
	if scan.Status == storage.ScanDone && scan.Candidates != "" {
		cands, err := ocr.CandidatesFromJSON(scan.Candidates)
		if err != nil {
			slog.ErrorContext(r.Context(), "Stored candidates unreadable", "scan_id", id, "error", err)
		} else {
			data.Candidates = cands
		}
	}

	if err := s.templates.ExecuteTemplate(w, "scan_status.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "scan_status.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering scan</div>`))
	}
}
