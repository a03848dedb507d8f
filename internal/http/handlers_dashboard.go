package http

import (
	"log/slog"
	"net/http"

	"fima/internal/auth"
)

var monthNames = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard user lookup failed", "user_id", userID, "error", err)
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "dashboard.html", struct {
		UserName string
	}{UserName: user.Name})
}

// handleRevenueChart renders the 12-month revenue bar chart partial from
// the per-user revenue buckets.
func (s *Server) handleRevenueChart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	buckets, err := s.getRevenue(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Revenue chart error", "error", err, "user_id", userID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading revenue</div>`))
		return
	}

	// Scale bars against the largest bucket.
	var maxCents int64
	for _, b := range buckets {
		if b.Amount.Cents > maxCents {
			maxCents = b.Amount.Cents
		}
	}

	type bar struct {
		Month  string
		Amount string
		Height int
	}
	data := struct {
		Bars []bar
	}{}
	for _, b := range buckets {
		height := 0
		if maxCents > 0 && b.Amount.Cents > 0 {
			height = int((b.Amount.Cents*100 + maxCents/2) / maxCents)
			if height > 0 && height < 2 {
				height = 2
			}
			if height > 100 {
				height = 100
			}
		}
		data.Bars = append(data.Bars, bar{
			Month:  monthNames[b.Month],
			Amount: b.Amount.Format(),
			Height: height,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Revenue unavailable</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "revenue_chart.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "revenue_chart.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering revenue</div>`))
	}
}

// handleCards renders the headline numbers partial.
func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	cd, err := s.getCardData(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Card data error", "error", err, "user_id", userID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading totals</div>`))
		return
	}

	data := struct {
		InvoiceCount  int
		CustomerCount int
		TotalPaid     string
		TotalPending  string
	}{
		InvoiceCount:  cd.InvoiceCount,
		CustomerCount: cd.CustomerCount,
		TotalPaid:     cd.TotalPaid.Format(),
		TotalPending:  cd.TotalPending.Format(),
	}
	if err := s.templates.ExecuteTemplate(w, "cards.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "cards.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering totals</div>`))
	}
}

// handleLatestInvoices renders the five most recent invoices partial.
func (s *Server) handleLatestInvoices(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	latest, err := s.getLatestInvoices(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Latest invoices error", "error", err, "user_id", userID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading invoices</div>`))
		return
	}

	type row struct {
		CustomerName  string
		CustomerEmail string
		ImageURL      string
		Amount        string
	}
	data := struct {
		Rows []row
	}{}
	for _, li := range latest {
		data.Rows = append(data.Rows, row{
			CustomerName:  li.CustomerName,
			CustomerEmail: li.CustomerEmail,
			ImageURL:      li.ImageURL,
			Amount:        li.Amount.Format(),
		})
	}
	if err := s.templates.ExecuteTemplate(w, "latest_invoices.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "latest_invoices.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering invoices</div>`))
	}
}
