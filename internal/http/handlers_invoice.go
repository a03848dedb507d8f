package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"fima/internal/auth"
	"fima/internal/core"
	"fima/internal/ledger"
	"fima/internal/storage"
)

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleInvoicesPage(w, r)
	case http.MethodPost:
		s.handleCreateInvoice(w, r)
	default:
		RequireMethod(r, http.MethodGet, http.MethodPost).Write(w)
	}
}

func (s *Server) handleInvoicesPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	params := ParseListParams(r.URL.Query())

	customers, err := s.repo.ListCustomers(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List customers error", "error", err, "user_id", userID)
	}

	type option struct{ ID, Name string }
	data := struct {
		Query     string
		Page      int
		Customers []option
		Statuses  []core.InvoiceStatus
	}{
		Query:    params.Query,
		Page:     params.Page,
		Statuses: []core.InvoiceStatus{core.StatusPending, core.StatusPaid, core.StatusIncome},
	}
	for _, c := range customers {
		data.Customers = append(data.Customers, option{ID: c.ID, Name: c.Name})
	}

	s.render(w, r, "invoices.html", data)
}

// getInvoicePage returns one cached page of the invoices table.
func (s *Server) getInvoicePage(ctx context.Context, userID string, params ListParams) (invoicePage, error) {
	key := dashKey(userID, "invoices:"+params.Query+":"+strconv.Itoa(params.Page))
	if page, found := s.invoicesCache.Get(key); found {
		slog.DebugContext(ctx, "Invoice page cache hit", "user_id", userID, "page", params.Page)
		return page, nil
	}

	rows, err := s.repo.SearchInvoices(ctx, userID, params.Query, params.Page)
	if err != nil {
		return invoicePage{}, err
	}
	pages, err := s.repo.CountInvoicePages(ctx, userID, params.Query)
	if err != nil {
		return invoicePage{}, err
	}

	page := invoicePage{Rows: rows, Pages: pages}
	s.invoicesCache.Set(key, page)
	return page, nil
}

// handleInvoiceTable renders the searchable, paginated invoices table partial.
func (s *Server) handleInvoiceTable(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	params := ParseListParams(r.URL.Query())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	page, err := s.getInvoicePage(r.Context(), userID, params)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice table error", "error", err, "user_id", userID)
		_, _ = w.Write([]byte(`<div class="placeholder">Error loading invoices</div>`))
		return
	}

	type row struct {
		ID            string
		CustomerName  string
		CustomerEmail string
		ImageURL      string
		Amount        string
		Status        string
		Date          string
		Note          string
	}
	data := struct {
		Query    string
		Page     int
		Pages    int
		PrevPage int
		NextPage int
		Rows     []row
	}{
		Query:    params.Query,
		Page:     params.Page,
		Pages:    page.Pages,
		PrevPage: params.Page - 1,
		NextPage: params.Page + 1,
	}
	for _, ir := range page.Rows {
		data.Rows = append(data.Rows, row{
			ID:            ir.ID,
			CustomerName:  ir.CustomerName,
			CustomerEmail: ir.CustomerEmail,
			ImageURL:      ir.ImageURL,
			Amount:        ir.Amount.Format(),
			Status:        string(ir.Status),
			Date:          ir.Date.Format("2006-01-02"),
			Note:          ir.Note,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "invoice_table.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "invoice_table.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering invoices</div>`))
	}
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	form, err := ParseInvoiceForm(r.Form, true)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	// Customer must exist and belong to the caller.
	if _, err := s.repo.GetCustomer(r.Context(), form.CustomerID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			UnprocessableEntityError("Unknown customer").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Customer lookup error", "error", err)
		InternalServerError("Could not save invoice").Write(w)
		return
	}

	inv := core.Invoice{
		ID:         uuid.NewString(),
		UserID:     userID,
		CustomerID: form.CustomerID,
		Amount:     form.Amount,
		Status:     form.Status,
		Date:       form.Date,
		Note:       form.Note,
	}
	if err := inv.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.ledger.CreateInvoice(r.Context(), inv); err != nil {
		writeLedgerError(w, r, err, "create")
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerInvoiceCreated(inv.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Invoice created").
		Write(w)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sanitizeInput(r.Form.Get("id"))
	if id == "" {
		BadRequestError("Missing invoice id").Write(w)
		return
	}

	// No date here: the stored date stays authoritative for the bucket month.
	form, err := ParseInvoiceForm(r.Form, false)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	upd := ledger.InvoiceUpdate{
		CustomerID: form.CustomerID,
		Amount:     form.Amount,
		Status:     form.Status,
		Note:       form.Note,
	}
	if err := s.ledger.UpdateInvoice(r.Context(), id, userID, upd); err != nil {
		writeLedgerError(w, r, err, "update")
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerInvoiceUpdated(id).
		TriggerSuccessNotification("Invoice updated").
		Write(w)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := sanitizeInput(r.Form.Get("id"))
	if id == "" {
		id = sanitizeInput(r.URL.Query().Get("id"))
	}
	if id == "" {
		BadRequestError("Missing invoice id").Write(w)
		return
	}

	if err := s.ledger.DeleteInvoice(r.Context(), id, userID); err != nil {
		writeLedgerError(w, r, err, "delete")
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerInvoiceDeleted(id).
		TriggerSuccessNotification("Invoice deleted").
		Write(w)
}

// writeLedgerError maps ledger failures onto HTTP responses. Bucket errors
// mean the transaction rolled back, so the client sees the pre-call state.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, ledger.ErrInvoiceNotFound):
		NotFoundError("Invoice not found").Write(w)
	case errors.Is(err, ledger.ErrBucketNegative):
		slog.WarnContext(r.Context(), "Invoice mutation rejected", "op", op, "error", err)
		UnprocessableEntityError("Revenue total cannot go negative").Write(w)
	case errors.Is(err, ledger.ErrBucketMissing):
		slog.ErrorContext(r.Context(), "Revenue bucket missing", "op", op, "error", err)
		InternalServerError("Revenue account misconfigured").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Invoice mutation failed", "op", op, "error", err)
		InternalServerError("Could not save invoice").Write(w)
	}
}
