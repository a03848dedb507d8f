package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"fima/internal/auth"
	"fima/internal/core"
	"fima/internal/storage"
)

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCustomersPage(w, r)
	case http.MethodPost:
		s.handleCreateCustomer(w, r)
	default:
		RequireMethod(r, http.MethodGet, http.MethodPost).Write(w)
	}
}

func (s *Server) handleCustomersPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	params := ParseListParams(r.URL.Query())

	summaries, err := s.repo.SearchCustomers(r.Context(), userID, params.Query)
	if err != nil {
		slog.ErrorContext(r.Context(), "Customer search error", "error", err, "user_id", userID)
		http.Error(w, "error loading customers", http.StatusInternalServerError)
		return
	}

	type row struct {
		ID            string
		Name          string
		Email         string
		ImageURL      string
		TotalInvoices int
		TotalPending  string
		TotalPaid     string
	}
	data := struct {
		Query string
		Rows  []row
	}{Query: params.Query}
	for _, cs := range summaries {
		data.Rows = append(data.Rows, row{
			ID:            cs.ID,
			Name:          cs.Name,
			Email:         cs.Email,
			ImageURL:      cs.ImageURL,
			TotalInvoices: cs.TotalInvoices,
			TotalPending:  cs.TotalPending.Format(),
			TotalPaid:     cs.TotalPaid.Format(),
		})
	}

	s.render(w, r, "customers.html", data)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	customer := core.Customer{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     sanitizeInput(r.Form.Get("name")),
		Email:    sanitizeInput(r.Form.Get("email")),
		ImageURL: sanitizeInput(r.Form.Get("image_url")),
	}
	if err := customer.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.repo.CreateCustomer(r.Context(), customer); err != nil {
		slog.ErrorContext(r.Context(), "Customer creation failed", "error", err, "user_id", userID)
		InternalServerError("Could not save customer").Write(w)
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerCustomerChanged(customer.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Customer created").
		Write(w)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	customer := core.Customer{
		ID:       sanitizeInput(r.Form.Get("id")),
		UserID:   userID,
		Name:     sanitizeInput(r.Form.Get("name")),
		Email:    sanitizeInput(r.Form.Get("email")),
		ImageURL: sanitizeInput(r.Form.Get("image_url")),
	}
	if customer.ID == "" {
		BadRequestError("Missing customer id").Write(w)
		return
	}
	if err := customer.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.repo.UpdateCustomer(r.Context(), customer); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Customer not found").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Customer update failed", "error", err, "customer_id", customer.ID)
		InternalServerError("Could not save customer").Write(w)
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerCustomerChanged(customer.ID).
		TriggerSuccessNotification("Customer updated").
		Write(w)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing customer id").Write(w)
		return
	}

	if err := s.repo.DeleteCustomer(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			NotFoundError("Customer not found").Write(w)
			return
		}
		// The invoices foreign key restricts deleting a referenced customer.
		slog.WarnContext(r.Context(), "Customer deletion rejected", "error", err, "customer_id", id)
		UnprocessableEntityError("Customer still has invoices").Write(w)
		return
	}

	s.invalidateUser(userID)
	NewHTMXResponse().
		TriggerCustomerChanged(id).
		TriggerSuccessNotification("Customer deleted").
		Write(w)
}
