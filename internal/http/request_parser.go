// Utilities for parsing and validating request data shared by the handlers.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fima/internal/core"
)

// ListParams holds the search query and page number of a table request.
type ListParams struct {
	Query string
	Page  int
}

// ParseListParams extracts query/page values, defaulting to page 1.
func ParseListParams(values url.Values) ListParams {
	p := ListParams{
		Query: sanitizeInput(values.Get("query")),
		Page:  1,
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	return p
}

// InvoiceForm holds the parsed invoice create/update form fields.
type InvoiceForm struct {
	CustomerID string
	Amount     core.Money
	Status     core.InvoiceStatus
	Date       core.Date
	Note       string
}

// ParseInvoiceForm reads and validates the invoice form fields. The date is
// only required (and only read) when withDate is set: the update flow keeps
// the stored date.
func ParseInvoiceForm(form url.Values, withDate bool) (InvoiceForm, error) {
	f := InvoiceForm{
		CustomerID: sanitizeInput(form.Get("customer_id")),
		Status:     core.InvoiceStatus(sanitizeInput(form.Get("status"))),
		Note:       sanitizeInput(form.Get("note")),
	}

	cents, err := core.ParseDecimalToCents(form.Get("amount"))
	if err != nil {
		return InvoiceForm{}, err
	}
	f.Amount = core.Money{Cents: cents}

	if !f.Status.IsValid() {
		return InvoiceForm{}, core.ErrInvalidStatus
	}

	if withDate {
		d, err := parseDateField(form.Get("date"))
		if err != nil {
			return InvoiceForm{}, err
		}
		f.Date = d
	}
	return f, nil
}

func parseDateField(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return core.Date{}, core.ErrInvalidDate
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return core.Date{}, core.ErrInvalidDate
	}
	d := core.NewDate(year, month, day)
	// Reject dates that normalized (e.g. Feb 30 rolling into March).
	if d.Month() != month || d.Day() != day {
		return core.Date{}, core.ErrInvalidDate
	}
	return d, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	// Remove control characters except tab, newline, carriage return
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
