package http

import (
	"errors"
	"net/url"
	"testing"

	"fima/internal/core"
)

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name      string
		values    url.Values
		wantQuery string
		wantPage  int
	}{
		{"empty", url.Values{}, "", 1},
		{"query only", url.Values{"query": {"acme"}}, "acme", 1},
		{"query trimmed", url.Values{"query": {"  acme  "}}, "acme", 1},
		{"valid page", url.Values{"page": {"3"}}, "", 3},
		{"zero page falls back", url.Values{"page": {"0"}}, "", 1},
		{"negative page falls back", url.Values{"page": {"-2"}}, "", 1},
		{"garbage page falls back", url.Values{"page": {"abc"}}, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseListParams(tt.values)
			if p.Query != tt.wantQuery || p.Page != tt.wantPage {
				t.Errorf("ParseListParams() = {%q, %d}, want {%q, %d}",
					p.Query, p.Page, tt.wantQuery, tt.wantPage)
			}
		})
	}
}

func TestParseDateField(t *testing.T) {
	d, err := parseDateField("2025-06-05")
	if err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 6 || d.Day() != 5 {
		t.Fatalf("parsed wrong date: %v", d)
	}

	invalid := []string{"", "2025-06", "2025/06/05", "2025-13-01", "2025-02-30", "abcd-ef-gh"}
	for _, s := range invalid {
		if _, err := parseDateField(s); !errors.Is(err, core.ErrInvalidDate) {
			t.Errorf("parseDateField(%q) = %v, want ErrInvalidDate", s, err)
		}
	}
}

func TestParseInvoiceForm(t *testing.T) {
	form := url.Values{
		"customer_id": {"c1"},
		"amount":      {"12.34"},
		"status":      {"income"},
		"date":        {"2025-06-05"},
		"note":        {"  consulting  "},
	}

	f, err := ParseInvoiceForm(form, true)
	if err != nil {
		t.Fatalf("ParseInvoiceForm: %v", err)
	}
	if f.CustomerID != "c1" || f.Amount.Cents != 1234 || f.Status != core.StatusIncome {
		t.Fatalf("unexpected form: %+v", f)
	}
	if f.Note != "consulting" {
		t.Fatalf("note not trimmed: %q", f.Note)
	}
	if f.Date.Month() != 6 {
		t.Fatalf("date month = %d", f.Date.Month())
	}

	// Without date the stored date stays authoritative, so the field is
	// ignored even when absent.
	form.Del("date")
	f, err = ParseInvoiceForm(form, false)
	if err != nil {
		t.Fatalf("ParseInvoiceForm without date: %v", err)
	}
	if !f.Date.IsZero() {
		t.Fatalf("date should be zero when not requested, got %v", f.Date)
	}
}

func TestParseInvoiceFormRejectsBadInput(t *testing.T) {
	base := url.Values{
		"customer_id": {"c1"},
		"amount":      {"12.34"},
		"status":      {"income"},
		"date":        {"2025-06-05"},
	}

	amountBad := cloneValues(base)
	amountBad.Set("amount", "abc")
	if _, err := ParseInvoiceForm(amountBad, true); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("bad amount: got %v, want ErrInvalidAmount", err)
	}

	statusBad := cloneValues(base)
	statusBad.Set("status", "archived")
	if _, err := ParseInvoiceForm(statusBad, true); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("bad status: got %v, want ErrInvalidStatus", err)
	}

	dateBad := cloneValues(base)
	dateBad.Set("date", "not-a-date")
	if _, err := ParseInvoiceForm(dateBad, true); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("bad date: got %v, want ErrInvalidDate", err)
	}
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x1fc", "abc"},
		{"tab\tok", "tab\tok"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
