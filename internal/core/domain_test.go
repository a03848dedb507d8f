package core

import (
	"errors"
	"strings"
	"testing"
)

func TestInvoiceValidate(t *testing.T) {
	valid := Invoice{
		CustomerID: "c1",
		Amount:     Money{Cents: 1000},
		Status:     StatusIncome,
		Date:       NewDate(2025, 6, 5),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid invoice rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Invoice)
		wantErr error
	}{
		{"missing customer", func(i *Invoice) { i.CustomerID = " " }, ErrEmptyCustomer},
		{"zero amount", func(i *Invoice) { i.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(i *Invoice) { i.Amount.Cents = -100 }, ErrInvalidAmount},
		{"unknown status", func(i *Invoice) { i.Status = "overdue" }, ErrInvalidStatus},
		{"zero date", func(i *Invoice) { i.Date = Date{} }, ErrInvalidDate},
		{"long note", func(i *Invoice) { i.Note = strings.Repeat("x", 201) }, ErrNoteTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := valid
			tc.mutate(&inv)
			if err := inv.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestInvoiceContributing(t *testing.T) {
	cases := []struct {
		status InvoiceStatus
		want   bool
	}{
		{StatusIncome, true},
		{StatusPending, false},
		{StatusPaid, false},
	}
	for _, tc := range cases {
		inv := Invoice{Status: tc.status}
		if got := inv.Contributing(); got != tc.want {
			t.Fatalf("Contributing() with status %q = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, st := range []InvoiceStatus{StatusPending, StatusPaid, StatusIncome} {
		if !st.IsValid() {
			t.Fatalf("%q should be valid", st)
		}
	}
	for _, st := range []InvoiceStatus{"", "Pending", "INCOME", "overdue"} {
		if st.IsValid() {
			t.Fatalf("%q should be invalid", st)
		}
	}
}

func TestCustomerValidate(t *testing.T) {
	c := Customer{Name: "Acme", Email: "billing@acme.test"}
	if err := c.Validate(); err != nil {
		t.Fatalf("valid customer rejected: %v", err)
	}
	c.Email = "not-an-email"
	if err := c.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	c = Customer{Name: "  ", Email: "a@b.test"}
	if err := c.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}
