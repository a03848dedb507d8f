package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
	StatusIncome  InvoiceStatus = "income"
)

type (
	InvoiceStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Invoice records a single expense or income event for one customer,
	// owned by exactly one user.
	Invoice struct {
		ID         string
		UserID     string
		CustomerID string
		Amount     Money
		Status     InvoiceStatus
		Date       Date
		Note       string
	}

	Customer struct {
		ID       string
		UserID   string
		Name     string
		Email    string
		ImageURL string
	}

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
	}

	// RevenueBucket accumulates income-status invoice amounts for one
	// user and one calendar month. Buckets are provisioned up front and
	// only ever updated by the ledger.
	RevenueBucket struct {
		Month  int // 1-12
		UserID string
		Amount Money
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyCustomer   = errors.New("empty customer")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrNoteTooLong     = errors.New("note too long (max 200 characters)")
	ErrPasswordTooWeak = errors.New("password too short (min 6 characters)")
)

// IsValid reports whether the status is one of the known enumeration values.
func (st InvoiceStatus) IsValid() bool {
	switch st {
	case StatusPending, StatusPaid, StatusIncome:
		return true
	default:
		return false
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Month returns the calendar month (1-12). The ledger uses this to pick
// the revenue bucket an income invoice contributes to.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the calendar year
func (d Date) Year() int {
	return d.Time.Year()
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.CustomerID) == "" {
		return ErrEmptyCustomer
	}
	if err := inv.Amount.Validate(); err != nil {
		return err
	}
	if !inv.Status.IsValid() {
		return ErrInvalidStatus
	}
	if err := inv.Date.Validate(); err != nil {
		return err
	}
	if len(inv.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

// Contributing reports whether the invoice currently counts toward its
// owner's revenue bucket.
func (inv Invoice) Contributing() bool {
	return inv.Status == StatusIncome
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !strings.Contains(c.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Name)) < 3 {
		return ErrEmptyName
	}
	if !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}
