package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"fima/internal/core"
	"fima/internal/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.Repository, core.User, core.Customer) {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "fima.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	user := core.User{ID: uuid.NewString(), Name: "Tester", Email: "tester@example.test", PasswordHash: "x"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	customer := core.Customer{ID: uuid.NewString(), UserID: user.ID, Name: "Acme", Email: "acme@example.test"}
	if err := repo.CreateCustomer(ctx, customer); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	return New(repo.DB()), repo, user, customer
}

func bucket(t *testing.T, repo *storage.Repository, month int, userID string) int64 {
	t.Helper()
	m, err := repo.BucketAmount(context.Background(), month, userID)
	if err != nil {
		t.Fatalf("bucket amount: %v", err)
	}
	return m.Cents
}

// checkInvariant verifies that every bucket equals the sum of the user's
// income invoices for that month.
func checkInvariant(t *testing.T, repo *storage.Repository, userID string) {
	t.Helper()
	for month := 1; month <= 12; month++ {
		var want int64
		err := repo.DB().QueryRow(`
			SELECT COALESCE(SUM(amount_cents), 0) FROM invoices
			WHERE user_id = ? AND status = 'income'
			  AND CAST(strftime('%m', date) AS INTEGER) = ?`,
			userID, month).Scan(&want)
		if err != nil {
			t.Fatalf("recompute month %d: %v", month, err)
		}
		if got := bucket(t, repo, month, userID); got != want {
			t.Fatalf("invariant broken for month %d: bucket=%d, invoice sum=%d", month, got, want)
		}
	}
}

func incomeInvoice(userID, customerID string, cents int64) core.Invoice {
	return core.Invoice{
		ID:         uuid.NewString(),
		UserID:     userID,
		CustomerID: customerID,
		Amount:     core.Money{Cents: cents},
		Status:     core.StatusIncome,
		Date:       core.NewDate(2025, 6, 5),
	}
}

func TestCreateIncomeInvoiceAddsToBucket(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	if got := bucket(t, repo, 6, user.ID); got != 0 {
		t.Fatalf("fresh bucket = %d, want 0", got)
	}
	if err := l.CreateInvoice(ctx, incomeInvoice(user.ID, customer.ID, 1000)); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 1000 {
		t.Fatalf("bucket(6) = %d, want 1000", got)
	}
	checkInvariant(t, repo, user.ID)
}

func TestCreateNonIncomeDoesNotTouchBucket(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	for _, status := range []core.InvoiceStatus{core.StatusPending, core.StatusPaid} {
		inv := incomeInvoice(user.ID, customer.ID, 500)
		inv.Status = status
		if err := l.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("create %s invoice: %v", status, err)
		}
	}
	if got := bucket(t, repo, 6, user.ID); got != 0 {
		t.Fatalf("bucket(6) = %d, want 0 after non-income creates", got)
	}
	checkInvariant(t, repo, user.ID)
}

// Walks an invoice through every bucket-affecting transition:
// amount change while income, income -> pending, pending -> income, delete.
func TestUpdateTransitions(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	inv := incomeInvoice(user.ID, customer.ID, 1000)
	if err := l.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	// income -> income with amount change applies the signed difference
	err := l.UpdateInvoice(ctx, inv.ID, user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 1500}, Status: core.StatusIncome,
	})
	if err != nil {
		t.Fatalf("amount update: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 1500 {
		t.Fatalf("after amount change bucket(6) = %d, want 1500", got)
	}

	// income -> pending subtracts the old amount
	err = l.UpdateInvoice(ctx, inv.ID, user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 1500}, Status: core.StatusPending,
	})
	if err != nil {
		t.Fatalf("status update to pending: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 0 {
		t.Fatalf("after income->pending bucket(6) = %d, want 0", got)
	}

	// pending -> income adds the new amount
	err = l.UpdateInvoice(ctx, inv.ID, user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 1500}, Status: core.StatusIncome,
	})
	if err != nil {
		t.Fatalf("status update to income: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 1500 {
		t.Fatalf("after pending->income bucket(6) = %d, want 1500", got)
	}

	// delete while contributing removes the contribution
	if err := l.DeleteInvoice(ctx, inv.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 0 {
		t.Fatalf("after delete bucket(6) = %d, want 0", got)
	}
	checkInvariant(t, repo, user.ID)
}

func TestNoOpUpdateLeavesBucketUnchanged(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	inv := incomeInvoice(user.ID, customer.ID, 700)
	if err := l.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Same amount and status, only the note changes.
	err := l.UpdateInvoice(ctx, inv.ID, user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 700}, Status: core.StatusIncome, Note: "edited",
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != 700 {
		t.Fatalf("bucket(6) = %d, want 700 after no-op update", got)
	}
	checkInvariant(t, repo, user.ID)
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	if err := l.CreateInvoice(ctx, incomeInvoice(user.ID, customer.ID, 250)); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	before := bucket(t, repo, 6, user.ID)

	inv := incomeInvoice(user.ID, customer.ID, 4200)
	if err := l.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != before+4200 {
		t.Fatalf("bucket(6) = %d, want %d", got, before+4200)
	}
	if err := l.DeleteInvoice(ctx, inv.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := bucket(t, repo, 6, user.ID); got != before {
		t.Fatalf("bucket(6) = %d, want %d after round trip", got, before)
	}
	checkInvariant(t, repo, user.ID)
}

// Pins the design decision that the bucket month always derives from the
// invoice's originally stored date: updates cannot move a contribution to
// another month because the date field is not part of the update payload.
func TestBucketMonthDerivedFromStoredDate(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	inv := incomeInvoice(user.ID, customer.ID, 1000) // dated June 5
	if err := l.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := l.UpdateInvoice(ctx, inv.ID, user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 2000}, Status: core.StatusIncome,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// The June bucket moved; every other bucket stayed at zero.
	if got := bucket(t, repo, 6, user.ID); got != 2000 {
		t.Fatalf("bucket(6) = %d, want 2000", got)
	}
	for month := 1; month <= 12; month++ {
		if month == 6 {
			continue
		}
		if got := bucket(t, repo, month, user.ID); got != 0 {
			t.Fatalf("bucket(%d) = %d, want 0", month, got)
		}
	}

	// And the stored date itself is untouched by the update.
	got, err := repo.GetInvoice(ctx, inv.ID, user.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Date.Year() != 2025 || got.Date.Month() != 6 || got.Date.Day() != 5 {
		t.Fatalf("stored date changed: %v", got.Date)
	}
}

func TestMissingBucketAbortsCreate(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	// Simulate a provisioning gap: drop the June bucket.
	if _, err := repo.DB().Exec(`DELETE FROM revenue WHERE month = 6 AND user_id = ?`, user.ID); err != nil {
		t.Fatalf("drop bucket: %v", err)
	}

	inv := incomeInvoice(user.ID, customer.ID, 1000)
	err := l.CreateInvoice(ctx, inv)
	if !errors.Is(err, ErrBucketMissing) {
		t.Fatalf("expected ErrBucketMissing, got %v", err)
	}

	// The rollback must cover the invoice insert too.
	if _, err := repo.GetInvoice(ctx, inv.ID, user.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("invoice persisted despite aborted transaction: %v", err)
	}
}

func TestNegativeBucketAborts(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	inv := incomeInvoice(user.ID, customer.ID, 1000)
	if err := l.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Corrupt the bucket from outside the ledger; the next subtraction
	// must refuse to drive it negative.
	if _, err := repo.DB().Exec(`UPDATE revenue SET amount_cents = 0 WHERE month = 6 AND user_id = ?`, user.ID); err != nil {
		t.Fatalf("corrupt bucket: %v", err)
	}

	err := l.DeleteInvoice(ctx, inv.ID, user.ID)
	if !errors.Is(err, ErrBucketNegative) {
		t.Fatalf("expected ErrBucketNegative, got %v", err)
	}
	// The invoice row survives the aborted delete.
	if _, err := repo.GetInvoice(ctx, inv.ID, user.ID); err != nil {
		t.Fatalf("invoice should still exist: %v", err)
	}
}

func TestUpdateAndDeleteMissingInvoice(t *testing.T) {
	l, _, user, customer := newTestLedger(t)
	ctx := context.Background()

	err := l.UpdateInvoice(ctx, uuid.NewString(), user.ID, InvoiceUpdate{
		CustomerID: customer.ID, Amount: core.Money{Cents: 100}, Status: core.StatusPending,
	})
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("update: expected ErrInvoiceNotFound, got %v", err)
	}
	if err := l.DeleteInvoice(ctx, uuid.NewString(), user.ID); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("delete: expected ErrInvoiceNotFound, got %v", err)
	}
}

// Two concurrent creates against the same bucket must both land: the final
// amount is the sum of both, never a lost update.
func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	l, repo, user, customer := newTestLedger(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.CreateInvoice(ctx, incomeInvoice(user.ID, customer.ID, 100))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	if got := bucket(t, repo, 6, user.ID); got != workers*100 {
		t.Fatalf("bucket(6) = %d, want %d (lost update)", got, workers*100)
	}
	checkInvariant(t, repo, user.ID)
}
