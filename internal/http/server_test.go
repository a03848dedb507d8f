package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"fima/internal/auth"
	"fima/internal/ledger"
	"fima/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sessions := auth.NewSessions("test-secret-0123456789")
	srv := NewServer(":0", repo, ledger.New(repo.DB()), nil, sessions)
	t.Cleanup(func() { srv.limiter.Stop(); close(srv.stopCacheCleanup) })
	return srv, repo
}

func postForm(srv *Server, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// register creates an account and returns the session cookies.
func register(t *testing.T, srv *Server, name, email string) []*http.Cookie {
	t.Helper()
	rr := postForm(srv, "/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {"hunter22"},
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, body = %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("register set no session cookie")
	}
	return cookies
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestUnauthenticatedRedirects(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/dashboard", "/invoices", "/customers", "/settings"} {
		rr := get(srv, path, nil)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s status = %d, want 303", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/login" {
			t.Fatalf("%s redirected to %q", path, loc)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postForm(srv, "/register", url.Values{
		"name":     {"Ada"},
		"email":    {"ada@example.com"},
		"password": {"short"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password: status = %d", rr.Code)
	}

	register(t, srv, "Ada", "ada@example.com")
	rr = postForm(srv, "/register", url.Values{
		"name":     {"Ada Again"},
		"email":    {"ada@example.com"},
		"password": {"hunter22"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate email: status = %d", rr.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "Ada", "ada@example.com")

	rr := postForm(srv, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"wrong"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("wrong password: status = %d", rr.Code)
	}

	rr = postForm(srv, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"hunter22"},
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("correct password: status = %d", rr.Code)
	}
	if rr.Header().Get("HX-Redirect") != "/dashboard" {
		t.Fatalf("login should redirect to dashboard, got %q", rr.Header().Get("HX-Redirect"))
	}
}

func TestInvoiceLifecycleThroughHTTP(t *testing.T) {
	srv, repo := newTestServer(t)
	cookies := register(t, srv, "Ada", "ada@example.com")

	user, err := repo.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}

	// Create a customer to invoice.
	rr := postForm(srv, "/customers", url.Values{
		"name":  {"ACME"},
		"email": {"billing@acme.test"},
	}, cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("create customer: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	customers, err := repo.ListCustomers(context.Background(), user.ID)
	if err != nil || len(customers) != 1 {
		t.Fatalf("list customers: %v (n=%d)", err, len(customers))
	}

	// Create an income invoice; the June bucket must pick it up.
	rr = postForm(srv, "/invoices", url.Values{
		"customer_id": {customers[0].ID},
		"amount":      {"12.34"},
		"status":      {"income"},
		"date":        {"2025-06-05"},
	}, cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("create invoice: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if trigger := rr.Header().Get("HX-Trigger"); !strings.Contains(trigger, "invoice:created") {
		t.Fatalf("HX-Trigger = %q", trigger)
	}

	bucket, err := repo.BucketAmount(context.Background(), 6, user.ID)
	if err != nil {
		t.Fatalf("bucket amount: %v", err)
	}
	if bucket.Cents != 1234 {
		t.Fatalf("June bucket = %d cents, want 1234", bucket.Cents)
	}

	// Invalid amount is rejected before touching the ledger.
	rr = postForm(srv, "/invoices", url.Values{
		"customer_id": {customers[0].ID},
		"amount":      {"abc"},
		"status":      {"income"},
		"date":        {"2025-06-05"},
	}, cookies)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount: status = %d", rr.Code)
	}

	// Deleting an unknown invoice answers 404.
	rr = postForm(srv, "/invoices/delete", url.Values{"id": {"missing"}}, cookies)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing invoice: status = %d", rr.Code)
	}
}

func TestInvoiceTablePartial(t *testing.T) {
	srv, repo := newTestServer(t)
	cookies := register(t, srv, "Ada", "ada@example.com")

	user, err := repo.GetUserByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}

	rr := postForm(srv, "/customers", url.Values{
		"name":  {"ACME"},
		"email": {"billing@acme.test"},
	}, cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("create customer: status = %d", rr.Code)
	}
	customers, _ := repo.ListCustomers(context.Background(), user.ID)

	rr = postForm(srv, "/invoices", url.Values{
		"customer_id": {customers[0].ID},
		"amount":      {"50.00"},
		"status":      {"pending"},
		"date":        {"2025-03-10"},
	}, cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("create invoice: status = %d", rr.Code)
	}

	rr = get(srv, "/ui/invoice-table", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("invoice table: status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "ACME") || !strings.Contains(body, "$50.00") {
		t.Fatalf("invoice table missing row data: %s", body)
	}
}
