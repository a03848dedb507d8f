package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("secret-key-for-tests")

	rr := httptest.NewRecorder()
	s.Create(rr, "user-123")

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	uid, ok := s.Parse(req)
	if !ok || uid != "user-123" {
		t.Fatalf("Parse = (%q, %v)", uid, ok)
	}
}

func TestSessionRejectsTampering(t *testing.T) {
	s := NewSessions("secret-key-for-tests")

	rr := httptest.NewRecorder()
	s.Create(rr, "user-123")
	cookie := rr.Result().Cookies()[0]

	// Swap the user id but keep the signature.
	sig := cookie.Value[len("user-123."):]
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "user-456." + sig})
	if _, ok := s.Parse(req); ok {
		t.Fatal("tampered cookie accepted")
	}

	// A different signing key must also reject the cookie.
	other := NewSessions("a-different-secret")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, ok := other.Parse(req); ok {
		t.Fatal("cookie from another key accepted")
	}
}

func TestSessionRejectsMalformedCookies(t *testing.T) {
	s := NewSessions("secret-key-for-tests")
	for _, value := range []string{"", "no-separator", ".sig-only"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if value != "" {
			req.AddCookie(&http.Cookie{Name: "session", Value: value})
		}
		if _, ok := s.Parse(req); ok {
			t.Fatalf("malformed cookie %q accepted", value)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(next)

	// No user in context: HTML clients are redirected.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}

	// JSON clients get a bare 401.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	// Authenticated requests pass through.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-123"))
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
