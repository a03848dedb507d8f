// Package http provides the web server: dashboard, invoices, customers,
// settings and receipt scan endpoints rendered with HTMX partials.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fima/internal/auth"
	"fima/internal/cache"
	"fima/internal/core"
	"fima/internal/ledger"
	"fima/internal/middleware/ratelimit"
	"fima/internal/middleware/security"
	"fima/internal/middleware/trace"
	"fima/internal/services"
	"fima/internal/storage"
	appweb "fima/web"
)

// invoicePage is one cached page of the invoices table.
type invoicePage struct {
	Rows  []storage.InvoiceRow
	Pages int
}

type Server struct {
	http.Server
	templates *template.Template

	repo     *storage.Repository
	ledger   *ledger.Ledger
	scans    *services.ScanService
	sessions *auth.Sessions

	limiter  *ratelimit.Limiter
	resolver *security.IPResolver

	// Per-user read caches, keyed "<userID>:<suffix>" so one mutation can
	// drop everything the user sees with a single prefix delete.
	revenueCache  *cache.LRU[[]core.MonthRevenue]
	cardCache     *cache.LRU[core.CardData]
	latestCache   *cache.LRU[[]core.LatestInvoice]
	invoicesCache *cache.LRU[invoicePage]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, repo *storage.Repository, lg *ledger.Ledger, scans *services.ScanService, sessions *auth.Sessions) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:     repo,
		ledger:   lg,
		scans:    scans,
		sessions: sessions,

		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		resolver: security.NewIPResolver(),

		revenueCache:  cache.NewLRU[[]core.MonthRevenue](100, 5*time.Minute),
		cardCache:     cache.NewLRU[core.CardData](100, 5*time.Minute),
		latestCache:   cache.NewLRU[[]core.LatestInvoice](100, 5*time.Minute),
		invoicesCache: cache.NewLRU[invoicePage](200, 5*time.Minute),

		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Public pages
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/logout", s.handleLogout)

	// Authenticated pages
	mux.Handle("/dashboard", auth.RequireAuth(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("/invoices", auth.RequireAuth(http.HandlerFunc(s.handleInvoices)))
	mux.Handle("/invoices/update", auth.RequireAuth(http.HandlerFunc(s.handleUpdateInvoice)))
	mux.Handle("/invoices/delete", auth.RequireAuth(http.HandlerFunc(s.handleDeleteInvoice)))
	mux.Handle("/customers", auth.RequireAuth(http.HandlerFunc(s.handleCustomers)))
	mux.Handle("/customers/update", auth.RequireAuth(http.HandlerFunc(s.handleUpdateCustomer)))
	mux.Handle("/customers/delete", auth.RequireAuth(http.HandlerFunc(s.handleDeleteCustomer)))
	mux.Handle("/settings", auth.RequireAuth(http.HandlerFunc(s.handleSettings)))
	mux.Handle("/scans", auth.RequireAuth(http.HandlerFunc(s.handleSubmitScan)))

	// UI partials
	mux.Handle("/ui/revenue-chart", auth.RequireAuth(http.HandlerFunc(s.handleRevenueChart)))
	mux.Handle("/ui/cards", auth.RequireAuth(http.HandlerFunc(s.handleCards)))
	mux.Handle("/ui/latest-invoices", auth.RequireAuth(http.HandlerFunc(s.handleLatestInvoices)))
	mux.Handle("/ui/invoice-table", auth.RequireAuth(http.HandlerFunc(s.handleInvoiceTable)))
	mux.Handle("/ui/scan-status", auth.RequireAuth(http.HandlerFunc(s.handleScanStatus)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traceMw := trace.NewMiddleware(s.resolver.ExtractClientIP)

	handler := traceMw.Middleware(
		headers.Middleware(
			s.limitMutations(
				sessions.Middleware(mux))))

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}

	return s
}

// limitMutations applies the rate limiter to mutating requests only; reads
// stay unthrottled so HTMX polling does not starve the forms.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.resolver.ExtractClientIP, nil)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// startCacheCleanup runs periodic cleanup for the read caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.revenueCache.CleanExpired() +
				s.cardCache.CleanExpired() +
				s.latestCache.CleanExpired() +
				s.invoicesCache.CleanExpired()
			if cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DB().PingContext(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex sends authenticated users to the dashboard and everyone else
// to the login page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// Cache keys and invalidation. Dashboard and invoice-table reads share the
// "<userID>:" prefix so any mutation under that user clears them together.

func dashKey(userID, what string) string {
	return userID + ":" + what
}

func (s *Server) invalidateUser(userID string) {
	prefix := userID + ":"
	s.revenueCache.DeletePrefix(prefix)
	s.cardCache.DeletePrefix(prefix)
	s.latestCache.DeletePrefix(prefix)
	s.invoicesCache.DeletePrefix(prefix)
}

func (s *Server) getRevenue(ctx context.Context, userID string) ([]core.MonthRevenue, error) {
	key := dashKey(userID, "revenue")
	if data, found := s.revenueCache.Get(key); found {
		slog.DebugContext(ctx, "Revenue cache hit", "user_id", userID)
		return data, nil
	}
	data, err := s.repo.RevenueByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.revenueCache.Set(key, data)
	return data, nil
}

func (s *Server) getCardData(ctx context.Context, userID string) (core.CardData, error) {
	key := dashKey(userID, "cards")
	if data, found := s.cardCache.Get(key); found {
		return data, nil
	}
	data, err := s.repo.CardData(ctx, userID)
	if err != nil {
		return core.CardData{}, err
	}
	s.cardCache.Set(key, data)
	return data, nil
}

func (s *Server) getLatestInvoices(ctx context.Context, userID string) ([]core.LatestInvoice, error) {
	key := dashKey(userID, "latest")
	if data, found := s.latestCache.Get(key); found {
		return data, nil
	}
	data, err := s.repo.LatestInvoices(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.latestCache.Set(key, data)
	return data, nil
}
