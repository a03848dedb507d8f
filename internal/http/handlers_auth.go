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

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "login.html", nil)
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		RequireMethod(r, http.MethodGet, http.MethodPost).Write(w)
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	user, err := s.repo.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.ErrorContext(r.Context(), "Login lookup failed", "error", err)
		}
		// Same answer for unknown email and wrong password.
		UnprocessableEntityError("Invalid credentials").Write(w)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		slog.WarnContext(r.Context(), "Login rejected", "email", email)
		UnprocessableEntityError("Invalid credentials").Write(w)
		return
	}

	s.sessions.Create(w, user.ID)

	if device := sanitizeInput(r.Header.Get("User-Agent")); device != "" {
		if err := s.repo.AddDevice(r.Context(), user.ID, device); err != nil {
			slog.ErrorContext(r.Context(), "Failed to record login device",
				"user_id", user.ID, "error", err)
		}
	}

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)
	w.Header().Set("HX-Redirect", "/dashboard")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "register.html", nil)
	case http.MethodPost:
		s.handleRegisterSubmit(w, r)
	default:
		RequireMethod(r, http.MethodGet, http.MethodPost).Write(w)
	}
}

func (s *Server) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	password := r.Form.Get("password")
	if len(password) < 6 {
		UnprocessableEntityError(core.ErrPasswordTooWeak.Error()).Write(w)
		return
	}

	user := core.User{
		ID:    uuid.NewString(),
		Name:  sanitizeInput(r.Form.Get("name")),
		Email: sanitizeInput(r.Form.Get("email")),
	}
	if err := user.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	exists, err := s.repo.UserExists(r.Context(), user.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "Registration existence check failed", "error", err)
		InternalServerError("Registration failed").Write(w)
		return
	}
	if exists {
		UnprocessableEntityError("Email already registered").Write(w)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		InternalServerError("Registration failed").Write(w)
		return
	}
	user.PasswordHash = hash

	// Creates the user row and the twelve revenue buckets atomically.
	if err := s.repo.CreateUser(r.Context(), user); err != nil {
		slog.ErrorContext(r.Context(), "User creation failed", "error", err, "email", user.Email)
		InternalServerError("Registration failed").Write(w)
		return
	}

	s.sessions.Create(w, user.ID)
	slog.InfoContext(r.Context(), "User registered", "user_id", user.ID)
	w.Header().Set("HX-Redirect", "/dashboard")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	s.sessions.Clear(w)
	w.Header().Set("HX-Redirect", "/login")
	w.WriteHeader(http.StatusOK)
}
