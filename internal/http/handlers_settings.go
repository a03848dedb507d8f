package http

import (
	"log/slog"
	"net/http"

	"fima/internal/auth"
	"fima/internal/core"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSettingsPage(w, r)
	case http.MethodPost:
		s.handleSettingsSubmit(w, r)
	default:
		RequireMethod(r, http.MethodGet, http.MethodPost).Write(w)
	}
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings user lookup failed", "user_id", userID, "error", err)
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	devices, err := s.repo.ListDevices(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Device list error", "user_id", userID, "error", err)
	}

	type deviceRow struct {
		Name      string
		LastLogin string
	}
	data := struct {
		Name    string
		Email   string
		Devices []deviceRow
	}{Name: user.Name, Email: user.Email}
	for _, d := range devices {
		data.Devices = append(data.Devices, deviceRow{
			Name:      d.Name,
			LastLogin: d.LastLogin.Format("2006-01-02 15:04"),
		})
	}

	s.render(w, r, "settings.html", data)
}

// handleSettingsSubmit updates the profile. The password only changes when
// a new one is provided; current credentials must match first.
func (s *Server) handleSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Settings user lookup failed", "user_id", userID, "error", err)
		InternalServerError("Could not update settings").Write(w)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, r.Form.Get("current_password")) {
		UnprocessableEntityError("Current password is incorrect").Write(w)
		return
	}

	user.Name = sanitizeInput(r.Form.Get("name"))
	user.Email = sanitizeInput(r.Form.Get("email"))
	if err := user.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if newPassword := r.Form.Get("new_password"); newPassword != "" {
		if len(newPassword) < 6 {
			UnprocessableEntityError(core.ErrPasswordTooWeak.Error()).Write(w)
			return
		}
		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
			InternalServerError("Could not update settings").Write(w)
			return
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUserSettings(r.Context(), user); err != nil {
		slog.ErrorContext(r.Context(), "Settings update failed", "user_id", userID, "error", err)
		InternalServerError("Could not update settings").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerSuccessNotification("Settings saved").
		Write(w)
}
