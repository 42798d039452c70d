package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = sanitizeInput(req.Username)

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required.")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required.")
		return
	}

	token, err := s.auth.Register(r.Context(), req.Username, req.Password, sanitizeInput(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, http.StatusConflict, fmt.Sprintf("User %s is already registered.", req.Username))
			return
		}
		slog.ErrorContext(r.Context(), "Registration failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = sanitizeInput(req.Username)

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Incorrect username or password.")
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
