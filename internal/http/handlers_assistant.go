package http

import (
	"log/slog"
	"net/http"
	"strings"

	"fintrack/internal/core"
)

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month != "" && !core.ValidMonth(month) {
		writeError(w, http.StatusBadRequest, "Month must be YYYY-MM")
		return
	}

	insight, err := s.insights.Get(r.Context(), ownerID(r), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Insight generation failed", "owner_id", ownerID(r), "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate insight")
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// handleChat never surfaces interpreter errors: the reply is always a
// usable message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = sanitizeInput(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply := s.interp.Reply(r.Context(), ownerID(r), req.Message)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
