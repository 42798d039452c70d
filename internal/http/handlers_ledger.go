package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type transactionJSON struct {
	ID       int64   `json:"id"`
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note"`
	Date     string  `json:"date"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.TxFilter{
		Kind:  core.TransactionKind(strings.TrimSpace(q.Get("type"))),
		Month: strings.TrimSpace(q.Get("month")),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "Type must be 'income' or 'expense'")
		return
	}
	if filter.Month != "" && !core.ValidMonth(filter.Month) {
		writeError(w, http.StatusBadRequest, "Month must be YYYY-MM")
		return
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	txs, err := s.ledger.List(r.Context(), ownerID(r), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "owner_id", ownerID(r), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionJSON{
			ID:       t.ID,
			Type:     string(t.Kind),
			Category: t.Category,
			Amount:   t.Amount.Float(),
			Note:     t.Note,
			Date:     t.Date,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string      `json:"type"`
		Category string      `json:"category"`
		Amount   json.Number `json:"amount"`
		Note     string      `json:"note"`
		Date     string      `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t := core.Transaction{
		OwnerID:  ownerID(r),
		Kind:     core.TransactionKind(strings.TrimSpace(req.Type)),
		Category: sanitizeInput(req.Category),
		Note:     sanitizeInput(req.Note),
		Date:     strings.TrimSpace(req.Date),
	}
	if t.Date == "" {
		t.Date = core.Today()
	}
	if cents, err := core.ParseDecimalToCents(req.Amount.String()); err == nil {
		t.Amount = core.Money{Cents: cents}
	}

	id, violation, err := s.ledger.Record(r.Context(), t)
	if err != nil {
		var balErr *core.BalanceError
		switch {
		case errors.Is(err, core.ErrInvalidKind):
			writeError(w, http.StatusBadRequest, "Type must be 'income' or 'expense'")
		case errors.Is(err, core.ErrEmptyCategory):
			writeError(w, http.StatusBadRequest, "Category is required")
		case errors.Is(err, core.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "Amount must be a positive number")
		case errors.Is(err, core.ErrInvalidDate):
			writeError(w, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		case errors.As(err, &balErr):
			writeError(w, http.StatusBadRequest, fmt.Sprintf(
				"Expense cannot exceed your balance: balance is %s, attempted %s",
				balErr.Balance, balErr.Attempted))
		default:
			slog.ErrorContext(r.Context(), "Record transaction failed", "owner_id", t.OwnerID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save transaction")
		}
		return
	}

	resp := map[string]any{"success": true, "id": id}
	if violation != nil {
		resp["warning"] = fmt.Sprintf("Budget limit exceeded for %s: spent %s, limit %s, exceeded by %s",
			violation.Category, violation.Spent, violation.Limit, violation.ExceededBy)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleDeleteTransaction is idempotent: deleting a missing or foreign row
// still reports success.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Transaction id must be an integer")
		return
	}

	if err := s.ledger.Delete(r.Context(), ownerID(r), id); err != nil {
		slog.ErrorContext(r.Context(), "Delete transaction failed", "owner_id", ownerID(r), "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type summaryJSON struct {
	Income     float64             `json:"income"`
	Expense    float64             `json:"expense"`
	Balance    float64             `json:"balance"`
	Categories []categoryTotalJSON `json:"categories"`
	Trend      []monthFlowJSON     `json:"trend"`
}

type categoryTotalJSON struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type monthFlowJSON struct {
	Month   string  `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month != "" && !core.ValidMonth(month) {
		writeError(w, http.StatusBadRequest, "Month must be YYYY-MM")
		return
	}

	summary, err := s.ledger.Summary(r.Context(), ownerID(r), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary failed", "owner_id", ownerID(r), "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	out := summaryJSON{
		Income:     summary.Income.Float(),
		Expense:    summary.Expense.Float(),
		Balance:    summary.Balance.Float(),
		Categories: make([]categoryTotalJSON, 0, len(summary.Categories)),
		Trend:      make([]monthFlowJSON, 0, len(summary.Trend)),
	}
	for _, c := range summary.Categories {
		out.Categories = append(out.Categories, categoryTotalJSON{Category: c.Category, Total: c.Total.Float()})
	}
	for _, m := range summary.Trend {
		out.Trend = append(out.Trend, monthFlowJSON{Month: m.Month, Income: m.Income.Float(), Expense: m.Expense.Float()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.ledger.Limits(r.Context(), ownerID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "List limits failed", "owner_id", ownerID(r), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list limits")
		return
	}

	out := make(map[string]float64, len(limits))
	for _, l := range limits {
		out[l.Category] = l.Monthly.Float()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string      `json:"category"`
		Limit    json.Number `json:"limit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category := sanitizeInput(req.Category)
	if category == "" {
		writeError(w, http.StatusBadRequest, "Category is required")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Limit.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Limit must be a positive number")
		return
	}

	l := core.CategoryLimit{
		OwnerID:  ownerID(r),
		Category: category,
		Monthly:  core.Money{Cents: cents},
	}
	if err := s.ledger.SetLimit(r.Context(), l); err != nil {
		slog.ErrorContext(r.Context(), "Set limit failed", "owner_id", l.OwnerID, "category", category, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save limit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.ledger.Months(r.Context(), ownerID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "List months failed", "owner_id", ownerID(r), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list months")
		return
	}
	if months == nil {
		months = []string{}
	}
	writeJSON(w, http.StatusOK, months)
}
