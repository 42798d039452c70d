// Package assistant layers a conversational interface over the ledger: a
// free-text command interpreter and a spending insight generator, both
// backed by an optional external generative service with a deterministic
// rule-based fallback.
package assistant

import (
	"context"

	"fintrack/internal/core"
)

// Ports for the ledger and the generative service.
type (
	// Ledger is what the assistant needs from the finance core. The
	// concrete implementation is services.LedgerService.
	Ledger interface {
		Summary(ctx context.Context, ownerID int64, month string) (core.Summary, error)
		RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error)
		Limits(ctx context.Context, ownerID int64) ([]core.CategoryLimit, error)
		SetLimit(ctx context.Context, l core.CategoryLimit) error
		BudgetReport(ctx context.Context, ownerID int64, month string) (exceeded, near []core.Violation, err error)
		Remember(ctx context.Context, n core.MemoryNote) error
		RecallAll(ctx context.Context, ownerID int64) ([]core.MemoryNote, error)
	}

	// Generator produces text from a prompt. A nil Generator means the
	// external service is not configured; every failure downgrades to the
	// rule-based path and is never surfaced to the user.
	Generator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}
)
