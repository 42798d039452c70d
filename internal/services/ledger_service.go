// Package services orchestrates ledger operations across the SQLite store
// and the optional AMQP event stream.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// LedgerService is the write path for the ledger plus the advisory budget
// guard. Reads delegate to the repository so every summary recomputes from
// the store.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  *amqp.Client
}

func NewLedgerService(st *storage.SQLiteRepository, events *amqp.Client) *LedgerService {
	return &LedgerService{
		storage: st,
		events:  events,
	}
}

// Record validates and persists a transaction. Expenses pass through the
// balance guard atomically inside the store; after a successful expense
// insert the budget guard runs advisorily and may return a warning. The
// warning never blocks the write.
func (s *LedgerService) Record(ctx context.Context, t core.Transaction) (int64, *core.Violation, error) {
	if err := t.Validate(); err != nil {
		return 0, nil, err
	}

	id, err := s.storage.CreateTransaction(ctx, t)
	if err != nil {
		return 0, nil, fmt.Errorf("record transaction: %w", err)
	}

	s.publish(ctx, amqp.NewTransactionRecorded(t.OwnerID, id, t.Category, t.Amount.Cents))

	var violation *core.Violation
	if t.Kind == core.Expense {
		month := t.Date[:len(core.MonthLayout)]
		violation, err = s.CheckCategoryLimit(ctx, t.OwnerID, t.Category, month)
		if err != nil {
			// Advisory path: the transaction is saved, log and move on.
			slog.ErrorContext(ctx, "Budget check failed after insert",
				"owner_id", t.OwnerID, "category", t.Category, "error", err)
			return id, nil, nil
		}
		if violation != nil {
			s.publish(ctx, amqp.NewBudgetExceeded(t.OwnerID, violation.Category, violation.ExceededBy.Cents))
		}
	}

	return id, violation, nil
}

// Delete removes the owner's transaction. Missing rows are a no-op.
func (s *LedgerService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.storage.DeleteTransaction(ctx, ownerID, id)
}

func (s *LedgerService) List(ctx context.Context, ownerID int64, f storage.TxFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, ownerID, f)
}

// RecentTransactions returns the newest entries of any kind, most recent
// first.
func (s *LedgerService) RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, ownerID, storage.TxFilter{Limit: limit})
}

func (s *LedgerService) Summary(ctx context.Context, ownerID int64, month string) (core.Summary, error) {
	return s.storage.Summary(ctx, ownerID, month)
}

func (s *LedgerService) Months(ctx context.Context, ownerID int64) ([]string, error) {
	return s.storage.Months(ctx, ownerID)
}

func (s *LedgerService) SetLimit(ctx context.Context, l core.CategoryLimit) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return s.storage.UpsertLimit(ctx, l)
}

func (s *LedgerService) Limits(ctx context.Context, ownerID int64) ([]core.CategoryLimit, error) {
	return s.storage.ListLimits(ctx, ownerID)
}

// CheckCategoryLimit returns a Violation iff spend for the category within
// the month exceeds its configured limit. No configured limit means no
// violation.
func (s *LedgerService) CheckCategoryLimit(ctx context.Context, ownerID int64, category, month string) (*core.Violation, error) {
	limit, ok, err := s.storage.GetLimit(ctx, ownerID, category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	spent, err := s.storage.CategoryMonthExpense(ctx, ownerID, category, month)
	if err != nil {
		return nil, err
	}
	if core.ClassifySpend(spent, limit.Monthly) != core.SeverityExceeded {
		return nil, nil
	}
	return &core.Violation{
		Category:   category,
		Limit:      limit.Monthly,
		Spent:      spent,
		ExceededBy: core.Money{Cents: spent.Cents - limit.Monthly.Cents},
	}, nil
}

// BudgetReport grades every configured limit for the month, returning
// exceeded violations and near-limit warnings separately.
func (s *LedgerService) BudgetReport(ctx context.Context, ownerID int64, month string) (exceeded []core.Violation, near []core.Violation, err error) {
	limits, err := s.storage.ListLimits(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	for _, l := range limits {
		spent, err := s.storage.CategoryMonthExpense(ctx, ownerID, l.Category, month)
		if err != nil {
			return nil, nil, err
		}
		v := core.Violation{
			Category:   l.Category,
			Limit:      l.Monthly,
			Spent:      spent,
			ExceededBy: core.Money{Cents: spent.Cents - l.Monthly.Cents},
		}
		switch core.ClassifySpend(spent, l.Monthly) {
		case core.SeverityExceeded:
			exceeded = append(exceeded, v)
		case core.SeverityNear:
			near = append(near, v)
		}
	}
	return exceeded, near, nil
}

// Remember stores a tagged assistant note (idempotent per content).
func (s *LedgerService) Remember(ctx context.Context, n core.MemoryNote) error {
	return s.storage.UpsertNote(ctx, n)
}

// Recall returns note contents for one tag in insertion order.
func (s *LedgerService) Recall(ctx context.Context, ownerID int64, tag string) ([]string, error) {
	return s.storage.ListNotes(ctx, ownerID, tag)
}

// RecallAll returns every note for the owner.
func (s *LedgerService) RecallAll(ctx context.Context, ownerID int64) ([]core.MemoryNote, error) {
	return s.storage.AllNotes(ctx, ownerID)
}

func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		// Eventing is best-effort; the write already committed.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type, "owner_id", e.OwnerID, "error", err)
	}
}

// Close closes the store and the event client.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
