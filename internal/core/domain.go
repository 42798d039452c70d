package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

// DateLayout is the calendar-date wire format used across the ledger.
const DateLayout = "2006-01-02"

// MonthLayout is the year-month prefix used for month filters.
const MonthLayout = "2006-01"

type (
	TransactionKind string

	// Transaction is a single immutable ledger entry owned by one user.
	Transaction struct {
		ID       int64
		OwnerID  int64
		Kind     TransactionKind
		Category string
		Amount   Money
		Note     string
		Date     string // YYYY-MM-DD
	}

	// CategoryLimit is a per-user monthly spending cap for one category.
	CategoryLimit struct {
		OwnerID  int64
		Category string
		Monthly  Money
	}

	// MemoryNote is a durable tagged note consumed by the assistant.
	MemoryNote struct {
		OwnerID int64
		Tag     string
		Content string
	}

	// Violation is an advisory budget-limit breach for one category.
	Violation struct {
		Category   string
		Limit      Money
		Spent      Money
		ExceededBy Money
	}
)

// Memory note tags written by the built-in assistant commands. The tag space
// itself is open.
const (
	TagInstruction = "instruction"
	TagGoal        = "goal"
	TagPreference  = "preference"
)

var (
	ErrInvalidKind   = errors.New("type must be 'income' or 'expense'")
	ErrEmptyCategory = errors.New("category is required")
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")

	// ErrBalanceExceeded is returned when an expense would drive the
	// running balance below zero.
	ErrBalanceExceeded = errors.New("expense cannot exceed current balance")
)

// Severity classifies actual spend against a category limit.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityNear          // spent > 80% of the limit but within it
	SeverityExceeded
)

// ClassifySpend grades spend against a monthly limit. Comparisons run on
// cents to stay exact.
func ClassifySpend(spent, limit Money) Severity {
	switch {
	case spent.Cents > limit.Cents:
		return SeverityExceeded
	case spent.Cents*5 > limit.Cents*4:
		return SeverityNear
	default:
		return SeverityNone
	}
}

// BalanceError reports a rejected expense together with the balance it was
// checked against. It unwraps to ErrBalanceExceeded.
type BalanceError struct {
	Balance   Money
	Attempted Money
}

func (e *BalanceError) Error() string {
	return "expense of " + e.Attempted.String() + " exceeds current balance of " + e.Balance.String()
}

func (e *BalanceError) Unwrap() error { return ErrBalanceExceeded }

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

func (l CategoryLimit) Validate() error {
	if strings.TrimSpace(l.Category) == "" {
		return ErrEmptyCategory
	}
	return l.Monthly.Validate()
}

// CurrentMonth returns the current calendar month as "YYYY-MM".
func CurrentMonth() string {
	return time.Now().Format(MonthLayout)
}

// Today returns the current calendar date as "YYYY-MM-DD".
func Today() string {
	return time.Now().Format(DateLayout)
}

// ValidMonth reports whether s is a well-formed "YYYY-MM" month.
func ValidMonth(s string) bool {
	_, err := time.Parse(MonthLayout, s)
	return err == nil
}
