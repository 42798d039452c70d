package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
)

// Insight is the generated spending commentary plus where it came from.
type Insight struct {
	Insight string `json:"insight"`
	Source  string `json:"source"`
}

const (
	SourceAI    = "AI"
	SourceRules = "rule-based"
)

// Insights produces a short actionable reading of a month's finances.
type Insights struct {
	ledger Ledger
	gen    Generator
}

func NewInsights(ledger Ledger, gen Generator) *Insights {
	return &Insights{ledger: ledger, gen: gen}
}

// Get computes the summary and budget report for the month and renders an
// insight, preferring the generative service and degrading silently to the
// rule-based text. An empty month means all time; the budget report then
// covers the current month.
func (g *Insights) Get(ctx context.Context, ownerID int64, month string) (Insight, error) {
	summary, err := g.ledger.Summary(ctx, ownerID, month)
	if err != nil {
		return Insight{}, fmt.Errorf("summary: %w", err)
	}

	budgetMonth := month
	if budgetMonth == "" {
		budgetMonth = core.CurrentMonth()
	}
	exceeded, near, err := g.ledger.BudgetReport(ctx, ownerID, budgetMonth)
	if err != nil {
		return Insight{}, fmt.Errorf("budget report: %w", err)
	}

	if g.gen != nil {
		notes, err := g.ledger.RecallAll(ctx, ownerID)
		if err != nil {
			return Insight{}, fmt.Errorf("memory: %w", err)
		}
		prompt := buildInsightPrompt(summary, exceeded, near, notes)
		if text, err := g.gen.Generate(ctx, prompt); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return Insight{Insight: text, Source: SourceAI}, nil
			}
		} else {
			slog.WarnContext(ctx, "Generative insight failed, using rules",
				"owner_id", ownerID, "error", err)
		}
	}

	return Insight{
		Insight: ruleInsight(summary, exceeded, near),
		Source:  SourceRules,
	}, nil
}

// ruleInsight is the deterministic fallback. Thresholds grade expense
// against income; limit findings are appended one per line.
func ruleInsight(s core.Summary, exceeded, near []core.Violation) string {
	var primary string
	switch {
	case s.Income.Cents == 0 && s.Expense.Cents == 0:
		primary = "No data for this month yet. Start tracking your transactions!"
	case s.Expense.Cents*10 > s.Income.Cents*9:
		primary = fmt.Sprintf("Warning: your expenses (%s) are dangerously close to or exceed your income (%s). You need to cut down immediately.", s.Expense, s.Income)
		if top, ok := s.TopCategory(); ok {
			primary += fmt.Sprintf(" Consider reducing your spending on %s.", top.Category)
		}
	case s.Expense.Cents*10 > s.Income.Cents*7:
		primary = "You are spending a significant portion of your income."
		if top, ok := s.TopCategory(); ok {
			primary += fmt.Sprintf(" Keep an eye on %s.", top.Category)
		}
	default:
		primary = fmt.Sprintf("Great job! You have saved %s this month. Your spending is well under control.", s.Balance)
	}

	lines := []string{primary}
	for _, v := range exceeded {
		lines = append(lines, fmt.Sprintf("You've exceeded your %s budget: spent %s of %s (%s over).",
			v.Category, v.Spent, v.Limit, v.ExceededBy))
	}
	for _, v := range near {
		lines = append(lines, fmt.Sprintf("You're close to your %s limit: spent %s of %s.",
			v.Category, v.Spent, v.Limit))
	}
	return strings.Join(lines, "\n")
}
