package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestInsightNoData(t *testing.T) {
	ins := NewInsights(&fakeLedger{}, nil)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceRules {
		t.Fatalf("expected rule-based source, got %q", got.Source)
	}
	if !strings.Contains(got.Insight, "No data") {
		t.Fatalf("unexpected insight: %q", got.Insight)
	}
}

func TestInsightDangerThreshold(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 95000},
			Balance: core.Money{Cents: 5000},
			Categories: []core.CategoryTotal{
				{Category: "Rent", Total: core.Money{Cents: 60000}},
			},
		},
	}
	ins := NewInsights(ledger, nil)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Insight, "Warning") || !strings.Contains(got.Insight, "Rent") {
		t.Fatalf("expected danger warning naming Rent, got %q", got.Insight)
	}
}

func TestInsightModerateThreshold(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 75000},
			Balance: core.Money{Cents: 25000},
			Categories: []core.CategoryTotal{
				{Category: "Food", Total: core.Money{Cents: 40000}},
			},
		},
	}
	ins := NewInsights(ledger, nil)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Insight, "significant portion") || !strings.Contains(got.Insight, "Food") {
		t.Fatalf("expected moderate warning naming Food, got %q", got.Insight)
	}
}

func TestInsightHealthy(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 40000},
			Balance: core.Money{Cents: 60000},
		},
	}
	ins := NewInsights(ledger, nil)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Insight, "Great job") || !strings.Contains(got.Insight, "600.00") {
		t.Fatalf("expected healthy insight with savings amount, got %q", got.Insight)
	}
}

func TestInsightAppendsViolations(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 40000},
			Balance: core.Money{Cents: 60000},
		},
		exceeded: []core.Violation{
			{
				Category:   "Food",
				Spent:      core.Money{Cents: 15000},
				Limit:      core.Money{Cents: 10000},
				ExceededBy: core.Money{Cents: 5000},
			},
		},
		near: []core.Violation{
			{
				Category: "Travel",
				Spent:    core.Money{Cents: 18000},
				Limit:    core.Money{Cents: 20000},
			},
		},
	}
	ins := NewInsights(ledger, nil)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(got.Insight, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), got.Insight)
	}
	if !strings.Contains(lines[1], "exceeded") || !strings.Contains(lines[1], "Food") || !strings.Contains(lines[1], "50.00 over") {
		t.Fatalf("unexpected exceeded line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "close to") || !strings.Contains(lines[2], "Travel") {
		t.Fatalf("unexpected near line: %q", lines[2])
	}
}

func TestInsightPrefersGenerator(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 40000},
			Balance: core.Money{Cents: 60000},
		},
		notes: []core.MemoryNote{{Tag: core.TagInstruction, Content: "i hate eating out"}},
	}
	gen := &fakeGenerator{reply: "Solid month, keep it up."}
	ins := NewInsights(ledger, gen)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceAI || got.Insight != "Solid month, keep it up." {
		t.Fatalf("expected AI insight verbatim, got %+v", got)
	}
	for _, want := range []string{"400.00", "i hate eating out"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestInsightGeneratorFailureDegrades(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 40000},
			Balance: core.Money{Cents: 60000},
		},
	}
	gen := &fakeGenerator{err: errors.New("quota exhausted")}
	ins := NewInsights(ledger, gen)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceRules || !strings.Contains(got.Insight, "Great job") {
		t.Fatalf("expected rule-based fallback, got %+v", got)
	}
}

func TestInsightEmptyGeneratorReplyDegrades(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 40000},
			Balance: core.Money{Cents: 60000},
		},
	}
	gen := &fakeGenerator{reply: "\n  "}
	ins := NewInsights(ledger, gen)

	got, err := ins.Get(context.Background(), 1, "2026-02")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceRules {
		t.Fatalf("expected rule-based fallback for empty reply, got %+v", got)
	}
}

func TestInsightSummaryErrorPropagates(t *testing.T) {
	ins := NewInsights(&fakeLedger{failSummary: true}, nil)
	if _, err := ins.Get(context.Background(), 1, "2026-02"); err == nil {
		t.Fatal("expected error when summary fails")
	}
}
