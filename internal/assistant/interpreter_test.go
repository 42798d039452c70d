package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fintrack/internal/core"
)

// fakeLedger is an in-memory Ledger for interpreter and insight tests.
type fakeLedger struct {
	summary  core.Summary
	allTime  *core.Summary // returned for an empty month filter when set
	limits   []core.CategoryLimit
	recent   []core.Transaction
	notes    []core.MemoryNote
	exceeded []core.Violation
	near     []core.Violation

	failSummary bool
}

func (f *fakeLedger) Summary(ctx context.Context, ownerID int64, month string) (core.Summary, error) {
	if f.failSummary {
		return core.Summary{}, errors.New("store down")
	}
	if month == "" && f.allTime != nil {
		return *f.allTime, nil
	}
	return f.summary, nil
}

func (f *fakeLedger) RecentTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeLedger) Limits(ctx context.Context, ownerID int64) ([]core.CategoryLimit, error) {
	return f.limits, nil
}

func (f *fakeLedger) SetLimit(ctx context.Context, l core.CategoryLimit) error {
	f.limits = append(f.limits, l)
	return nil
}

func (f *fakeLedger) BudgetReport(ctx context.Context, ownerID int64, month string) ([]core.Violation, []core.Violation, error) {
	return f.exceeded, f.near, nil
}

func (f *fakeLedger) Remember(ctx context.Context, n core.MemoryNote) error {
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeLedger) RecallAll(ctx context.Context, ownerID int64) ([]core.MemoryNote, error) {
	return f.notes, nil
}

// fakeGenerator returns a canned reply or error.
type fakeGenerator struct {
	reply  string
	err    error
	prompt string // last prompt seen
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func TestRememberInstruction(t *testing.T) {
	ledger := &fakeLedger{}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "Remember that I hate eating out")
	if len(ledger.notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(ledger.notes))
	}
	n := ledger.notes[0]
	if n.Tag != core.TagInstruction || n.Content != "i hate eating out" {
		t.Fatalf("unexpected note: %+v", n)
	}
	if !strings.Contains(reply, "i hate eating out") {
		t.Fatalf("reply should confirm verbatim, got %q", reply)
	}
}

func TestKeepInMindVariant(t *testing.T) {
	ledger := &fakeLedger{}
	interp := NewInterpreter(ledger, nil)

	interp.Reply(context.Background(), 1, "keep in mind that rent is due on the 3rd")
	if len(ledger.notes) != 1 || ledger.notes[0].Content != "rent is due on the 3rd" {
		t.Fatalf("unexpected notes: %+v", ledger.notes)
	}
}

func TestSetGoal(t *testing.T) {
	ledger := &fakeLedger{}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "set goal to save 500 every month")
	if len(ledger.notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(ledger.notes))
	}
	if ledger.notes[0].Tag != core.TagGoal || ledger.notes[0].Content != "save 500 every month" {
		t.Fatalf("unexpected note: %+v", ledger.notes[0])
	}
	if !strings.Contains(reply, "save 500 every month") {
		t.Fatalf("reply should confirm the goal, got %q", reply)
	}
}

func TestSetLimitCommand(t *testing.T) {
	ledger := &fakeLedger{}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "set limit for eating out to 250.50")
	if len(ledger.limits) != 1 {
		t.Fatalf("expected 1 limit, got %d", len(ledger.limits))
	}
	l := ledger.limits[0]
	if l.Category != "Eating Out" {
		t.Fatalf("category not title-cased: %q", l.Category)
	}
	if l.Monthly.Cents != 25050 {
		t.Fatalf("expected 25050 cents, got %d", l.Monthly.Cents)
	}
	if !strings.Contains(reply, "Eating Out") || !strings.Contains(reply, "250.50") {
		t.Fatalf("reply should confirm category and amount, got %q", reply)
	}
}

func TestSetLimitWithoutFiller(t *testing.T) {
	ledger := &fakeLedger{}
	interp := NewInterpreter(ledger, nil)

	interp.Reply(context.Background(), 1, "limit food 300")
	if len(ledger.limits) != 1 || ledger.limits[0].Category != "Food" || ledger.limits[0].Monthly.Cents != 30000 {
		t.Fatalf("unexpected limits: %+v", ledger.limits)
	}
}

func TestDelegatesToGenerator(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 30000},
			Balance: core.Money{Cents: 70000},
			Categories: []core.CategoryTotal{
				{Category: "Food", Total: core.Money{Cents: 30000}},
			},
		},
		recent: []core.Transaction{
			{Kind: core.Expense, Category: "Food", Amount: core.Money{Cents: 30000}, Date: "2026-02-01"},
		},
		notes: []core.MemoryNote{{Tag: core.TagGoal, Content: "retire early"}},
	}
	gen := &fakeGenerator{reply: "You are on track."}
	interp := NewInterpreter(ledger, gen)

	reply := interp.Reply(context.Background(), 1, "am I doing ok financially?")
	if reply != "You are on track." {
		t.Fatalf("expected generator reply verbatim, got %q", reply)
	}
	// The prompt must embed the ledger context.
	for _, want := range []string{"300.00", "Food", "retire early", "am I doing ok financially?"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestGeneratorFailureFallsThrough(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 25000},
			Balance: core.Money{Cents: 75000},
		},
	}
	gen := &fakeGenerator{err: errors.New("service unavailable")}
	interp := NewInterpreter(ledger, gen)

	reply := interp.Reply(context.Background(), 1, "what's my balance?")
	if !strings.Contains(reply, "750.00") {
		t.Fatalf("expected rule-based balance reply, got %q", reply)
	}
}

func TestGeneratorEmptyReplyFallsThrough(t *testing.T) {
	ledger := &fakeLedger{}
	gen := &fakeGenerator{reply: "   "}
	interp := NewInterpreter(ledger, gen)

	reply := interp.Reply(context.Background(), 1, "hello there")
	if reply == "" || strings.TrimSpace(reply) == "" {
		t.Fatal("expected a rule-based reply for empty generator output")
	}
}

func TestKeywordLimits(t *testing.T) {
	ledger := &fakeLedger{
		limits: []core.CategoryLimit{
			{Category: "Food", Monthly: core.Money{Cents: 50000}},
			{Category: "Travel", Monthly: core.Money{Cents: 20000}},
		},
	}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "show my budget")
	if !strings.Contains(reply, "Food: 500.00") || !strings.Contains(reply, "Travel: 200.00") {
		t.Fatalf("expected limits listing, got %q", reply)
	}
}

func TestKeywordLimitsNoneConfigured(t *testing.T) {
	interp := NewInterpreter(&fakeLedger{}, nil)
	reply := interp.Reply(context.Background(), 1, "what about my budget")
	if !strings.Contains(reply, "set limit") {
		t.Fatalf("expected a hint to set limits, got %q", reply)
	}
}

func TestKeywordSpending(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Expense: core.Money{Cents: 42000},
			Categories: []core.CategoryTotal{
				{Category: "Rent", Total: core.Money{Cents: 30000}},
			},
		},
	}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "how is my spending")
	if !strings.Contains(reply, "420.00") || !strings.Contains(reply, "Rent") {
		t.Fatalf("expected expense total and top category, got %q", reply)
	}
}

func TestKeywordBalanceIsAllTime(t *testing.T) {
	// A user whose January income funds February spending: the balance
	// reply must quote the running balance, not the month's net.
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 0},
			Expense: core.Money{Cents: 20000},
			Balance: core.Money{Cents: -20000},
		},
		allTime: &core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 20000},
			Balance: core.Money{Cents: 80000},
		},
	}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "what's my balance?")
	if !strings.Contains(reply, "800.00") || !strings.Contains(reply, "1000.00") {
		t.Fatalf("expected running balance and total income, got %q", reply)
	}
	if strings.Contains(reply, "-200.00") {
		t.Fatalf("reply used the month-filtered balance: %q", reply)
	}
}

func TestKeywordAdvice(t *testing.T) {
	interp := NewInterpreter(&fakeLedger{}, nil)
	reply := interp.Reply(context.Background(), 1, "any saving tips?")
	if !strings.Contains(reply, "50/30/20") {
		t.Fatalf("expected the 50/30/20 tip, got %q", reply)
	}
}

func TestKeywordSummary(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{
			Income:  core.Money{Cents: 100000},
			Expense: core.Money{Cents: 20000},
			Balance: core.Money{Cents: 80000},
		},
	}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "give me a summary")
	if !strings.Contains(reply, "800.00") {
		t.Fatalf("expected insight text naming the balance, got %q", reply)
	}
}

func TestNoMatchGenericStatus(t *testing.T) {
	ledger := &fakeLedger{
		summary: core.Summary{Expense: core.Money{Cents: 1500}},
	}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "xyzzy")
	if !strings.Contains(reply, "15.00") {
		t.Fatalf("expected generic status with month expense, got %q", reply)
	}
}

func TestInternalFailureYieldsApology(t *testing.T) {
	ledger := &fakeLedger{failSummary: true}
	interp := NewInterpreter(ledger, nil)

	reply := interp.Reply(context.Background(), 1, "what's my balance?")
	if reply != apology {
		t.Fatalf("expected apology, got %q", reply)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"food":           "Food",
		"eating out":     "Eating Out",
		"  eating  out ": "Eating Out",
	}
	for in, want := range cases {
		if got := titleCase(strings.TrimSpace(in)); got != want {
			t.Fatalf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
