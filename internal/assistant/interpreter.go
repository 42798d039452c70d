package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"fintrack/internal/core"
)

// Interpreter turns free-text messages into ledger mutations or answers.
// It is stateless per call: every invocation reads the store fresh.
type Interpreter struct {
	ledger Ledger
	gen    Generator
}

func NewInterpreter(ledger Ledger, gen Generator) *Interpreter {
	return &Interpreter{ledger: ledger, gen: gen}
}

const apology = "Sorry, something went wrong on my side. Please try again."

// commandRule pairs a pattern with its handler. Rules are evaluated in
// order; the first match wins.
type commandRule struct {
	name    string
	pattern *regexp.Regexp
	handle  func(ctx context.Context, ownerID int64, groups []string) (string, error)
}

var (
	rememberRe = regexp.MustCompile(`^(?:remember|keep in mind)(?:\s+that)?\s+(.+)$`)
	goalRe     = regexp.MustCompile(`^(?:set\s+)?goal(?:\s+to)?\s+(.+)$`)
	limitRe    = regexp.MustCompile(`^(?:set\s+)?limit(?:\s+for)?\s+(.+?)\s+(?:to\s+)?(\d+(?:[.,]\d+)?)$`)
)

// Reply processes one message for the owner. It never returns an error:
// internal failures are logged and replaced with a generic apology.
func (i *Interpreter) Reply(ctx context.Context, ownerID int64, message string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Interpreter panic", "owner_id", ownerID, "panic", r)
			reply = apology
		}
	}()

	norm := strings.ToLower(strings.TrimSpace(message))

	for _, rule := range i.commandRules() {
		groups := rule.pattern.FindStringSubmatch(norm)
		if groups == nil {
			continue
		}
		out, err := rule.handle(ctx, ownerID, groups)
		if err != nil {
			slog.ErrorContext(ctx, "Interpreter command failed",
				"command", rule.name, "owner_id", ownerID, "error", err)
			return apology
		}
		return out
	}

	// Anything else: delegate to the generative service when available.
	if i.gen != nil {
		if out, err := i.delegate(ctx, ownerID, message); err == nil {
			return out
		} else {
			slog.WarnContext(ctx, "Generative service unavailable, using rules",
				"owner_id", ownerID, "error", err)
		}
	}

	out, err := i.ruleReply(ctx, ownerID, norm)
	if err != nil {
		slog.ErrorContext(ctx, "Interpreter fallback failed", "owner_id", ownerID, "error", err)
		return apology
	}
	return out
}

func (i *Interpreter) commandRules() []commandRule {
	return []commandRule{
		{
			name:    "remember-instruction",
			pattern: rememberRe,
			handle: func(ctx context.Context, ownerID int64, groups []string) (string, error) {
				text := strings.TrimSpace(groups[1])
				err := i.ledger.Remember(ctx, core.MemoryNote{
					OwnerID: ownerID,
					Tag:     core.TagInstruction,
					Content: text,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Got it, I'll keep in mind: %q.", text), nil
			},
		},
		{
			name:    "set-goal",
			pattern: goalRe,
			handle: func(ctx context.Context, ownerID int64, groups []string) (string, error) {
				text := strings.TrimSpace(groups[1])
				err := i.ledger.Remember(ctx, core.MemoryNote{
					OwnerID: ownerID,
					Tag:     core.TagGoal,
					Content: text,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Goal saved: %q. I'll factor it into my advice.", text), nil
			},
		},
		{
			name:    "set-limit",
			pattern: limitRe,
			handle: func(ctx context.Context, ownerID int64, groups []string) (string, error) {
				category := titleCase(strings.TrimSpace(groups[1]))
				cents, err := core.ParseDecimalToCents(groups[2])
				if err != nil {
					return fmt.Sprintf("I couldn't read %q as an amount. Try e.g. \"set limit for food to 500\".", groups[2]), nil
				}
				l := core.CategoryLimit{
					OwnerID:  ownerID,
					Category: category,
					Monthly:  core.Money{Cents: cents},
				}
				if err := i.ledger.SetLimit(ctx, l); err != nil {
					return "", err
				}
				return fmt.Sprintf("Done. Monthly limit for %s is now %s.", category, l.Monthly), nil
			},
		},
	}
}

// delegate builds a grounded prompt and returns the service's answer
// verbatim. Any failure, including an empty response, is an error so the
// caller falls through to the rule-based path.
func (i *Interpreter) delegate(ctx context.Context, ownerID int64, message string) (string, error) {
	month := core.CurrentMonth()

	summary, err := i.ledger.Summary(ctx, ownerID, month)
	if err != nil {
		return "", fmt.Errorf("summary for prompt: %w", err)
	}
	limits, err := i.ledger.Limits(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("limits for prompt: %w", err)
	}
	recent, err := i.ledger.RecentTransactions(ctx, ownerID, 15)
	if err != nil {
		return "", fmt.Errorf("recent transactions for prompt: %w", err)
	}
	notes, err := i.ledger.RecallAll(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("memory for prompt: %w", err)
	}

	prompt := buildChatPrompt(message, month, summary, limits, recent, notes)
	out, err := i.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty response from generative service")
	}
	return out, nil
}

// ruleReply answers keyword queries from the ledger directly. Tested in
// order; the first matching keyword group wins.
func (i *Interpreter) ruleReply(ctx context.Context, ownerID int64, norm string) (string, error) {
	month := core.CurrentMonth()

	switch {
	case containsAny(norm, "analyze", "summary", "report", "stats"):
		ins := Insights{ledger: i.ledger} // rule-based on purpose: keyword path stays deterministic
		res, err := ins.Get(ctx, ownerID, month)
		if err != nil {
			return "", err
		}
		return res.Insight, nil

	case containsAny(norm, "limit", "budget"):
		limits, err := i.ledger.Limits(ctx, ownerID)
		if err != nil {
			return "", err
		}
		if len(limits) == 0 {
			return "You haven't set any category limits yet. Say e.g. \"set limit for food to 500\" and I'll watch it for you.", nil
		}
		var b strings.Builder
		b.WriteString("Your monthly limits:\n")
		for _, l := range limits {
			fmt.Fprintf(&b, "- %s: %s\n", l.Category, l.Monthly)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case containsAny(norm, "spent", "spending", "expense"):
		s, err := i.ledger.Summary(ctx, ownerID, month)
		if err != nil {
			return "", err
		}
		reply := fmt.Sprintf("You've spent %s this month.", s.Expense)
		if top, ok := s.TopCategory(); ok {
			reply += fmt.Sprintf(" Your biggest category is %s at %s.", top.Category, top.Total)
		}
		return reply, nil

	case containsAny(norm, "balance", "income", "how much"):
		// The running balance, unfiltered: the same number the balance
		// guard checks expenses against.
		s, err := i.ledger.Summary(ctx, ownerID, "")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your current balance is %s, on total income of %s.", s.Balance, s.Income), nil

	case containsAny(norm, "save", "tip", "help", "advice"):
		return "A solid starting point is the 50/30/20 rule: 50% needs, 30% wants, 20% savings. " +
			"Tell me \"set limit for <category> to <amount>\" and I'll warn you when you get close.", nil
	}

	s, err := i.ledger.Summary(ctx, ownerID, month)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("This month you've spent %s so far. Ask me for a summary, your balance, "+
		"your limits, or say \"remember that ...\" and I'll keep it in mind.", s.Expense), nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// titleCase uppercases the first letter of each word, for category names
// parsed out of chat messages.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
