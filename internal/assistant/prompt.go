package assistant

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// Prompt builders. Both prompts embed the caller's actual ledger data and
// instruct the service to ground its answer in it.

func buildChatPrompt(message, month string, s core.Summary, limits []core.CategoryLimit, recent []core.Transaction, notes []core.MemoryNote) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant. Answer the user's question using only the data below. ")
	b.WriteString("Be concise and concrete; quote amounts from the data rather than guessing.\n\n")

	fmt.Fprintf(&b, "Current month: %s\n", month)
	fmt.Fprintf(&b, "Income: %s | Expenses: %s | Balance: %s\n", s.Income, s.Expense, s.Balance)

	if len(s.Categories) > 0 {
		b.WriteString("Spending by category:\n")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "- %s: %s\n", c.Category, c.Total)
		}
	}

	if len(limits) > 0 {
		b.WriteString("Monthly limits:\n")
		for _, l := range limits {
			fmt.Fprintf(&b, "- %s: %s\n", l.Category, l.Monthly)
		}
	}

	if len(recent) > 0 {
		b.WriteString("Recent transactions (newest first):\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "- %s %s %s %s", t.Date, t.Kind, t.Category, t.Amount)
			if t.Note != "" {
				fmt.Fprintf(&b, " (%s)", t.Note)
			}
			b.WriteString("\n")
		}
	}

	writeNotes(&b, notes)

	fmt.Fprintf(&b, "\nUser message: %s\n", message)
	return b.String()
}

func buildInsightPrompt(s core.Summary, exceeded, near []core.Violation, notes []core.MemoryNote) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant. Analyze the following monthly data and provide a short, actionable insight (max 3 sentences). ")
	b.WriteString("If expenses exceed income or are close to it, warn the user to reduce expenses.\n\n")

	fmt.Fprintf(&b, "Income: %s\nExpenses: %s\nBalance: %s\n", s.Income, s.Expense, s.Balance)

	if len(s.Categories) > 0 {
		top := s.Categories
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, 0, len(top))
		for _, c := range top {
			names = append(names, fmt.Sprintf("%s (%s)", c.Category, c.Total))
		}
		fmt.Fprintf(&b, "Top categories: %s\n", strings.Join(names, ", "))
	}

	for _, v := range exceeded {
		fmt.Fprintf(&b, "Limit exceeded: %s spent %s of %s\n", v.Category, v.Spent, v.Limit)
	}
	for _, v := range near {
		fmt.Fprintf(&b, "Near limit: %s spent %s of %s\n", v.Category, v.Spent, v.Limit)
	}

	writeNotes(&b, notes)

	return b.String()
}

func writeNotes(b *strings.Builder, notes []core.MemoryNote) {
	var goals, instructions, other []string
	for _, n := range notes {
		switch n.Tag {
		case core.TagGoal:
			goals = append(goals, n.Content)
		case core.TagInstruction:
			instructions = append(instructions, n.Content)
		default:
			other = append(other, fmt.Sprintf("%s: %s", n.Tag, n.Content))
		}
	}
	if len(goals) > 0 {
		fmt.Fprintf(b, "User goals: %s\n", strings.Join(goals, "; "))
	}
	if len(instructions) > 0 {
		fmt.Fprintf(b, "User instructions: %s\n", strings.Join(instructions, "; "))
	}
	if len(other) > 0 {
		fmt.Fprintf(b, "Other notes: %s\n", strings.Join(other, "; "))
	}
}
