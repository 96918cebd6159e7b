package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/store"
	"github.com/abhisek/querywise/internal/ui/components"
	"github.com/abhisek/querywise/internal/ui/theme"
)

// LLMEvents writes one row per collaborator call.
func LLMEvents(w io.Writer, events []store.LLMRequestEvent) {
	t := components.Table{
		Headers: []string{"ID", "When", "Purpose", "Model", "In", "Out", "Ms", "OK"},
		MaxCell: 28,
	}
	for _, e := range events {
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(e.ID),
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Purpose,
			e.Model,
			fmt.Sprint(e.InputTokens),
			fmt.Sprint(e.OutputTokens),
			fmt.Sprint(e.LatencyMs),
			mark(e.Success),
		})
	}
	fmt.Fprint(w, t.View())
}

// LLMEvent writes a single call with its captured request and response.
func LLMEvent(w io.Writer, e *store.LLMRequestEvent) {
	field := func(label, value string) {
		fmt.Fprintln(w, theme.Label.Render(label)+theme.Body.Render(value))
	}
	fmt.Fprintln(w, theme.Title.Render(fmt.Sprintf("LLM call #%d", e.ID)))
	field("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	field("Provider", e.Provider)
	field("Model", e.Model)
	field("Purpose", e.Purpose)
	field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens))
	field("Latency", fmt.Sprintf("%dms", e.LatencyMs))
	if e.Success {
		field("Result", theme.Good.Render("ok"))
	} else {
		field("Result", theme.Bad.Render(e.ErrorMessage))
	}

	for _, part := range []struct{ name, body string }{
		{"Request", e.RequestBody},
		{"Response", e.ResponseBody},
	} {
		fmt.Fprintln(w)
		fmt.Fprintln(w, theme.HeaderCell.Render(part.name))
		if part.body == "" {
			fmt.Fprintln(w, theme.Hint.Render("(not captured)"))
			continue
		}
		fmt.Fprintln(w, theme.Code.Render(part.body))
	}
}

// LLMUsage writes token usage per purpose and the estimated spend per model.
func LLMUsage(w io.Writer, purposes []store.PurposeUsage, models []store.ModelUsage) {
	byPurpose := components.Table{Headers: []string{"Purpose", "Calls", "Input", "Output", "Avg ms"}}
	var calls, in, out int
	for _, u := range purposes {
		byPurpose.Rows = append(byPurpose.Rows, []string{
			u.Purpose, fmt.Sprint(u.Calls), fmt.Sprint(u.InputTokens), fmt.Sprint(u.OutputTokens), fmt.Sprint(u.AvgLatencyMs),
		})
		calls += u.Calls
		in += u.InputTokens
		out += u.OutputTokens
	}
	byPurpose.Footnote = fmt.Sprintf("%d calls, %d tokens in, %d tokens out", calls, in, out)
	fmt.Fprintln(w, theme.Title.Render("Usage by purpose"))
	fmt.Fprint(w, byPurpose.View())

	if len(models) == 0 {
		return
	}

	byModel := components.Table{Headers: []string{"Model", "Calls", "Input", "Output", "Cost"}, MaxCell: 32}
	usages := make([]llm.ModelUsage, 0, len(models))
	var unpriced []string
	for _, m := range models {
		usages = append(usages, llm.ModelUsage{Model: m.Model, InputTokens: m.InputTokens, OutputTokens: m.OutputTokens})
		cost := "?"
		if c := llm.LookupCost(m.Model); c != nil {
			cost = Dollars(c.Cost(m.InputTokens, m.OutputTokens))
		} else {
			unpriced = append(unpriced, m.Model)
		}
		byModel.Rows = append(byModel.Rows, []string{
			m.Model, fmt.Sprint(m.Calls), fmt.Sprint(m.InputTokens), fmt.Sprint(m.OutputTokens), cost,
		})
	}
	total, _ := llm.EstimateCost(usages)
	byModel.Footnote = "Estimated total " + Dollars(total)
	if len(unpriced) > 0 {
		byModel.Footnote += " (no pricing for " + strings.Join(unpriced, ", ") + ")"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, theme.Title.Render("Estimated cost (USD)"))
	fmt.Fprint(w, byModel.View())
}

// Dollars formats a USD amount, keeping sub-cent precision.
func Dollars(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
