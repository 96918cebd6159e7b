// Package report renders pipeline outcomes, profiles and history for the
// terminal.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/explain"
	"github.com/abhisek/querywise/internal/extract"
	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/store"
	"github.com/abhisek/querywise/internal/ui/components"
	"github.com/abhisek/querywise/internal/ui/theme"
)

// Options controls rendering.
type Options struct {
	// Style is a glamour standard style: "dark", "light", "notty" or "ascii".
	Style string
	Width int
}

func (o Options) renderer() (*glamour.TermRenderer, error) {
	style := o.Style
	if style == "" {
		style = "dark"
	}
	width := o.Width
	if width <= 0 {
		width = 80
	}
	return glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
}

// Outcome writes a full answer: statement, rows, assessment and explanation.
func Outcome(w io.Writer, out *pipeline.Outcome, opts Options) error {
	res := out.Result

	fmt.Fprintln(w, theme.Title.Render("Query"))
	fmt.Fprintln(w, theme.Code.Render(explain.FormatStatement(res.Statement)))
	if res.Rationale != "" && res.Rationale != extract.NoRationale {
		fmt.Fprintln(w, theme.Hint.Render(res.Rationale))
	}
	fmt.Fprintln(w)

	if res.Success {
		fmt.Fprintln(w, Rows(res))
	} else {
		fmt.Fprintln(w, theme.Bad.Render("Error: ")+theme.Body.Render(res.Error))
		fmt.Fprintln(w)
	}

	a := out.Assessment
	capacity := 0
	if out.Profile != nil {
		capacity = out.Profile.Capacity
	}
	fmt.Fprintln(w, components.NewLoadBar("Complexity", a.IntrinsicLoad, capacity).View())
	fmt.Fprintln(w, theme.Label.Render("Concept")+theme.Body.Render(a.Concept.String()))
	decision := "not needed"
	if a.ExplanationNeeded {
		decision = string(a.ExplanationType)
	}
	fmt.Fprintln(w, theme.Label.Render("Explain")+theme.Body.Render(decision)+
		theme.Hint.Render(fmt.Sprintf("  (%s)", a.Provenance)))

	if out.Explanation == nil {
		return nil
	}
	md := Markdown(*out.Explanation)
	r, err := opts.renderer()
	if err != nil {
		fmt.Fprintln(w, "\n"+md)
		return nil
	}
	rendered, err := r.Render(md)
	if err != nil {
		fmt.Fprintln(w, "\n"+md)
		return nil
	}
	fmt.Fprint(w, rendered)
	return nil
}

// Rows renders the presented rows and notes any that were held back.
func Rows(res pipeline.QueryResult) string {
	t := components.Table{Headers: res.Columns}
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = components.Cell(v)
		}
		t.Rows = append(t.Rows, cells)
	}
	switch {
	case res.TotalRows == 0:
		t.Footnote = "(no rows)"
	case res.Truncated:
		t.Footnote = fmt.Sprintf("showing %d of %d+ rows (more available)", len(res.Rows), res.TotalRows)
	case res.TotalRows > len(res.Rows):
		t.Footnote = fmt.Sprintf("showing %d of %d rows", len(res.Rows), res.TotalRows)
	default:
		t.Footnote = fmt.Sprintf("%d rows", res.TotalRows)
	}
	return t.View()
}

// Markdown formats explanation content as a markdown document.
func Markdown(c explain.Content) string {
	var sb strings.Builder
	sb.WriteString("## Explanation\n\n")
	sb.WriteString(c.Text)
	sb.WriteString("\n")
	if len(c.Concepts) > 0 {
		sb.WriteString("\n**Concepts:** ")
		sb.WriteString(strings.Join(c.Concepts, ", "))
		sb.WriteString("\n")
	}
	if len(c.Objectives) > 0 {
		sb.WriteString("\n**You'll learn:**\n\n")
		for _, o := range c.Objectives {
			sb.WriteString("- " + o + "\n")
		}
	}
	return sb.String()
}

// Profile writes a user's expertise, capacity and per-concept levels.
func Profile(w io.Writer, p *profile.Profile) {
	fmt.Fprintln(w, theme.Title.Render("Profile: "+p.UserID))
	fmt.Fprintln(w, components.NewLoadBar("Expertise", p.ExpertiseLevel, profile.MaxLevel).View())
	fmt.Fprintln(w, components.NewLoadBar("Capacity", p.Capacity, profile.MaxLevel).View())
	fmt.Fprintln(w)
	for _, c := range concept.All() {
		fmt.Fprintln(w, components.NewLoadBar(c.String(), p.ConceptLevel(c), profile.MaxLevel).View())
	}
	fmt.Fprintln(w)
	if counts := ConceptCounts(p); len(counts) > 0 {
		fmt.Fprintln(w, theme.Label.Render("Asked")+theme.Body.Render(strings.Join(counts, "  ")))
	}
	fmt.Fprintln(w, theme.Hint.Render(fmt.Sprintf("%d interactions, last updated %s",
		len(p.History), p.LastUpdated.Local().Format("2006-01-02 15:04"))))
}

// Profiles writes a one-line summary per profile.
func Profiles(w io.Writer, profiles []*profile.Profile) {
	t := components.Table{Headers: []string{"User", "Expertise", "Capacity", "Interactions", "Updated"}}
	for _, p := range profiles {
		t.Rows = append(t.Rows, []string{
			p.UserID,
			fmt.Sprint(p.ExpertiseLevel),
			fmt.Sprint(p.Capacity),
			fmt.Sprint(len(p.History)),
			p.LastUpdated.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprint(w, t.View())
}

// History writes interaction events and their summary.
func History(w io.Writer, events []store.InteractionEvent, stats store.InteractionStats) {
	t := components.Table{
		Headers: []string{"When", "User", "Question", "Concept", "Load", "Explain", "OK"},
		MaxCell: 36,
	}
	for _, e := range events {
		explained := "-"
		if e.ExplanationNeeded {
			explained = e.ExplanationType
		}
		t.Rows = append(t.Rows, []string{
			e.Timestamp.Local().Format("01-02 15:04"),
			e.UserID,
			e.Question,
			e.Concept,
			fmt.Sprint(e.IntrinsicLoad),
			explained,
			mark(e.Success),
		})
	}
	t.Footnote = fmt.Sprintf("%d total, %d succeeded, %d explained", stats.Total, stats.Succeeded, stats.Explanations)
	fmt.Fprint(w, t.View())
}

// ConceptCounts tallies how often each concept appears in a profile's history,
// most frequent first.
func ConceptCounts(p *profile.Profile) []string {
	counts := make(map[concept.Concept]int)
	for _, h := range p.History {
		counts[h.Concept]++
	}
	keys := make([]concept.Concept, 0, len(counts))
	for c := range counts {
		keys = append(keys, c)
	}
	slices.SortFunc(keys, func(a, b concept.Concept) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(string(a), string(b))
	})
	out := make([]string, len(keys))
	for i, c := range keys {
		out[i] = fmt.Sprintf("%s×%d", c, counts[c])
	}
	return out
}
