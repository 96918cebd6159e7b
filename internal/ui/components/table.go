package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/querywise/internal/ui/theme"
)

// Table renders rows as aligned columns with a header rule.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxCell  int // cells wider than this are truncated; 0 means 40
	Footnote string
}

// Cell formats a result value for display.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

// View renders the table.
func (t Table) View() string {
	maxCell := t.MaxCell
	if maxCell <= 0 {
		maxCell = 40
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		rows[r] = make([]string, len(t.Headers))
		for i := range t.Headers {
			if i >= len(row) {
				continue
			}
			c := truncate(row[i], maxCell)
			rows[r][i] = c
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var sb strings.Builder
	for i, h := range t.Headers {
		sb.WriteString(theme.HeaderCell.Render(pad(h, widths[i])))
		sb.WriteString("  ")
	}
	sb.WriteString("\n")

	total := 0
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(total-2, 0))))
	sb.WriteString("\n")

	for _, row := range rows {
		for i, c := range row {
			sb.WriteString(theme.Body.Render(pad(c, widths[i])))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}
	if t.Footnote != "" {
		sb.WriteString(theme.Hint.Render(t.Footnote))
		sb.WriteString("\n")
	}
	return sb.String()
}

func pad(s string, w int) string {
	if n := w - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
