package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/querywise/internal/ui/theme"
)

// LoadBar shows a 1-5 value against a 1-5 limit, one cell per level.
// Cells above the limit are drawn in the warning color.
type LoadBar struct {
	Label string
	Value int
	Limit int
	Max   int
	Cell  int // width of one level in columns
}

// NewLoadBar creates a load bar over the 1-5 scale.
func NewLoadBar(label string, value, limit int) LoadBar {
	return LoadBar{Label: label, Value: value, Limit: limit, Max: 5, Cell: 3}
}

// View renders the bar.
func (b LoadBar) View() string {
	var sb strings.Builder
	if b.Label != "" {
		sb.WriteString(theme.Label.Render(b.Label))
	}

	value := min(max(b.Value, 0), b.Max)
	for i := 1; i <= b.Max; i++ {
		cell := strings.Repeat(" ", b.Cell)
		switch {
		case i > value:
			sb.WriteString(theme.BarEmpty.Render(cell))
		case i > b.Limit:
			sb.WriteString(theme.BarOver.Render(cell))
		default:
			sb.WriteString(theme.BarFilled.Render(cell))
		}
	}

	sb.WriteString(lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("  %d/%d", value, b.Max)))
	return sb.String()
}
