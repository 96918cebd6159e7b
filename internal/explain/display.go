package explain

import (
	"strings"

	"github.com/abhisek/querywise/internal/sqltext"
)

var clauseStarts = []string{"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "HAVING"}

// FormatStatement lays a statement out for beginners: blank lines dropped,
// main clauses flush left and everything else indented two spaces.
func FormatStatement(statement string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(statement), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if startsClause(line) {
			lines = append(lines, line)
		} else {
			lines = append(lines, "  "+line)
		}
	}
	return strings.Join(lines, "\n")
}

func startsClause(line string) bool {
	upper := strings.ToUpper(line)
	for _, c := range clauseStarts {
		if sqltext.HasWordPrefix(upper, c) {
			return true
		}
	}
	return false
}
