// Package complexity scores the structural complexity of a SQL statement on
// a 1-5 scale. Scoring is pure and deterministic.
package complexity

import "github.com/abhisek/querywise/internal/sqltext"

const (
	// Min is the lowest score; also the score of an empty statement.
	Min = 1
	// Max is the highest score.
	Max = 5
)

// indicator reports whether a statement carries one structural feature.
type indicator func(statement string) bool

func keyword(k string) indicator {
	return func(s string) bool { return sqltext.Contains(s, k) }
}

// levels is the ordered level → indicators table. A statement scores the
// highest level with at least one matching indicator.
var levels = []struct {
	level      int
	indicators []indicator
}{
	{1, []indicator{keyword("SELECT")}},
	{2, []indicator{keyword("WHERE"), keyword("GROUP BY"), keyword("ORDER BY")}},
	{3, []indicator{keyword("JOIN"), keyword("INNER JOIN"), keyword("LEFT JOIN")}},
	{4, []indicator{sqltext.HasSubquery, keyword("HAVING"), keyword("CASE WHEN")}},
	{5, []indicator{sqltext.HasWindow, sqltext.HasCTE}},
}

// Score returns the complexity of statement in [Min, Max].
//
// More than one SELECT raises the floor to 4 and more than one JOIN raises it
// to 5, so adding nesting or joins never lowers the score.
func Score(statement string) int {
	score := Min
	for _, l := range levels {
		if l.level <= score {
			continue
		}
		for _, match := range l.indicators {
			if match(statement) {
				score = l.level
				break
			}
		}
	}

	if sqltext.Count(statement, "SELECT") > 1 {
		score = max(score, 4)
	}
	if sqltext.Count(statement, "JOIN") > 1 {
		score = max(score, 5)
	}

	return Clamp(score)
}

// Clamp bounds a score to [Min, Max].
func Clamp(score int) int {
	return min(max(score, Min), Max)
}
