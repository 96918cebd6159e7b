// Package concept classifies SQL statements into skill concept buckets.
package concept

import "github.com/abhisek/querywise/internal/sqltext"

// Concept is a skill bucket a statement exercises.
type Concept string

const (
	BasicSelect       Concept = "basic_select"
	Aggregation       Concept = "aggregation"
	Joins             Concept = "joins"
	AdvancedLogic     Concept = "advanced_logic"
	WindowFunctions   Concept = "window_functions"
	AdvancedAnalytics Concept = "advanced_analytics"

	// Error tags the assessment of a failed execution. It is never produced
	// by Classify and never carries a skill level.
	Error Concept = "error"
)

// All returns the skill concepts from most basic to most advanced.
func All() []Concept {
	return []Concept{
		BasicSelect, Aggregation, Joins, AdvancedLogic, WindowFunctions, AdvancedAnalytics,
	}
}

// Valid reports whether c is one of the skill concepts returned by All.
func (c Concept) Valid() bool {
	for _, k := range All() {
		if c == k {
			return true
		}
	}
	return false
}

// Parse converts a string to a skill concept.
func Parse(s string) (Concept, bool) {
	c := Concept(s)
	return c, c.Valid()
}

func (c Concept) String() string { return string(c) }

// rule is one precedence step of the classifier.
type rule struct {
	concept Concept
	match   func(statement string) bool
}

func keywords(ks ...string) func(string) bool {
	return func(s string) bool { return sqltext.ContainsAny(s, ks...) }
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{AdvancedAnalytics, func(s string) bool {
		return sqltext.HasCTE(s) || sqltext.Contains(s, "RECURSIVE")
	}},
	{WindowFunctions, func(s string) bool {
		return sqltext.HasWindow(s) ||
			sqltext.ContainsAny(s, "PARTITION BY", "ROW_NUMBER", "RANK", "DENSE_RANK", "WINDOW")
	}},
	{AdvancedLogic, func(s string) bool {
		return sqltext.HasSubquery(s) || sqltext.ContainsAny(s, "CASE", "UNION", "EXISTS")
	}},
	{Joins, keywords("JOIN")},
	{Aggregation, keywords("GROUP BY", "HAVING", "ORDER BY", "SUM", "COUNT", "AVG", "MIN", "MAX")},
}

// Classify returns the most advanced concept statement exercises.
// Anything without a stronger signal is BasicSelect.
func Classify(statement string) Concept {
	for _, r := range rules {
		if r.match(statement) {
			return r.concept
		}
	}
	return BasicSelect
}
