// Package extract pulls an executable SQL statement and its rationale out of
// free-form model output. The input may carry REASONING:/SQL: markers,
// markdown fences, leaked SDK representation fragments and trailing prose.
package extract

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/abhisek/querywise/internal/sqltext"
)

// ErrNoStatement is reported when no executable statement can be found.
var ErrNoStatement = errors.New("no SQL statement found in response")

const (
	// NoRationale is the rationale when the response carried none.
	NoRationale = "reasoning not available"

	// CouldNotExtract is the rationale when no statement was found.
	CouldNotExtract = "could not extract a SQL statement from the response"
)

// Extraction is the result of parsing one response.
type Extraction struct {
	Statement string
	Rationale string
}

// Err returns ErrNoStatement when the statement is empty.
func (e Extraction) Err() error {
	if e.Statement == "" {
		return ErrNoStatement
	}
	return nil
}

var (
	openFencePattern  = regexp.MustCompile("(?i)```(?:sqlite|sql|postgresql|postgres)?[ \t]*")
	closeFencePattern = regexp.MustCompile("\\s*```")
	sqlLinePattern    = regexp.MustCompile(`(?im)^[ \t]*sql[ \t]*$\n?`)

	// Markers must stand alone: "PostgreSQL:" is not a statement marker.
	reasoningMarker     = regexp.MustCompile(`\bREASONING:`)
	statementLineMarker = regexp.MustCompile(`(?m)^[ \t]*SQL:`)
	statementMarker     = regexp.MustCompile(`\bSQL:`)

	// proseOpener matches "However," or "In this query," at a line start.
	proseOpener = regexp.MustCompile(`^[A-Z][a-z]+(?:[ \t]+[a-z]+)*,`)

	// Line shapes that continue a statement rather than start prose.
	columnLinePattern   = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*[,)]`)
	numberLinePattern   = regexp.MustCompile(`^\s*\d`)
	literalLinePattern  = regexp.MustCompile(`^\s*['"]`)
	operatorLinePattern = regexp.MustCompile(`^\s*[-+*/=<>!|%]`)
)

// artifacts are fragments of SDK object representations that leak into
// completions when a client stringifies a content block.
var artifacts = []string{
	"TextBlock(text='",
	"', type='text')",
	"type='text'",
}

// continuationKeywords open lines that belong to the statement being collected.
var continuationKeywords = []string{
	"FROM", "WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET",
	"JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "UNION", "INTERSECT", "EXCEPT",
	"AND", "OR", "NOT", "ON", "AS", "IN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END",
	"SELECT", "WITH", "SET", "VALUES", "RETURNING", "WINDOW", "PARTITION", "OVER",
}

// explanatoryPhrases mark a line as prose about the statement.
var explanatoryPhrases = []string{
	"this query", "this sql", "provides", "shows", "the results", "explanation:", "note:",
}

// Parse extracts the statement and rationale from raw model output.
//
// When both markers are present the text is split at the statement marker.
// Otherwise the statement is the run of lines starting at the first line that
// opens a statement, ending before the first line of explanatory prose.
// Legitimate nested SELECTs stay intact.
func Parse(raw string) Extraction {
	if reasoningMarker.MatchString(raw) && statementMarker.MatchString(raw) {
		return parseMarked(raw)
	}

	cleaned := clean(raw)
	before, statement, ok := scan(cleaned)
	if !ok {
		return Extraction{Rationale: CouldNotExtract}
	}

	rationale := strings.TrimSpace(before)
	if rationale == "" {
		rationale = NoRationale
	}
	return Extraction{Statement: finish(statement), Rationale: rationale}
}

func parseMarked(raw string) Extraction {
	loc := statementLineMarker.FindStringIndex(raw)
	if loc == nil {
		loc = statementMarker.FindStringIndex(raw)
	}
	head, tail := raw[:loc[0]], raw[loc[1]:]
	rationale := strings.TrimSpace(reasoningMarker.ReplaceAllString(head, ""))
	if rationale == "" {
		rationale = NoRationale
	}

	cleaned := clean(tail)
	statement := cleaned
	if _, s, ok := scan(cleaned); ok {
		statement = s
	}
	return Extraction{Statement: finish(statement), Rationale: rationale}
}

// clean strips fences, leaked artifacts and standalone "sql" lines.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = openFencePattern.ReplaceAllString(s, "")
	s = closeFencePattern.ReplaceAllString(s, "")
	for _, a := range artifacts {
		s = strings.ReplaceAll(s, a, "")
	}
	return sqlLinePattern.ReplaceAllString(s, "")
}

// scan finds the first statement line and collects until explanatory prose.
// It returns the text before the statement, the statement and whether a
// statement line was found.
func scan(s string) (before, statement string, ok bool) {
	lines := strings.Split(s, "\n")
	start := -1
	for i, line := range lines {
		if sqltext.StartsStatement(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return s, "", false
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		done := terminated(strings.Join(lines[start:i], "\n"))
		if isProse(lines[i], done) {
			end = i
			break
		}
	}

	return strings.Join(lines[:start], "\n"), strings.Join(lines[start:end], "\n"), true
}

// isProse reports a non-empty line that reads like an explanation. Before the
// statement is terminated, lines that continue statement syntax are never
// prose unless they open like a sentence ("However, ...").
func isProse(line string, afterEnd bool) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !explains(trimmed) {
		return false
	}
	return afterEnd || proseOpener.MatchString(trimmed) || !continuesStatement(trimmed)
}

func explains(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range explanatoryPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// terminated reports whether s ends with a semicolon outside any string
// literal or parentheses.
func terminated(s string) bool {
	depth := 0
	inQuote := false
	last := rune(0)
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case inQuote:
		case r == '(':
			depth++
		case r == ')':
			depth--
		}
		if !inQuote && !unicode.IsSpace(r) {
			last = r
		}
	}
	return !inQuote && depth == 0 && last == ';'
}

func continuesStatement(trimmed string) bool {
	if strings.HasPrefix(trimmed, "(") || strings.HasPrefix(trimmed, ")") || strings.HasPrefix(trimmed, ",") {
		return true
	}
	upper := strings.ToUpper(trimmed)
	for _, k := range continuationKeywords {
		if sqltext.HasWordPrefix(upper, k) {
			return true
		}
	}
	return columnLinePattern.MatchString(trimmed) ||
		numberLinePattern.MatchString(trimmed) ||
		literalLinePattern.MatchString(trimmed) ||
		operatorLinePattern.MatchString(trimmed)
}

// finish trims whitespace and a single trailing stray quote. A closing quote
// that balances a string literal is kept.
func finish(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "'") && strings.Count(s, "'")%2 == 1 {
		s = strings.TrimSpace(strings.TrimSuffix(s, "'"))
	}
	return s
}
