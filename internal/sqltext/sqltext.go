// Package sqltext holds the keyword and structural markers shared by the
// complexity scorer, the concept classifier and the response parser.
// Matching is case-insensitive and word-bounded, so identifiers such as
// min_price or selected_at never count as keywords.
package sqltext

import (
	"regexp"
	"strings"
	"sync"
)

var (
	subqueryPattern = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	windowPattern   = regexp.MustCompile(`(?i)\bOVER(\s*\(|\s+[A-Za-z_][A-Za-z0-9_]*)`)
	ctePattern      = regexp.MustCompile(`(?i)^\s*WITH(\s+RECURSIVE)?\b`)
)

// keywordPatterns caches compiled keyword matchers.
var keywordPatterns sync.Map // map[string]*regexp.Regexp

func keywordPattern(keyword string) *regexp.Regexp {
	key := strings.ToUpper(keyword)
	if cached, ok := keywordPatterns.Load(key); ok {
		return cached.(*regexp.Regexp)
	}

	parts := strings.Fields(key)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)
	keywordPatterns.Store(key, re)
	return re
}

// Contains reports whether text contains keyword as a whole word.
// Multi-word keywords ("GROUP BY") match any run of whitespace between words.
func Contains(text, keyword string) bool {
	return keywordPattern(keyword).MatchString(text)
}

// ContainsAny reports whether text contains at least one of keywords.
func ContainsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if Contains(text, k) {
			return true
		}
	}
	return false
}

// Count returns the number of whole-word occurrences of keyword in text.
func Count(text, keyword string) int {
	return len(keywordPattern(keyword).FindAllStringIndex(text, -1))
}

// HasSubquery reports an opening parenthesis followed by SELECT.
func HasSubquery(text string) bool {
	return subqueryPattern.MatchString(text)
}

// HasWindow reports a window function marker: OVER ( or OVER name.
func HasWindow(text string) bool {
	return windowPattern.MatchString(text)
}

// HasCTE reports a statement that starts with WITH or WITH RECURSIVE.
func HasCTE(text string) bool {
	return ctePattern.MatchString(text)
}

// StatementKeywords are the leading keywords that open an executable statement.
var StatementKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "CREATE", "DROP", "ALTER",
}

// StartsStatement reports whether line, once trimmed, begins with one of
// StatementKeywords.
func StartsStatement(line string) bool {
	upper := strings.ToUpper(strings.TrimSpace(line))
	for _, k := range StatementKeywords {
		if HasWordPrefix(upper, k) {
			return true
		}
	}
	return false
}

// HasWordPrefix reports whether s (already upper-cased) starts with word
// followed by a non-identifier character or end of string.
func HasWordPrefix(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	if len(s) == len(word) {
		return true
	}
	return !isIdentByte(s[len(word)])
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}
