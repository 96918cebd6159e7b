package explain

import (
	"regexp"
	"strings"
)

// Sections is a collaborator reply split at its markers. Missing sections
// are empty.
type Sections struct {
	Explanation string
	Concepts    []string
	Objectives  []string
}

var markers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)EXPLANATION:`),
	regexp.MustCompile(`(?i)SQL_CONCEPTS:`),
	regexp.MustCompile(`(?i)LEARNING_OBJECTIVES:`),
}

// Parse splits a reply into its sections. Each section runs from its marker
// to the nearest following marker of another kind, or the end of the text.
func Parse(text string) Sections {
	return Sections{
		Explanation: section(text, 0),
		Concepts:    list(section(text, 1)),
		Objectives:  list(section(text, 2)),
	}
}

func section(text string, idx int) string {
	loc := markers[idx].FindStringIndex(text)
	if loc == nil {
		return ""
	}
	start := loc[1]
	end := len(text)
	for i, m := range markers {
		if i == idx {
			continue
		}
		if next := m.FindStringIndex(text[start:]); next != nil {
			end = min(end, start+next[0])
		}
	}
	return strings.TrimSpace(text[start:end])
}

// list splits a comma-separated section and cleans each item of escape
// sequences, quotes and leaked representation artifacts.
func list(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	for _, item := range strings.Split(s, ",") {
		item = strings.NewReplacer(`\n`, " ", `\"`, `"`, `\'`, "'").Replace(item)
		if i := strings.Index(item, "', type='"); i >= 0 {
			item = item[:i]
		}
		item = strings.TrimSpace(strings.Trim(strings.TrimSpace(item), `'"`))
		item = strings.TrimLeft(item, "-*• ")
		if item == "" || strings.HasPrefix(item, "type=") {
			continue
		}
		out = append(out, item)
	}
	return out
}

var (
	fence         = regexp.MustCompile("[ \t]*```(sqlite|sql|json)?[ \t]*")
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
	textArtifacts = strings.NewReplacer(
		"TextBlock(text='", "",
		"', type='text')", "",
	)
	escapes = strings.NewReplacer(
		`\n`, "\n",
		`\t`, "    ",
		`\"`, `"`,
		`\'`, "'",
	)
)

// FormatText normalizes explanation text for display: escape sequences are
// decoded, code fences sit on their own lines and headings are followed by a
// blank line.
func FormatText(text string) string {
	text = strings.TrimSpace(textArtifacts.Replace(text))
	if text == "" {
		return ""
	}
	text = escapes.Replace(text)
	text = fence.ReplaceAllString(text, "\n```${1}\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if isHeading(line) {
			lines = append(lines, "")
		}
	}
	out := blankLineRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func isHeading(line string) bool {
	return strings.HasSuffix(line, ":") ||
		(len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**")) ||
		strings.HasPrefix(line, "###")
}
