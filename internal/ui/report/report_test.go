package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/concept"
	"github.com/abhisek/querywise/internal/explain"
	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/store"
)

func TestRows_Footnote(t *testing.T) {
	res := pipeline.QueryResult{
		Columns:   []string{"id", "region"},
		Rows:      [][]any{{int64(1), "north"}, {int64(2), nil}},
		TotalRows: 9,
	}
	out := Rows(res)
	assert.Contains(t, out, "north")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "showing 2 of 9 rows")

	res.TotalRows = 2
	assert.Contains(t, Rows(res), "2 rows")

	res.TotalRows = 500
	res.Truncated = true
	assert.Contains(t, Rows(res), "showing 2 of 500+ rows (more available)")
	assert.Contains(t, Rows(pipeline.QueryResult{Columns: []string{"x"}}), "(no rows)")
}

func TestMarkdown(t *testing.T) {
	md := Markdown(explain.Content{
		Text:       "Counts orders per region.",
		Concepts:   []string{"GROUP BY", "COUNT"},
		Objectives: []string{"Grouping rows"},
	})
	assert.True(t, strings.HasPrefix(md, "## Explanation\n\nCounts orders per region.\n"))
	assert.Contains(t, md, "**Concepts:** GROUP BY, COUNT")
	assert.Contains(t, md, "- Grouping rows\n")

	assert.NotContains(t, Markdown(explain.Content{Text: "x"}), "Concepts")
}

func TestOutcome(t *testing.T) {
	out := &pipeline.Outcome{
		Result: pipeline.QueryResult{
			Success:    true,
			Statement:  "SELECT region, COUNT(*) FROM orders GROUP BY region",
			Rationale:  "Group and count.",
			Columns:    []string{"region", "count"},
			Rows:       [][]any{{"north", int64(3)}},
			TotalRows:  1,
			Complexity: 2,
		},
		Assessment: cognitive.Assessment{
			IntrinsicLoad:     2,
			Concept:           concept.Aggregation,
			ExplanationNeeded: true,
			ExplanationType:   cognitive.Basic,
			Provenance:        cognitive.ProvenanceRule,
		},
		Explanation: &explain.Content{Text: "Counts orders per region."},
		Profile:     profile.New("ana", time.Now()),
	}

	var buf bytes.Buffer
	require.NoError(t, Outcome(&buf, out, Options{Style: "notty"}))
	got := buf.String()
	assert.Contains(t, got, "GROUP BY region")
	assert.Contains(t, got, "Group and count.")
	assert.Contains(t, got, "north")
	assert.Contains(t, got, "aggregation")
	assert.Contains(t, got, "basic")
	assert.Contains(t, got, "Counts orders per region.")
}

func TestOutcome_Failure(t *testing.T) {
	out := &pipeline.Outcome{
		Result:     pipeline.QueryResult{Statement: "SELECT x FROM nope", Error: "no such table: nope"},
		Assessment: cognitive.AssessFailure("no such table: nope"),
	}
	var buf bytes.Buffer
	require.NoError(t, Outcome(&buf, out, Options{Style: "ascii"}))
	assert.Contains(t, buf.String(), "no such table: nope")
	assert.Contains(t, buf.String(), "error_handling")
}

func TestProfileAndConceptCounts(t *testing.T) {
	p := profile.New("ana", time.Now())
	p.History = []profile.HistoryEntry{
		{Concept: concept.Joins},
		{Concept: concept.Aggregation},
		{Concept: concept.Joins},
	}
	assert.Equal(t, []string{"joins×2", "aggregation×1"}, ConceptCounts(p))

	var buf bytes.Buffer
	Profile(&buf, p)
	assert.Contains(t, buf.String(), "Profile: ana")
	assert.Contains(t, buf.String(), "window_functions")
	assert.Contains(t, buf.String(), "3 interactions")

	buf.Reset()
	Profiles(&buf, []*profile.Profile{p})
	assert.Contains(t, buf.String(), "ana")
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	History(&buf, []store.InteractionEvent{{
		Timestamp: time.Now(),
		InteractionEventData: store.InteractionEventData{
			UserID:            "ana",
			Question:          "how many orders are there in each region this year",
			Concept:           "aggregation",
			IntrinsicLoad:     2,
			ExplanationNeeded: true,
			ExplanationType:   "basic",
			Success:           true,
		},
	}}, store.InteractionStats{Total: 1, Succeeded: 1, Explanations: 1})
	got := buf.String()
	assert.Contains(t, got, "ana")
	assert.Contains(t, got, "…")
	assert.Contains(t, got, "1 total, 1 succeeded, 1 explained")
}
