package extract

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantStatement string
		wantRationale string
	}{
		{
			name:          "markers",
			raw:           "REASONING: Because X\nSQL: SELECT 1;",
			wantStatement: "SELECT 1;",
			wantRationale: "Because X",
		},
		{
			name:          "markers with fenced statement",
			raw:           "REASONING:\nCount the orders.\n\nSQL:\n```sql\nSELECT COUNT(*) FROM orders;\n```\nThis query counts every order.",
			wantStatement: "SELECT COUNT(*) FROM orders;",
			wantRationale: "Count the orders.",
		},
		{
			name:          "fence and trailing prose",
			raw:           "```sql\nSELECT 1;\n```\nThis query returns one value.",
			wantStatement: "SELECT 1;",
			wantRationale: NoRationale,
		},
		{
			name:          "preamble becomes rationale",
			raw:           "Here is the query you asked for:\nSELECT name FROM customers;",
			wantStatement: "SELECT name FROM customers;",
			wantRationale: "Here is the query you asked for:",
		},
		{
			name: "multi-line statement keeps clauses",
			raw: "SELECT c.name,\n       COUNT(o.id) AS orders\nFROM customers c\nLEFT JOIN orders o ON o.customer_id = c.id\n" +
				"GROUP BY c.name\nORDER BY orders DESC;\n\nThe results show customers by order count.",
			wantStatement: "SELECT c.name,\n       COUNT(o.id) AS orders\nFROM customers c\nLEFT JOIN orders o ON o.customer_id = c.id\n" +
				"GROUP BY c.name\nORDER BY orders DESC;",
			wantRationale: NoRationale,
		},
		{
			name:          "nested select kept intact",
			raw:           "SELECT name FROM customers\nWHERE id IN (\n  SELECT customer_id FROM orders\n)\nThis query shows buyers.",
			wantStatement: "SELECT name FROM customers\nWHERE id IN (\n  SELECT customer_id FROM orders\n)",
			wantRationale: NoRationale,
		},
		{
			name:          "leaked sdk artifacts",
			raw:           "TextBlock(text='SELECT * FROM products', type='text')",
			wantStatement: "SELECT * FROM products",
			wantRationale: NoRationale,
		},
		{
			name:          "standalone sql line",
			raw:           "sql\nSELECT * FROM sqlite_master",
			wantStatement: "SELECT * FROM sqlite_master",
			wantRationale: NoRationale,
		},
		{
			name:          "stray trailing quote",
			raw:           "SELECT * FROM t'",
			wantStatement: "SELECT * FROM t",
			wantRationale: NoRationale,
		},
		{
			name:          "balanced literal quote kept",
			raw:           "SELECT * FROM t WHERE name = 'x'",
			wantStatement: "SELECT * FROM t WHERE name = 'x'",
			wantRationale: NoRationale,
		},
		{
			name:          "lowercase statement",
			raw:           "with recent as (select * from orders)\nselect * from recent",
			wantStatement: "with recent as (select * from orders)\nselect * from recent",
			wantRationale: NoRationale,
		},
		{
			name:          "markers on their own lines",
			raw:           "REASONING:\nBecause X\nSQL:\nSELECT 1;",
			wantStatement: "SELECT 1;",
			wantRationale: "Because X",
		},
		{
			name:          "dialect name in rationale is not a marker",
			raw:           "REASONING: PostgreSQL: use ILIKE for case-insensitive matching.\nSQL: SELECT name FROM t WHERE name ILIKE 'a%';",
			wantStatement: "SELECT name FROM t WHERE name ILIKE 'a%';",
			wantRationale: "PostgreSQL: use ILIKE for case-insensitive matching.",
		},
		{
			name:          "dialect name in single-line rationale",
			raw:           "REASONING: On PostgreSQL: prefer ILIKE. SQL: SELECT 1;",
			wantStatement: "SELECT 1;",
			wantRationale: "On PostgreSQL: prefer ILIKE.",
		},
		{
			name:          "prose opening with a keyword after terminated statement",
			raw:           "SELECT name FROM t;\nIn this query, we list names.",
			wantStatement: "SELECT name FROM t;",
			wantRationale: NoRationale,
		},
		{
			name:          "prose opening with a word and comma",
			raw:           "SELECT name FROM t WHERE active = 1;\nHowever, this query shows only active rows.",
			wantStatement: "SELECT name FROM t WHERE active = 1;",
			wantRationale: NoRationale,
		},
		{
			name:          "prose opening with AS",
			raw:           "SELECT name FROM t;\nAs written, this query shows every name.",
			wantStatement: "SELECT name FROM t;",
			wantRationale: NoRationale,
		},
		{
			name:          "sentence after unterminated statement",
			raw:           "SELECT name\nFROM t\nIn this query, we list names.",
			wantStatement: "SELECT name\nFROM t",
			wantRationale: NoRationale,
		},
		{
			name:          "semicolon inside literal does not terminate",
			raw:           "SELECT name FROM t WHERE note = 'a;'\nAND kind IN (SELECT kind FROM k)\nOR note = 'shows';",
			wantStatement: "SELECT name FROM t WHERE note = 'a;'\nAND kind IN (SELECT kind FROM k)\nOR note = 'shows';",
			wantRationale: NoRationale,
		},
		{
			name:          "no statement",
			raw:           "I am not able to answer that question.",
			wantStatement: "",
			wantRationale: CouldNotExtract,
		},
		{
			name:          "empty",
			raw:           "",
			wantStatement: "",
			wantRationale: CouldNotExtract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			if got.Statement != tt.wantStatement {
				t.Errorf("Statement = %q, want %q", got.Statement, tt.wantStatement)
			}
			if got.Rationale != tt.wantRationale {
				t.Errorf("Rationale = %q, want %q", got.Rationale, tt.wantRationale)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	statements := []string{
		"SELECT 1;",
		"SELECT a, b FROM t WHERE a > 1 ORDER BY b;",
		"WITH x AS (SELECT 1 AS n) SELECT n FROM x;",
	}
	layouts := []string{
		"REASONING: Because X\nSQL: ",
		"REASONING:\nBecause X\nSQL:\n",
	}
	for _, layout := range layouts {
		for _, s := range statements {
			got := Parse(layout + s)
			if got.Statement != s {
				t.Errorf("round trip: got %q, want %q", got.Statement, s)
			}
			if got.Rationale != "Because X" {
				t.Errorf("round trip rationale: got %q", got.Rationale)
			}
		}
	}
}

func TestExtraction_Err(t *testing.T) {
	if err := (Extraction{}).Err(); !errors.Is(err, ErrNoStatement) {
		t.Fatalf("expected ErrNoStatement, got %v", err)
	}
	if err := (Extraction{Statement: "SELECT 1"}).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
