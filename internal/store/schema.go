package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableProfiles     = "profiles"
	tableInteractions = "interaction_events"
	tableLLMRequests  = "llm_request_events"
)

// tables lists the DDL for every table the store owns.
func tables() []*entsql.TableBuilder {
	b := builder()
	return []*entsql.TableBuilder{
		b.CreateTable(tableProfiles).IfNotExists().
			Columns(
				entsql.Column("user_id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("expertise_level").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("capacity").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("data").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("updated_at").Type("INTEGER").Attr("NOT NULL"),
			).
			PrimaryKey("user_id"),

		b.CreateTable(tableInteractions).IfNotExists().
			Columns(
				entsql.Column("id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("sequence").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("timestamp").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("user_id").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("question").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("statement").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("success").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("error_message").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("concept").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("intrinsic_load").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("explanation_needed").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("explanation_type").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("provenance").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("explanation_generated").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("duration_ms").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
			).
			PrimaryKey("id"),

		b.CreateTable(tableLLMRequests).IfNotExists().
			Columns(
				entsql.Column("id").Type("INTEGER").Attr("PRIMARY KEY AUTOINCREMENT"),
				entsql.Column("sequence").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("timestamp").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("provider").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("model").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("purpose").Type("TEXT").Attr("NOT NULL"),
				entsql.Column("input_tokens").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("output_tokens").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("latency_ms").Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("success").Type("INTEGER").Attr("NOT NULL"),
				entsql.Column("error_message").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("request_body").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
				entsql.Column("response_body").Type("TEXT").Attr("NOT NULL DEFAULT ''"),
			),
	}
}

// indexes are created after the tables. The ent builder has no
// CREATE INDEX IF NOT EXISTS, so these stay raw.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS interaction_events_user_seq ON interaction_events (user_id, sequence)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,
}

// migrate creates missing tables and indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, t := range tables() {
		query, args := t.Query()
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
