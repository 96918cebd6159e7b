package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var interactionColumns = []string{
	"id", "sequence", "timestamp", "user_id", "question", "statement",
	"success", "error_message", "concept", "intrinsic_load",
	"explanation_needed", "explanation_type", "provenance",
	"explanation_generated", "duration_ms",
}

// AppendInteraction records the outcome of one pipeline run.
func (r *EventRepo) AppendInteraction(ctx context.Context, data InteractionEventData) error {
	if data.ID == "" {
		return fmt.Errorf("interaction id is required")
	}
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(tableInteractions).
		Columns(interactionColumns...).
		Values(
			data.ID,
			seqNum,
			time.Now().UnixMilli(),
			data.UserID,
			data.Question,
			data.Statement,
			data.Success,
			data.ErrorMessage,
			data.Concept,
			data.IntrinsicLoad,
			data.ExplanationNeeded,
			data.ExplanationType,
			data.Provenance,
			data.ExplanationGenerated,
			data.DurationMs,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save interaction event: %w", err)
	}
	return nil
}

// QueryInteractions returns interaction events, newest first.
func (r *EventRepo) QueryInteractions(ctx context.Context, opts QueryOpts) ([]InteractionEvent, error) {
	b := builder()
	sel := b.Select(interactionColumns...).From(b.Table(tableInteractions))
	applyOpts(sel, opts)
	if opts.UserID != "" {
		sel.Where(entsql.EQ("user_id", opts.UserID))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var events []InteractionEvent
	for rows.Next() {
		var (
			e  InteractionEvent
			ts int64
		)
		if err := rows.Scan(
			&e.ID, &e.Sequence, &ts, &e.UserID, &e.Question, &e.Statement,
			&e.Success, &e.ErrorMessage, &e.Concept, &e.IntrinsicLoad,
			&e.ExplanationNeeded, &e.ExplanationType, &e.Provenance,
			&e.ExplanationGenerated, &e.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// InteractionStats summarizes one user's interactions.
type InteractionStats struct {
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Explanations int `json:"explanations"`
}

// InteractionStatsFor aggregates counts for userID. An empty userID covers everyone.
func (r *EventRepo) InteractionStatsFor(ctx context.Context, userID string) (InteractionStats, error) {
	b := builder()
	sel := b.Select(
		entsql.Count("*"),
		"COALESCE(SUM(success), 0)",
		"COALESCE(SUM(explanation_generated), 0)",
	).From(b.Table(tableInteractions))
	if userID != "" {
		sel.Where(entsql.EQ("user_id", userID))
	}

	var st InteractionStats
	query, args := sel.Query()
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&st.Total, &st.Succeeded, &st.Explanations); err != nil {
		return InteractionStats{}, fmt.Errorf("interaction stats: %w", err)
	}
	return st, nil
}
