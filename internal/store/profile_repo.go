package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/querywise/internal/profile"
)

// ProfileRepo stores profiles in SQLite. It implements profile.Backend and
// profile.Lister.
type ProfileRepo struct {
	db *sql.DB
}

var (
	_ profile.Backend = (*ProfileRepo)(nil)
	_ profile.Lister  = (*ProfileRepo)(nil)
)

// Get loads one profile. Missing rows yield profile.ErrNotFound.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	b := builder()
	query, args := b.Select("data").
		From(b.Table(tableProfiles)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var data string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return decodeProfile([]byte(data))
}

// Put upserts the whole profile.
func (r *ProfileRepo) Put(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	updated := p.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	query, args := builder().Insert(tableProfiles).
		Columns("user_id", "expertise_level", "capacity", "data", "updated_at").
		Values(p.UserID, p.ExpertiseLevel, p.Capacity, string(data), updated.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// List returns every stored profile ordered by user id.
func (r *ProfileRepo) List(ctx context.Context) ([]*profile.Profile, error) {
	b := builder()
	query, args := b.Select("data").
		From(b.Table(tableProfiles)).
		OrderBy("user_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p, err := decodeProfile([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func decodeProfile(data []byte) (*profile.Profile, error) {
	var p profile.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
