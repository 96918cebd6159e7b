// Package profile maintains per-user SQL skill profiles: expertise, working
// capacity, per-concept levels and a short interaction history.
package profile

import (
	"maps"
	"slices"
	"time"

	"github.com/abhisek/querywise/internal/concept"
)

const (
	// MinLevel and MaxLevel bound every score stored on a profile.
	MinLevel = 1
	MaxLevel = 5

	// HistoryLimit is the number of interactions kept per profile.
	HistoryLimit = 10

	// MaxQueryRunes bounds the question text kept in a history entry.
	MaxQueryRunes = 200

	DefaultExpertise = 2
	DefaultCapacity  = 3
)

// Profile is one user's skill model.
type Profile struct {
	UserID         string                  `json:"user_id"`
	ExpertiseLevel int                     `json:"expertise_level"`
	ConceptLevels  map[concept.Concept]int `json:"concept_levels"`
	Capacity       int                     `json:"capacity"`
	History        []HistoryEntry          `json:"history"`
	LastUpdated    time.Time               `json:"last_updated"`
}

// HistoryEntry records one interaction, most recent last.
type HistoryEntry struct {
	Timestamp        time.Time       `json:"timestamp"`
	Query            string          `json:"query"`
	Concept          concept.Concept `json:"concept"`
	IntrinsicLoad    int             `json:"intrinsic_load"`
	ExplanationGiven bool            `json:"explanation_given"`
	ExplanationType  string          `json:"explanation_type"`
}

// Interaction is what the pipeline reports after assessing one question.
type Interaction struct {
	Query            string
	Concept          concept.Concept
	IntrinsicLoad    int
	ExplanationGiven bool
	ExplanationType  string
}

// New returns the first-contact profile for userID.
func New(userID string, now time.Time) *Profile {
	levels := make(map[concept.Concept]int, len(concept.All()))
	for _, c := range concept.All() {
		levels[c] = MinLevel
	}
	return &Profile{
		UserID:         userID,
		ExpertiseLevel: DefaultExpertise,
		ConceptLevels:  levels,
		Capacity:       DefaultCapacity,
		History:        []HistoryEntry{},
		LastUpdated:    now,
	}
}

// ConceptLevel returns the level for c, or MinLevel when none is recorded.
func (p *Profile) ConceptLevel(c concept.Concept) int {
	if lvl, ok := p.ConceptLevels[c]; ok {
		return lvl
	}
	return MinLevel
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.ConceptLevels = maps.Clone(p.ConceptLevels)
	if c.ConceptLevels == nil {
		c.ConceptLevels = map[concept.Concept]int{}
	}
	c.History = slices.Clone(p.History)
	if c.History == nil {
		c.History = []HistoryEntry{}
	}
	return &c
}

// normalize restores invariants on a record read from a backend: scores are
// clamped, every skill concept has a level and history is capped.
func (p *Profile) normalize() {
	p.ExpertiseLevel = clampLevel(p.ExpertiseLevel)
	p.Capacity = clampLevel(p.Capacity)
	if p.ConceptLevels == nil {
		p.ConceptLevels = make(map[concept.Concept]int, len(concept.All()))
	}
	for _, c := range concept.All() {
		p.ConceptLevels[c] = clampLevel(p.ConceptLevels[c])
	}
	if p.History == nil {
		p.History = []HistoryEntry{}
	}
	if n := len(p.History); n > HistoryLimit {
		p.History = slices.Clone(p.History[n-HistoryLimit:])
	}
}

// apply records an interaction: append to history, cap it, and promote the
// concept when a demanding statement needed no explanation.
func (p *Profile) apply(in Interaction, now time.Time) {
	p.History = append(p.History, HistoryEntry{
		Timestamp:        now,
		Query:            truncateRunes(in.Query, MaxQueryRunes),
		Concept:          in.Concept,
		IntrinsicLoad:    in.IntrinsicLoad,
		ExplanationGiven: in.ExplanationGiven,
		ExplanationType:  in.ExplanationType,
	})
	if n := len(p.History); n > HistoryLimit {
		p.History = slices.Clone(p.History[n-HistoryLimit:])
	}

	if in.IntrinsicLoad >= 4 && !in.ExplanationGiven && in.Concept.Valid() {
		p.ConceptLevels[in.Concept] = clampLevel(p.ConceptLevel(in.Concept) + 1)
	}

	p.LastUpdated = now
}

// seed sets expertise and derives capacity and concept levels from it.
func (p *Profile) seed(expertise int, now time.Time) {
	e := clampLevel(expertise)
	p.ExpertiseLevel = e
	p.Capacity = min(max(e-1, 1), 3)
	p.ConceptLevels = map[concept.Concept]int{
		concept.BasicSelect:       min(e, 3),
		concept.Aggregation:       max(1, e-1),
		concept.Joins:             max(1, e-2),
		concept.AdvancedLogic:     max(1, e-3),
		concept.WindowFunctions:   max(1, e-4),
		concept.AdvancedAnalytics: max(1, e-4),
	}
	p.LastUpdated = now
}

func clampLevel(v int) int {
	return min(max(v, MinLevel), MaxLevel)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
