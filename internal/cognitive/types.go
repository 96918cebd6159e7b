// Package cognitive decides, per user and per statement, whether an
// explanation is warranted and at what level.
package cognitive

import (
	"github.com/abhisek/querywise/internal/concept"
)

// ExplanationType is the requested depth of an explanation.
type ExplanationType string

const (
	None          ExplanationType = "none"
	Basic         ExplanationType = "basic"
	Intermediate  ExplanationType = "intermediate"
	Advanced      ExplanationType = "advanced"
	Simplified    ExplanationType = "simplified"
	Conceptual    ExplanationType = "conceptual"
	Detailed      ExplanationType = "detailed"
	ErrorHandling ExplanationType = "error_handling"
)

// ExplanationTypes returns every explanation type in declaration order.
func ExplanationTypes() []ExplanationType {
	return []ExplanationType{None, Basic, Intermediate, Advanced, Simplified, Conceptual, Detailed, ErrorHandling}
}

// Valid reports whether t is a known explanation type.
func (t ExplanationType) Valid() bool {
	for _, v := range ExplanationTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// Provenance says which path produced an assessment.
type Provenance string

const (
	ProvenanceRule      Provenance = "rule"
	ProvenanceDelegated Provenance = "delegated"
)

// Assessment is the outcome of assessing one statement for one user.
type Assessment struct {
	IntrinsicLoad     int             `json:"intrinsic_load"`
	Concept           concept.Concept `json:"concept"`
	ExplanationNeeded bool            `json:"explanation_needed"`
	ExplanationType   ExplanationType `json:"explanation_type"`
	Reasoning         string          `json:"reasoning"`
	Provenance        Provenance      `json:"provenance"`
}

// Decision is the explanation verdict, independent of how it was reached.
type Decision struct {
	Needed    bool
	Type      ExplanationType
	Reasoning string
}

// Subject is what gets assessed: the user's relevant skill scores and the
// statement's measured properties.
type Subject struct {
	Expertise     int
	Capacity      int
	ConceptLevel  int
	IntrinsicLoad int
	Concept       concept.Concept
	Statement     string
}
