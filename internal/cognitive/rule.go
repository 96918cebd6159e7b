package cognitive

import (
	"fmt"

	"github.com/abhisek/querywise/internal/complexity"
	"github.com/abhisek/querywise/internal/concept"
)

// DefaultLoadFactor is k in "load > expertise * k".
const DefaultLoadFactor = 2.0

// Decide applies the deterministic rule. It has no external dependencies
// and always produces a decision.
//
// An explanation is needed when the load exceeds expertise*k. Novices
// (expertise <= 2) need one as soon as the load exceeds their expertise.
// Experts (expertise >= 4) never get one for a load of 2 or less.
func Decide(expertise, load int, k float64) Decision {
	expertise = complexity.Clamp(expertise)
	load = complexity.Clamp(load)
	if k <= 0 {
		k = DefaultLoadFactor
	}

	needed := float64(load) > float64(expertise)*k
	reasoning := fmt.Sprintf("load %d vs expertise %d at factor %g", load, expertise, k)

	switch {
	case expertise >= 4 && load <= 2:
		needed = false
		reasoning = fmt.Sprintf("expert (level %d) on a light task (load %d)", expertise, load)
	case expertise <= 2 && load > expertise:
		needed = true
		reasoning = fmt.Sprintf("load %d exceeds novice expertise %d", load, expertise)
	}

	if !needed {
		return Decision{Needed: false, Type: None, Reasoning: reasoning}
	}
	return Decision{Needed: true, Type: typeFor(expertise), Reasoning: reasoning}
}

func typeFor(expertise int) ExplanationType {
	switch {
	case expertise <= 2:
		return Basic
	case expertise == 3:
		return Intermediate
	default:
		return Advanced
	}
}

// AssessFailure is the fixed assessment for a statement the engine rejected.
func AssessFailure(execErr string) Assessment {
	return Assessment{
		IntrinsicLoad:     complexity.Max,
		Concept:           concept.Error,
		ExplanationNeeded: true,
		ExplanationType:   ErrorHandling,
		Reasoning:         execErr,
		Provenance:        ProvenanceRule,
	}
}
