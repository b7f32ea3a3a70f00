// Package detect holds the rule evaluators that map a patient snapshot to
// alert candidates. Each detector is a pure function over an immutable
// snapshot: no I/O, no shared state, safe to run in parallel.
package detect

import (
	"context"
	"strings"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

// Candidate is a detector finding before the aggregator assigns identity.
type Candidate struct {
	Kind           alert.Kind
	Severity       alert.Severity
	Title          string
	Message        string
	NaturalKey     string
	ActionRequired bool
	Related        map[string]any
}

// Detector is a rule evaluator. Detect returns zero or more candidates; an
// error or panic is contained at the engine boundary and never aborts the
// other detectors.
type Detector interface {
	Name() string
	Kind() alert.Kind
	Detect(ctx context.Context, snap *snapshot.Patient) ([]Candidate, error)
}

// Registry holds detectors in registration order. Order is part of the
// engine contract: it is the tiebreak for equal-severity sorting.
type Registry struct {
	detectors []Detector
}

// NewRegistry creates an empty detector registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a detector. Registering the same name twice is a
// programming error the engine will surface as duplicate candidates.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Detectors returns the registered detectors in registration order.
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// containsFold is the case-insensitive substring heuristic used for drug and
// allergy matching. An empty needle never matches: "" is a substring of
// everything and would flag every medication.
func containsFold(hay, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(hay), strings.ToLower(needle))
}
