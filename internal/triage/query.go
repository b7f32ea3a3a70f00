package triage

import (
	"sort"
	"strings"

	"github.com/linnemanlabs/medwatch/internal/alert"
)

// Filter narrows an alert list for the triage UI. Zero fields match
// everything; Text searches title, message, and kind case-insensitively.
type Filter struct {
	Text     string
	Severity alert.Severity
	Kind     alert.Kind
}

// Match reports whether the alert passes the filter.
func (f Filter) Match(a *alert.Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Message), needle) &&
			!strings.Contains(strings.ToLower(string(a.Kind)), needle) {
			return false
		}
	}
	return true
}

// Summarize counts active alerts by severity. Acknowledged, dismissed, and
// resolved alerts never appear in the counts.
func Summarize(alerts []*alert.Alert) alert.Summary {
	var s alert.Summary
	for _, a := range alerts {
		if a.Active() {
			s.Add(a.Severity)
		}
	}
	return s
}

// SortBySeverity orders alerts critical-first, stable so equal severities
// keep their detection order.
func SortBySeverity(alerts []*alert.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
}

// Selection is the set of alert ids picked for a bulk action.
type Selection map[string]struct{}

// SelectActive returns a selection holding every active alert, the
// "select all unacknowledged" helper behind bulk acknowledge.
func SelectActive(alerts []*alert.Alert) Selection {
	sel := make(Selection)
	for _, a := range alerts {
		if a.Active() {
			sel[a.ID] = struct{}{}
		}
	}
	return sel
}

// Toggle flips one id in or out of the selection.
func (s Selection) Toggle(id string) {
	if _, ok := s[id]; ok {
		delete(s, id)
		return
	}
	s[id] = struct{}{}
}

// Has reports whether the id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected ids in sorted order for deterministic batches.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
