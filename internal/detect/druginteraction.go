package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/rules"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

// DrugInteractionDetector checks every unordered pair of active medications
// (plus the proposed one, if any) against the interaction table. All pairs
// are evaluated; there is no short-circuit on the first hit.
type DrugInteractionDetector struct {
	rules *rules.Ruleset
}

// NewDrugInteraction creates the detector with the given rule tables.
func NewDrugInteraction(rs *rules.Ruleset) *DrugInteractionDetector {
	return &DrugInteractionDetector{rules: rs}
}

func (d *DrugInteractionDetector) Name() string     { return "drug-interaction" }
func (d *DrugInteractionDetector) Kind() alert.Kind { return alert.KindDrugInteraction }

// Detect returns one candidate per matched interaction pair. The natural key
// is the sorted pair of table terms, so medication order (and duplicate
// medications matching the same term) cannot change alert identity.
func (d *DrugInteractionDetector) Detect(_ context.Context, snap *snapshot.Patient) ([]Candidate, error) {
	meds := snap.ActiveMedicationNames()
	if len(meds) < 2 {
		return nil, nil
	}

	// Treat the medications as a set: sort a deduplicated copy so the same
	// record always walks pairs in the same order.
	set := make([]string, 0, len(meds))
	seen := make(map[string]bool, len(meds))
	for _, m := range meds {
		key := strings.ToLower(strings.TrimSpace(m))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		set = append(set, m)
	}
	sort.Slice(set, func(i, j int) bool {
		return strings.ToLower(set[i]) < strings.ToLower(set[j])
	})

	var out []Candidate
	emitted := make(map[string]bool)

	for i := 0; i < len(set); i++ {
		for j := i + 1; j < len(set); j++ {
			for _, in := range d.rules.Interactions {
				var first, second string
				switch {
				case containsFold(set[i], in.A) && containsFold(set[j], in.B):
					first, second = set[i], set[j]
				case containsFold(set[i], in.B) && containsFold(set[j], in.A):
					first, second = set[j], set[i]
				default:
					continue
				}

				key := pairKey(in.A, in.B)
				if emitted[key] {
					continue
				}
				emitted[key] = true

				out = append(out, Candidate{
					Kind:           alert.KindDrugInteraction,
					Severity:       alert.Severity(in.Severity),
					Title:          "Drug Interaction",
					Message:        fmt.Sprintf("%s + %s: %s", first, second, in.Effect),
					NaturalKey:     key,
					ActionRequired: true,
					Related: map[string]any{
						"medications": []string{first, second},
						"effect":      in.Effect,
					},
				})
			}
		}
	}
	return out, nil
}

// pairKey builds the order-independent natural key for an interaction pair.
func pairKey(a, b string) string {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
