package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/rules"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

// AllergyDetector flags medications that conflict with the patient's allergy
// list, either by direct name containment (critical) or through the
// cross-reactivity class table (high). An absent allergy list yields no
// candidates; that is a clean record, not an error.
type AllergyDetector struct {
	rules *rules.Ruleset
}

// NewAllergy creates the detector with the given rule tables.
func NewAllergy(rs *rules.Ruleset) *AllergyDetector {
	return &AllergyDetector{rules: rs}
}

func (d *AllergyDetector) Name() string     { return "allergy" }
func (d *AllergyDetector) Kind() alert.Kind { return alert.KindAllergy }

func (d *AllergyDetector) Detect(_ context.Context, snap *snapshot.Patient) ([]Candidate, error) {
	if len(snap.Allergies) == 0 {
		return nil, nil
	}

	var out []Candidate
	emitted := make(map[string]bool)

	for _, med := range snap.ActiveMedicationNames() {
		for _, allergen := range snap.Allergies {
			if !containsFold(med, allergen) {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(allergen)) + "|" + strings.ToLower(strings.TrimSpace(med))
			if emitted[key] {
				continue
			}
			emitted[key] = true
			out = append(out, Candidate{
				Kind:           alert.KindAllergy,
				Severity:       alert.SeverityCritical,
				Title:          "Allergy Conflict",
				Message:        fmt.Sprintf("%s conflicts with documented %s allergy", med, allergen),
				NaturalKey:     key,
				ActionRequired: true,
				Related: map[string]any{
					"medication": med,
					"allergen":   allergen,
				},
			})
		}

		for _, cr := range d.rules.CrossReactivity {
			if !allergyListed(snap.Allergies, cr.Allergen) {
				continue
			}
			for _, drug := range cr.Drugs {
				if !containsFold(med, drug) {
					continue
				}
				key := strings.ToLower(cr.Allergen) + "|" + strings.ToLower(drug)
				if emitted[key] {
					continue
				}
				emitted[key] = true
				out = append(out, Candidate{
					Kind:     alert.KindAllergy,
					Severity: alert.Severity(cr.Severity),
					Title:    "Cross-Reactivity Risk",
					Message: fmt.Sprintf("%s is a %s; possible cross-reactivity with documented %s allergy",
						med, cr.Class, cr.Allergen),
					NaturalKey:     key,
					ActionRequired: true,
					Related: map[string]any{
						"medication": med,
						"allergen":   cr.Allergen,
						"class":      cr.Class,
					},
				})
			}
		}
	}
	return out, nil
}

// allergyListed reports whether any documented allergy matches the table
// allergen, substring either way so "penicillin VK" and "penicillins" both
// hit the penicillin class.
func allergyListed(allergies []string, allergen string) bool {
	for _, a := range allergies {
		if containsFold(a, allergen) || containsFold(allergen, a) {
			return true
		}
	}
	return false
}
