package detect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/rules"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

// CriticalLabDetector compares normalized lab observations against the
// analyte reference bands. A value strictly outside the panic band is
// critical; strictly outside the outer band is high. Observations with
// missing or non-numeric values are skipped one at a time; unknown analytes
// raise nothing.
type CriticalLabDetector struct {
	rules *rules.Ruleset
}

// NewCriticalLab creates the detector with the given rule tables.
func NewCriticalLab(rs *rules.Ruleset) *CriticalLabDetector {
	return &CriticalLabDetector{rules: rs}
}

func (d *CriticalLabDetector) Name() string     { return "critical-lab" }
func (d *CriticalLabDetector) Kind() alert.Kind { return alert.KindCriticalLab }

func (d *CriticalLabDetector) Detect(_ context.Context, snap *snapshot.Patient) ([]Candidate, error) {
	var out []Candidate
	emitted := make(map[string]bool)

	for _, obs := range snap.Labs {
		analyte, ok := d.lookup(obs.TestName)
		if !ok {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
		if err != nil {
			// MalformedObservation: skip this finding, keep scanning.
			continue
		}

		severity, ok := classify(analyte, value)
		if !ok {
			continue
		}

		key := strings.ToLower(analyte.Test)
		if emitted[key] {
			continue
		}
		emitted[key] = true

		unit := obs.Unit
		if unit == "" {
			unit = analyte.Unit
		}

		out = append(out, Candidate{
			Kind:           alert.KindCriticalLab,
			Severity:       severity,
			Title:          "Critical Lab Value",
			Message:        labMessage(analyte, value, unit, severity),
			NaturalKey:     key,
			ActionRequired: true,
			Related: map[string]any{
				"test":  analyte.Test,
				"value": value,
				"unit":  unit,
			},
		})
	}
	return out, nil
}

func (d *CriticalLabDetector) lookup(testName string) (rules.Analyte, bool) {
	name := strings.TrimSpace(testName)
	for _, a := range d.rules.Analytes {
		if strings.EqualFold(a.Test, name) {
			return a, true
		}
	}
	return rules.Analyte{}, false
}

// classify places a value against the analyte's bands. Comparisons are
// strict: a value exactly on a panic bound is high, exactly on an outer
// bound is normal.
func classify(a rules.Analyte, v float64) (alert.Severity, bool) {
	if (a.PanicLow != nil && v < *a.PanicLow) || (a.PanicHigh != nil && v > *a.PanicHigh) {
		return alert.SeverityCritical, true
	}
	if (a.Low != nil && v < *a.Low) || (a.High != nil && v > *a.High) {
		return alert.SeverityHigh, true
	}
	return "", false
}

func labMessage(a rules.Analyte, v float64, unit string, sev alert.Severity) string {
	band := describeBand(a)
	if sev == alert.SeverityCritical {
		return fmt.Sprintf("%s %g %s is a panic value (reference %s)", a.Test, v, unit, band)
	}
	return fmt.Sprintf("%s %g %s is outside the reference range (%s)", a.Test, v, unit, band)
}

func describeBand(a rules.Analyte) string {
	switch {
	case a.Low != nil && a.High != nil:
		return fmt.Sprintf("%g-%g", *a.Low, *a.High)
	case a.High != nil:
		return fmt.Sprintf("<=%g", *a.High)
	case a.Low != nil:
		return fmt.Sprintf(">=%g", *a.Low)
	}
	return "unbounded"
}
