// Package rules holds the clinical knowledge tables the detectors evaluate
// against: dangerous drug pairs, allergy cross-reactivity classes, analyte
// reference bands, and vital-sign thresholds. The tables are plain data
// injected into each detector so they can later be swapped for a terminology
// service without changing detector signatures.
package rules

import (
	"errors"
	"fmt"
)

// Severity labels used by the tables. They mirror triage severities but stay
// strings here so the rules file remains a plain document.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Interaction is one known dangerous drug pair. Matching is case-insensitive
// substring containment of A and B against two distinct medication names.
type Interaction struct {
	A        string `yaml:"a"`
	B        string `yaml:"b"`
	Severity string `yaml:"severity"`
	Effect   string `yaml:"effect"`
}

// CrossReactivity maps an allergen class to related drugs a patient with
// that allergy should not receive.
type CrossReactivity struct {
	Allergen string   `yaml:"allergen"`
	Class    string   `yaml:"class"`
	Drugs    []string `yaml:"drugs"`
	Severity string   `yaml:"severity"`
}

// Analyte holds the reference bands for one lab test. The outer Low/High
// band raises a high alert; the stricter PanicLow/PanicHigh band raises a
// critical one. Nil bounds mean unbounded on that side. All comparisons are
// strict: a value sitting exactly on a panic bound is high, not critical.
type Analyte struct {
	Test      string   `yaml:"test"`
	Unit      string   `yaml:"unit"`
	Low       *float64 `yaml:"low"`
	High      *float64 `yaml:"high"`
	PanicLow  *float64 `yaml:"panic_low"`
	PanicHigh *float64 `yaml:"panic_high"`
}

// VitalThresholds holds fixed vital-sign bounds. Blood pressure drives the
// hypertensive-crisis / hypotension rules; the remaining bands cover heart
// rate, temperature, and oxygen saturation.
type VitalThresholds struct {
	SystolicCritHigh  float64 `yaml:"systolic_crit_high"`
	DiastolicCritHigh float64 `yaml:"diastolic_crit_high"`
	SystolicCritLow   float64 `yaml:"systolic_crit_low"`
	SystolicHigh      float64 `yaml:"systolic_high"`
	DiastolicHigh     float64 `yaml:"diastolic_high"`

	HeartRateCritLow  float64 `yaml:"heart_rate_crit_low"`
	HeartRateCritHigh float64 `yaml:"heart_rate_crit_high"`
	HeartRateLow      float64 `yaml:"heart_rate_low"`
	HeartRateHigh     float64 `yaml:"heart_rate_high"`

	TempCritLow  float64 `yaml:"temp_crit_low"`
	TempCritHigh float64 `yaml:"temp_crit_high"`
	TempHigh     float64 `yaml:"temp_high"`

	OxygenCritLow float64 `yaml:"oxygen_crit_low"`
	OxygenLow     float64 `yaml:"oxygen_low"`
}

// Ruleset bundles every table the detectors need.
type Ruleset struct {
	Interactions    []Interaction     `yaml:"interactions"`
	CrossReactivity []CrossReactivity `yaml:"cross_reactivity"`
	Analytes        []Analyte         `yaml:"analytes"`
	Vitals          VitalThresholds   `yaml:"vitals"`
}

func f(v float64) *float64 { return &v }

// Default returns the bundled baseline tables. They are a heuristic floor,
// not an exhaustive formulary.
func Default() *Ruleset {
	return &Ruleset{
		Interactions: []Interaction{
			{A: "warfarin", B: "aspirin", Severity: SeverityCritical, Effect: "increased bleeding risk"},
			{A: "warfarin", B: "ibuprofen", Severity: SeverityCritical, Effect: "increased bleeding risk"},
			{A: "warfarin", B: "naproxen", Severity: SeverityCritical, Effect: "increased bleeding risk"},
			{A: "lisinopril", B: "potassium", Severity: SeverityHigh, Effect: "risk of hyperkalemia"},
			{A: "enalapril", B: "potassium", Severity: SeverityHigh, Effect: "risk of hyperkalemia"},
			{A: "ramipril", B: "potassium", Severity: SeverityHigh, Effect: "risk of hyperkalemia"},
			{A: "sildenafil", B: "nitroglycerin", Severity: SeverityCritical, Effect: "severe hypotension"},
			{A: "simvastatin", B: "clarithromycin", Severity: SeverityHigh, Effect: "risk of rhabdomyolysis"},
		},
		CrossReactivity: []CrossReactivity{
			{
				Allergen: "penicillin",
				Class:    "cephalosporin",
				Drugs:    []string{"cephalexin", "cefaclor", "cefuroxime", "ceftriaxone", "cefdinir"},
				Severity: SeverityHigh,
			},
		},
		Analytes: []Analyte{
			{Test: "potassium", Unit: "mmol/L", Low: f(3.5), High: f(5.2), PanicLow: f(3.0), PanicHigh: f(6.0)},
			{Test: "glucose", Unit: "mg/dL", Low: f(70), High: f(180), PanicLow: f(50), PanicHigh: f(400)},
			{Test: "creatinine", Unit: "mg/dL", High: f(2.0), PanicHigh: f(4.0)},
			{Test: "hemoglobin", Unit: "g/dL", Low: f(8.0), High: f(18.0), PanicLow: f(6.5), PanicHigh: f(20.0)},
			{Test: "platelets", Unit: "K/uL", Low: f(100), High: f(450), PanicLow: f(20), PanicHigh: f(1000)},
			{Test: "wbc", Unit: "K/uL", Low: f(3.0), High: f(11.0), PanicLow: f(1.0), PanicHigh: f(30.0)},
		},
		Vitals: VitalThresholds{
			SystolicCritHigh:  180,
			DiastolicCritHigh: 120,
			SystolicCritLow:   90,
			SystolicHigh:      140,
			DiastolicHigh:     90,
			HeartRateCritLow:  40,
			HeartRateCritHigh: 150,
			HeartRateLow:      50,
			HeartRateHigh:     120,
			TempCritLow:       35.0,
			TempCritHigh:      40.0,
			TempHigh:          38.5,
			OxygenCritLow:     88,
			OxygenLow:         92,
		},
	}
}

// Validate checks the tables for entries that would make detection
// nonsensical (empty drug names, inverted bands, unknown severities).
func (r *Ruleset) Validate() error {
	var errs []error

	for i, in := range r.Interactions {
		if in.A == "" || in.B == "" {
			errs = append(errs, fmt.Errorf("interaction %d: both drug names required", i))
		}
		if !validSeverity(in.Severity) {
			errs = append(errs, fmt.Errorf("interaction %d (%s/%s): invalid severity %q", i, in.A, in.B, in.Severity))
		}
	}

	for i, cr := range r.CrossReactivity {
		if cr.Allergen == "" || len(cr.Drugs) == 0 {
			errs = append(errs, fmt.Errorf("cross_reactivity %d: allergen and drugs required", i))
		}
		if !validSeverity(cr.Severity) {
			errs = append(errs, fmt.Errorf("cross_reactivity %d (%s): invalid severity %q", i, cr.Allergen, cr.Severity))
		}
	}

	for i, a := range r.Analytes {
		if a.Test == "" {
			errs = append(errs, fmt.Errorf("analyte %d: test name required", i))
			continue
		}
		if a.Low != nil && a.High != nil && *a.Low > *a.High {
			errs = append(errs, fmt.Errorf("analyte %s: low %g > high %g", a.Test, *a.Low, *a.High))
		}
		if a.PanicLow != nil && a.Low != nil && *a.PanicLow > *a.Low {
			errs = append(errs, fmt.Errorf("analyte %s: panic_low %g > low %g", a.Test, *a.PanicLow, *a.Low))
		}
		if a.PanicHigh != nil && a.High != nil && *a.PanicHigh < *a.High {
			errs = append(errs, fmt.Errorf("analyte %s: panic_high %g < high %g", a.Test, *a.PanicHigh, *a.High))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}
