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

// CriticalVitalDetector applies fixed thresholds to vital-sign readings.
// Blood pressure is parsed from the raw "systolic/diastolic" string;
// malformed readings are skipped silently. Heart rate, temperature, and
// oxygen are checked when present (zero means not recorded).
type CriticalVitalDetector struct {
	rules *rules.Ruleset
}

// NewCriticalVital creates the detector with the given rule tables.
func NewCriticalVital(rs *rules.Ruleset) *CriticalVitalDetector {
	return &CriticalVitalDetector{rules: rs}
}

func (d *CriticalVitalDetector) Name() string     { return "critical-vital" }
func (d *CriticalVitalDetector) Kind() alert.Kind { return alert.KindCriticalVital }

func (d *CriticalVitalDetector) Detect(_ context.Context, snap *snapshot.Patient) ([]Candidate, error) {
	t := d.rules.Vitals
	var out []Candidate
	emitted := make(map[string]bool)

	emit := func(c Candidate) {
		if emitted[c.NaturalKey] {
			return
		}
		emitted[c.NaturalKey] = true
		out = append(out, c)
	}

	for _, v := range snap.Vitals {
		if c, ok := d.checkBloodPressure(v.BloodPressure); ok {
			emit(c)
		}

		if v.HeartRate > 0 {
			switch {
			case v.HeartRate < t.HeartRateCritLow || v.HeartRate > t.HeartRateCritHigh:
				emit(vitalCandidate("heart-rate", alert.SeverityCritical,
					fmt.Sprintf("Heart rate %g bpm is critically abnormal", v.HeartRate), v.HeartRate))
			case v.HeartRate < t.HeartRateLow || v.HeartRate > t.HeartRateHigh:
				emit(vitalCandidate("heart-rate", alert.SeverityHigh,
					fmt.Sprintf("Heart rate %g bpm is outside normal bounds", v.HeartRate), v.HeartRate))
			}
		}

		if v.Temperature > 0 {
			switch {
			case v.Temperature < t.TempCritLow || v.Temperature > t.TempCritHigh:
				emit(vitalCandidate("temperature", alert.SeverityCritical,
					fmt.Sprintf("Temperature %g C is critically abnormal", v.Temperature), v.Temperature))
			case v.Temperature > t.TempHigh:
				emit(vitalCandidate("temperature", alert.SeverityHigh,
					fmt.Sprintf("Temperature %g C indicates significant fever", v.Temperature), v.Temperature))
			}
		}

		if v.Oxygen > 0 {
			switch {
			case v.Oxygen < t.OxygenCritLow:
				emit(vitalCandidate("oxygen", alert.SeverityCritical,
					fmt.Sprintf("Oxygen saturation %g%% is critically low", v.Oxygen), v.Oxygen))
			case v.Oxygen < t.OxygenLow:
				emit(vitalCandidate("oxygen", alert.SeverityHigh,
					fmt.Sprintf("Oxygen saturation %g%% is below normal", v.Oxygen), v.Oxygen))
			}
		}
	}
	return out, nil
}

// checkBloodPressure parses "systolic/diastolic" and classifies it.
// Unparsable strings report ok=false and are skipped without raising.
func (d *CriticalVitalDetector) checkBloodPressure(raw string) (Candidate, bool) {
	systolic, diastolic, ok := parseBP(raw)
	if !ok {
		return Candidate{}, false
	}

	t := d.rules.Vitals
	related := map[string]any{
		"blood_pressure": raw,
		"systolic":       systolic,
		"diastolic":      diastolic,
	}

	base := Candidate{
		Kind:           alert.KindCriticalVital,
		Title:          "Critical Vital Sign",
		NaturalKey:     "blood-pressure",
		ActionRequired: true,
		Related:        related,
	}

	switch {
	case float64(systolic) > t.SystolicCritHigh || float64(diastolic) > t.DiastolicCritHigh:
		base.Severity = alert.SeverityCritical
		base.Message = fmt.Sprintf("Hypertensive Crisis: blood pressure %s", raw)
		return base, true
	case float64(systolic) < t.SystolicCritLow:
		base.Severity = alert.SeverityCritical
		base.Message = fmt.Sprintf("Hypotension: blood pressure %s", raw)
		return base, true
	case float64(systolic) > t.SystolicHigh || float64(diastolic) > t.DiastolicHigh:
		base.Severity = alert.SeverityHigh
		base.Message = fmt.Sprintf("Hypertension: blood pressure %s", raw)
		return base, true
	}
	return Candidate{}, false
}

func vitalCandidate(key string, sev alert.Severity, msg string, value float64) Candidate {
	return Candidate{
		Kind:           alert.KindCriticalVital,
		Severity:       sev,
		Title:          "Critical Vital Sign",
		Message:        msg,
		NaturalKey:     key,
		ActionRequired: true,
		Related:        map[string]any{"vital": key, "value": value},
	}
}

func parseBP(raw string) (systolic, diastolic int, ok bool) {
	sysStr, diaStr, found := strings.Cut(strings.TrimSpace(raw), "/")
	if !found {
		return 0, 0, false
	}
	systolic, err := strconv.Atoi(strings.TrimSpace(sysStr))
	if err != nil || systolic <= 0 {
		return 0, 0, false
	}
	diastolic, err = strconv.Atoi(strings.TrimSpace(diaStr))
	if err != nil || diastolic <= 0 {
		return 0, 0, false
	}
	return systolic, diastolic, true
}
