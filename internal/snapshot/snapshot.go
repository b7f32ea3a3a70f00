// Package snapshot defines the point-in-time view of a patient's clinical
// record consumed by the detection engine. Heterogeneous source shapes
// (legacy nested lab results, mixed date formats) are normalized here at
// ingestion so detectors see a single shape.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MedicationStatusActive marks a medication as currently prescribed. An empty
// status is treated as active; anything else excludes the medication from
// detection.
const MedicationStatusActive = "active"

// Patient is a read-only snapshot of one patient's record.
type Patient struct {
	PatientID    string           `json:"patient_id,omitempty"`
	Medications  []Medication     `json:"medications,omitempty"`
	Allergies    []string         `json:"allergies,omitempty"`
	Labs         []LabObservation `json:"labs,omitempty"`
	Vitals       []Vital          `json:"vitals,omitempty"`
	Appointments []Appointment    `json:"appointments,omitempty"`

	// ProposedMedication extends the active medication set with one
	// not-yet-prescribed drug for check-before-prescribing scans.
	ProposedMedication string `json:"proposed_medication,omitempty"`
}

// Medication is a prescribed drug on the patient's record.
type Medication struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Active reports whether the medication counts toward detection.
func (m Medication) Active() bool {
	s := strings.TrimSpace(strings.ToLower(m.Status))
	return s == "" || s == MedicationStatusActive
}

// LabObservation is a single normalized lab result. Value is kept as a string
// because sources deliver both numbers and free text; numeric parsing happens
// in the detector so one bad value skips one observation, not the scan.
type LabObservation struct {
	TestName string `json:"test_name"`
	Value    string `json:"value"`
	Unit     string `json:"unit,omitempty"`
}

// labWire accepts both shapes seen in the field: the flat
// {testName,value,unit} object and the legacy nested {test,results:{...}}.
type labWire struct {
	TestName string          `json:"test_name"`
	AltName  string          `json:"testName"`
	Test     string          `json:"test"`
	Value    json.RawMessage `json:"value"`
	Unit     string          `json:"unit"`
	Results  *struct {
		Value json.RawMessage `json:"value"`
		Unit  string          `json:"unit"`
	} `json:"results"`
}

// UnmarshalJSON normalizes the heterogeneous lab shapes into LabObservation.
func (o *LabObservation) UnmarshalJSON(data []byte) error {
	var w labWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	name := w.TestName
	if name == "" {
		name = w.AltName
	}
	if name == "" {
		name = w.Test
	}

	value := w.Value
	unit := w.Unit
	if len(value) == 0 && w.Results != nil {
		value = w.Results.Value
		unit = w.Results.Unit
	}

	o.TestName = name
	o.Unit = unit
	o.Value = rawToString(value)
	return nil
}

// rawToString renders a JSON scalar as its plain string form. Numbers keep
// their source formatting, strings lose their quotes, null becomes empty.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	if string(raw) == "null" {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// Vital is one set of vital-sign readings. BloodPressure keeps the raw
// "systolic/diastolic" string; malformed readings are skipped downstream.
type Vital struct {
	BloodPressure string  `json:"blood_pressure,omitempty"`
	HeartRate     float64 `json:"heart_rate,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	Oxygen        float64 `json:"oxygen,omitempty"`
}

// Appointment is a scheduled or past visit.
type Appointment struct {
	Date   time.Time `json:"date"`
	Status string    `json:"status,omitempty"`
}

// appointmentWire tolerates RFC3339 timestamps and bare YYYY-MM-DD dates.
type appointmentWire struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// UnmarshalJSON parses the appointment date from either supported format.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	var w appointmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	a.Status = w.Status
	a.Date = time.Time{}
	if w.Date == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, w.Date); err == nil {
			a.Date = t
			return nil
		}
	}
	return fmt.Errorf("appointment date %q: unrecognized format", w.Date)
}

// ActiveMedicationNames returns the active medication names, extended with
// the proposed medication when one is set. Order follows the record; callers
// that need set semantics must not depend on it.
func (p *Patient) ActiveMedicationNames() []string {
	names := make([]string, 0, len(p.Medications)+1)
	for _, m := range p.Medications {
		if m.Active() && strings.TrimSpace(m.Name) != "" {
			names = append(names, m.Name)
		}
	}
	if strings.TrimSpace(p.ProposedMedication) != "" {
		names = append(names, p.ProposedMedication)
	}
	return names
}
