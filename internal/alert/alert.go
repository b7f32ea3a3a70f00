// Package alert defines the clinical safety alert entity shared by the
// detection engine, the triage service, and the HTTP API.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind identifies which rule family raised an alert.
type Kind string

const (
	KindDrugInteraction Kind = "drug-interaction"
	KindAllergy         Kind = "allergy"
	KindCriticalLab     Kind = "critical-lab"
	KindCriticalVital   Kind = "critical-vital"
	KindOverdueFollowUp Kind = "overdue-followup"
)

// Severity is the ordered criticality tier: critical > high > medium > low.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort rank of a severity; lower sorts first. Unknown
// severities sort after low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Valid reports whether s is one of the four known tiers.
func (s Severity) Valid() bool {
	return s.Rank() < 4
}

// Status tracks where an alert is in its lifecycle. Alerts are created
// active; acknowledged, dismissed, and resolved are terminal for a scan
// cycle and are retained for audit rather than deleted.
type Status string

const (
	// StatusActive means raised and not yet handled by a clinician.
	StatusActive Status = "active"

	// StatusAcknowledged means a clinician marked the alert as seen. The
	// underlying condition may still hold.
	StatusAcknowledged Status = "acknowledged"

	// StatusDismissed means a clinician discarded the alert. Critical
	// alerts never reach this state.
	StatusDismissed Status = "dismissed"

	// StatusResolved means a later scan no longer reproduced the alert's
	// condition and reconciliation retired it.
	StatusResolved Status = "resolved"
)

// Alert is one derived clinical-safety notification.
type Alert struct {
	ID        string   `json:"id"`
	PatientID string   `json:"patient_id"`
	Kind      Kind     `json:"type"`
	Severity  Severity `json:"severity"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`

	// NaturalKey is the data-derived identity of the underlying condition
	// (sorted drug pair, lab test name, vital kind, a fixed follow-up
	// marker). It keeps the ID stable across re-scans.
	NaturalKey string `json:"natural_key"`

	Status         Status         `json:"status"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedAt time.Time      `json:"acknowledged_at,omitzero"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     time.Time      `json:"resolved_at,omitzero"`
	CreatedAt      time.Time      `json:"created_at"`
	ActionRequired bool           `json:"action_required"`
	Related        map[string]any `json:"related_data,omitempty"`
}

// Active reports whether the alert is in the active (unhandled) set.
func (a *Alert) Active() bool {
	return a.Status == StatusActive
}

// ID derives the stable alert identifier from the patient, kind, and natural
// key. The same underlying condition always hashes to the same ID, which is
// what makes re-scans idempotent and deduplication possible. Separator bytes
// keep adjacent fields from colliding.
func ID(patientID string, kind Kind, naturalKey string) string {
	h := sha256.New()
	h.Write([]byte(patientID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(naturalKey))
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// Summary is the severity breakdown of the active alert set.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Add counts one alert of the given severity.
func (s *Summary) Add(sev Severity) {
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	default:
		return
	}
	s.Total++
}
