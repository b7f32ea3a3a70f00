package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

// FollowUpDetector finds appointments still marked scheduled whose date has
// passed. It emits a single aggregate alert per patient stating the count;
// one alert per missed visit would flood the triage queue from any backlog.
type FollowUpDetector struct {
	now func() time.Time
}

// NewFollowUp creates the detector. A nil now falls back to time.Now.
func NewFollowUp(now func() time.Time) *FollowUpDetector {
	if now == nil {
		now = time.Now
	}
	return &FollowUpDetector{now: now}
}

func (d *FollowUpDetector) Name() string     { return "overdue-followup" }
func (d *FollowUpDetector) Kind() alert.Kind { return alert.KindOverdueFollowUp }

func (d *FollowUpDetector) Detect(_ context.Context, snap *snapshot.Patient) ([]Candidate, error) {
	now := d.now()

	var overdue []string
	for _, appt := range snap.Appointments {
		if !strings.EqualFold(strings.TrimSpace(appt.Status), "scheduled") {
			continue
		}
		if appt.Date.IsZero() || !appt.Date.Before(now) {
			continue
		}
		overdue = append(overdue, appt.Date.Format(time.RFC3339))
	}

	if len(overdue) == 0 {
		return nil, nil
	}

	return []Candidate{{
		Kind:           alert.KindOverdueFollowUp,
		Severity:       alert.SeverityMedium,
		Title:          "Overdue Follow-Up",
		Message:        fmt.Sprintf("%d overdue scheduled appointment(s) need rescheduling", len(overdue)),
		NaturalKey:     "overdue-followup",
		ActionRequired: true,
		Related: map[string]any{
			"count":        len(overdue),
			"appointments": overdue,
		},
	}}, nil
}
