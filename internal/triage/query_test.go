package triage

import (
	"testing"

	"github.com/linnemanlabs/medwatch/internal/alert"
)

func sampleAlerts() []*alert.Alert {
	return []*alert.Alert{
		{ID: "a-1", Kind: alert.KindDrugInteraction, Severity: alert.SeverityCritical, Title: "Drug interaction", Message: "warfarin + aspirin", Status: alert.StatusActive},
		{ID: "a-2", Kind: alert.KindCriticalLab, Severity: alert.SeverityHigh, Title: "Abnormal lab", Message: "potassium 5.8", Status: alert.StatusActive},
		{ID: "a-3", Kind: alert.KindOverdueFollowUp, Severity: alert.SeverityMedium, Title: "Overdue follow-up", Message: "2 overdue", Status: alert.StatusActive},
		{ID: "a-4", Kind: alert.KindCriticalLab, Severity: alert.SeverityHigh, Title: "Abnormal lab", Message: "glucose 42", Status: alert.StatusAcknowledged},
		{ID: "a-5", Kind: alert.KindAllergy, Severity: alert.SeverityLow, Title: "Possible allergy", Message: "note", Status: alert.StatusDismissed},
		{ID: "a-6", Kind: alert.KindCriticalVital, Severity: alert.SeverityCritical, Title: "Hypertensive crisis", Message: "190/125", Status: alert.StatusResolved},
	}
}

func TestSummarizeCountsActiveOnly(t *testing.T) {
	t.Parallel()

	s := Summarize(sampleAlerts())
	if s.Critical != 1 || s.High != 1 || s.Medium != 1 || s.Low != 0 {
		t.Errorf("summary = %+v, want Critical=1 High=1 Medium=1 Low=0", s)
	}
	if s.Total != s.Critical+s.High+s.Medium+s.Low {
		t.Errorf("total %d does not equal sum of tiers in %+v", s.Total, s)
	}
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"a-1", "a-2", "a-3", "a-4", "a-5", "a-6"}},
		{"by severity", Filter{Severity: alert.SeverityHigh}, []string{"a-2", "a-4"}},
		{"by kind", Filter{Kind: alert.KindCriticalLab}, []string{"a-2", "a-4"}},
		{"text over message", Filter{Text: "POTASSIUM"}, []string{"a-2"}},
		{"text over title", Filter{Text: "overdue"}, []string{"a-3"}},
		{"text over kind", Filter{Text: "drug-interaction"}, []string{"a-1"}},
		{"severity and text", Filter{Severity: alert.SeverityHigh, Text: "glucose"}, []string{"a-4"}},
		{"no match", Filter{Text: "methotrexate"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, a := range sampleAlerts() {
				if tt.filter.Match(a) {
					got = append(got, a.ID)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("matched %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("matched %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestSortBySeverityStable(t *testing.T) {
	t.Parallel()

	alerts := []*alert.Alert{
		{ID: "m-1", Severity: alert.SeverityMedium},
		{ID: "h-1", Severity: alert.SeverityHigh},
		{ID: "c-1", Severity: alert.SeverityCritical},
		{ID: "h-2", Severity: alert.SeverityHigh},
	}
	SortBySeverity(alerts)

	want := []string{"c-1", "h-1", "h-2", "m-1"}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Errorf("alerts[%d].ID = %q, want %q", i, alerts[i].ID, id)
		}
	}
}

func TestSelection(t *testing.T) {
	t.Parallel()

	sel := SelectActive(sampleAlerts())
	want := []string{"a-1", "a-2", "a-3"}
	if got := sel.IDs(); len(got) != len(want) {
		t.Fatalf("SelectActive ids = %v, want %v", got, want)
	}
	for _, id := range want {
		if !sel.Has(id) {
			t.Errorf("Has(%q) = false, want true", id)
		}
	}
	if sel.Has("a-4") {
		t.Error("Has(a-4) = true for an acknowledged alert")
	}

	sel.Toggle("a-1")
	if sel.Has("a-1") {
		t.Error("Has(a-1) = true after toggle off")
	}
	sel.Toggle("a-1")
	if !sel.Has("a-1") {
		t.Error("Has(a-1) = false after toggle back on")
	}

	ids := sel.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("IDs() not sorted: %v", ids)
		}
	}
}
