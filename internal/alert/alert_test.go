package alert

import "testing"

func TestID_Deterministic(t *testing.T) {
	t.Parallel()

	a := ID("p-1", KindDrugInteraction, "aspirin|warfarin")
	b := ID("p-1", KindDrugInteraction, "aspirin|warfarin")
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if len(a) != 24 {
		t.Errorf("id length = %d, want 24", len(a))
	}
}

func TestID_DistinguishesInputs(t *testing.T) {
	t.Parallel()

	base := ID("p-1", KindCriticalLab, "potassium")
	cases := map[string]string{
		"patient":     ID("p-2", KindCriticalLab, "potassium"),
		"kind":        ID("p-1", KindCriticalVital, "potassium"),
		"natural key": ID("p-1", KindCriticalLab, "glucose"),
	}
	for name, got := range cases {
		if got == base {
			t.Errorf("changing %s did not change the id", name)
		}
	}
}

func TestID_FieldBoundaries(t *testing.T) {
	t.Parallel()

	// "ab"+"c" vs "a"+"bc" across the patient/kind boundary must differ.
	if ID("ab", Kind("c"), "k") == ID("a", Kind("bc"), "k") {
		t.Error("field boundary collision between patient and kind")
	}
}

func TestSeverity_Rank(t *testing.T) {
	t.Parallel()

	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
	if Severity("bogus").Valid() {
		t.Error("bogus severity reported valid")
	}
}

func TestSummary_Add(t *testing.T) {
	t.Parallel()

	var s Summary
	for _, sev := range []Severity{SeverityCritical, SeverityCritical, SeverityHigh, SeverityLow} {
		s.Add(sev)
	}
	s.Add(Severity("bogus"))

	if s.Critical != 2 || s.High != 1 || s.Medium != 0 || s.Low != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.Critical+s.High+s.Medium+s.Low != s.Total {
		t.Error("severity counts do not sum to total")
	}
}

func TestAlert_Active(t *testing.T) {
	t.Parallel()

	for st, want := range map[Status]bool{
		StatusActive:       true,
		StatusAcknowledged: false,
		StatusDismissed:    false,
		StatusResolved:     false,
	} {
		a := Alert{Status: st}
		if a.Active() != want {
			t.Errorf("Active() with status %q = %v, want %v", st, a.Active(), want)
		}
	}
}
