package alertapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
	"github.com/linnemanlabs/medwatch/internal/triage"
)

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medwatch.patient.id", patientID))

	var snap snapshot.Patient
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot payload")
		return
	}
	if snap.PatientID == "" {
		snap.PatientID = patientID
	}

	result, err := a.svc.Scan(r.Context(), patientID, &snap)
	if err != nil {
		a.logger.Error(r.Context(), err, "scan failed", "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(
		attribute.String("medwatch.scan.id", result.ScanID),
		attribute.Int("medwatch.scan.alerts", len(result.Alerts)),
		attribute.Int("medwatch.scan.faults", len(result.Faults)),
	)

	writeJSON(w, http.StatusOK, result)
}

// listFilter decodes the alert filter from query parameters. An invalid
// severity is rejected rather than silently matching nothing.
func listFilter(r *http.Request) (triage.Filter, bool) {
	f := triage.Filter{
		Text: r.URL.Query().Get("q"),
		Kind: alert.Kind(r.URL.Query().Get("type")),
	}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		f.Severity = alert.Severity(sev)
		if !f.Severity.Valid() {
			return f, false
		}
	}
	return f, true
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medwatch.patient.id", patientID))

	f, ok := listFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid severity")
		return
	}
	includeHistory, _ := strconv.ParseBool(r.URL.Query().Get("history"))

	alerts, summary, err := a.svc.List(r.Context(), patientID, f, includeHistory)
	if err != nil {
		a.logger.Error(r.Context(), err, "list alerts failed", "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":  alerts,
		"summary": summary,
	})
}

func (a *API) handleAlertSummary(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	_, summary, err := a.svc.List(r.Context(), patientID, triage.Filter{}, false)
	if err != nil {
		a.logger.Error(r.Context(), err, "alert summary failed", "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
