package alertapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/detect"
	"github.com/linnemanlabs/medwatch/internal/rules"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
	"github.com/linnemanlabs/medwatch/internal/triage"
	"github.com/linnemanlabs/medwatch/internal/triage/memstore"
)

func newTestService(t *testing.T) *triage.Service {
	t.Helper()
	rs := rules.Default()
	reg := detect.NewRegistry()
	reg.Register(detect.NewDrugInteraction(rs))
	reg.Register(detect.NewAllergy(rs))
	reg.Register(detect.NewCriticalLab(rs))
	reg.Register(detect.NewCriticalVital(rs))
	reg.Register(detect.NewFollowUp(nil))
	engine := triage.NewEngine(reg, time.Second, nil, triage.EngineHooks{})
	return triage.NewService(memstore.New(), engine, nil, nil, nil)
}

func newTestRouter(t *testing.T) (chi.Router, *triage.Service) {
	t.Helper()
	svc := newTestService(t)
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, svc
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, newTestService(t))
	if api == nil {
		t.Fatal("New(nil, svc) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), newTestService(t))
	if api == nil {
		t.Fatal("New(logger, svc) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(logger, svc) left logger nil")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil)
}

// Routing

func TestRegisterRoutes_MethodsAndPaths(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"scan wrong method", http.MethodGet, "/api/v1/patients/p-1/alerts/scan", "", http.StatusMethodNotAllowed},
		{"scan bad payload", http.MethodPost, "/api/v1/patients/p-1/alerts/scan", "{not json", http.StatusBadRequest},
		{"list ok", http.MethodGet, "/api/v1/patients/p-1/alerts", "", http.StatusOK},
		{"summary ok", http.MethodGet, "/api/v1/patients/p-1/alerts/summary", "", http.StatusOK},
		{"ack unknown id", http.MethodPost, "/api/v1/alerts/nope/ack", `{"actor":"dr.lin"}`, http.StatusNotFound},
		{"ack bad payload", http.MethodPost, "/api/v1/alerts/nope/ack", "{not json", http.StatusBadRequest},
		{"bulk ack empty ids", http.MethodPost, "/api/v1/alerts/ack-bulk", `{"ids":[],"actor":"dr.lin"}`, http.StatusBadRequest},
		{"dismiss unknown id", http.MethodPost, "/api/v1/alerts/nope/dismiss", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

// Scan

func scanPatient(t *testing.T, r chi.Router, patientID string, snap *snapshot.Patient) *triage.ScanResult {
	t.Helper()
	body, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+patientID+"/alerts/scan", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body %s", w.Code, w.Body.String())
	}
	var res triage.ScanResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode scan result: %v", err)
	}
	return &res
}

func TestHandleScan_RaisesInteractionAlert(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{
			{Name: "Warfarin 5mg"},
			{Name: "Aspirin 81mg"},
		},
	})

	if res.ScanID == "" {
		t.Error("scan_id is empty")
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(res.Alerts))
	}
	if res.Alerts[0].Kind != alert.KindDrugInteraction {
		t.Errorf("kind = %q, want drug-interaction", res.Alerts[0].Kind)
	}
	if res.Summary.Critical != 1 {
		t.Errorf("summary.critical = %d, want 1", res.Summary.Critical)
	}
}

func TestHandleScan_EmptySnapshotBody(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{})
	if len(res.Alerts) != 0 {
		t.Errorf("got %d alerts for empty snapshot, want 0", len(res.Alerts))
	}
}

// Lifecycle over HTTP

func TestAcknowledgeFlow(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{{Name: "Warfarin"}, {Name: "Ibuprofen"}},
	})
	id := res.Alerts[0].ID

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/"+id+"/ack", strings.NewReader(`{"actor":"dr.lin"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ack status = %d, body %s", w.Code, w.Body.String())
	}
	var acked alert.Alert
	if err := json.NewDecoder(w.Body).Decode(&acked); err != nil {
		t.Fatalf("decode ack response: %v", err)
	}
	if acked.Status != alert.StatusAcknowledged || acked.AcknowledgedBy != "dr.lin" {
		t.Errorf("acked = %+v, want acknowledged by dr.lin", acked)
	}

	// Missing actor is a bad request.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/alerts/"+id+"/ack", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("ack without actor status = %d, want 400", w.Code)
	}
}

func TestBulkAcknowledge_ReportsMissing(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{{Name: "Warfarin"}, {Name: "Naproxen"}},
	})
	id := res.Alerts[0].ID

	body := `{"ids":["` + id + `","ghost"],"actor":"dr.lin"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/ack-bulk", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bulk ack status = %d, body %s", w.Code, w.Body.String())
	}

	var bulk triage.BulkResult
	if err := json.NewDecoder(w.Body).Decode(&bulk); err != nil {
		t.Fatalf("decode bulk result: %v", err)
	}
	if len(bulk.Acknowledged) != 1 || bulk.Acknowledged[0] != id {
		t.Errorf("acknowledged = %v, want [%s]", bulk.Acknowledged, id)
	}
	if len(bulk.Missing) != 1 || bulk.Missing[0] != "ghost" {
		t.Errorf("missing = %v, want [ghost]", bulk.Missing)
	}
}

func TestDismiss_CriticalConflict(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{{Name: "Sildenafil"}, {Name: "Nitroglycerin"}},
	})
	id := res.Alerts[0].ID

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/"+id+"/dismiss", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("dismiss critical status = %d, want 409", w.Code)
	}
}

func TestDismiss_NonCritical(t *testing.T) {
	t.Parallel()

	r, svc := newTestRouter(t)
	past := time.Now().Add(-48 * time.Hour)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Appointments: []snapshot.Appointment{{Status: "scheduled", Date: past}},
	})
	id := res.Alerts[0].ID

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/"+id+"/dismiss", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d, body %s", w.Code, w.Body.String())
	}

	alerts, summary, err := svc.List(context.Background(), "p-1", triage.Filter{}, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alerts) != 0 || summary.Total != 0 {
		t.Errorf("after dismiss: %d alerts, summary %+v, want empty", len(alerts), summary)
	}
}

// List and summary

func TestHandleListAlerts_FilterAndHistory(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	res := scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{{Name: "Warfarin"}, {Name: "Aspirin"}},
		Labs:        []snapshot.LabObservation{{TestName: "glucose", Value: "45"}},
	})
	if len(res.Alerts) != 2 {
		t.Fatalf("scan got %d alerts, want 2", len(res.Alerts))
	}

	get := func(path string) map[string]json.RawMessage {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, body %s", path, w.Code, w.Body.String())
		}
		var out map[string]json.RawMessage
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	out := get("/api/v1/patients/p-1/alerts?type=drug-interaction")
	var alerts []*alert.Alert
	if err := json.Unmarshal(out["alerts"], &alerts); err != nil {
		t.Fatalf("unmarshal alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != alert.KindDrugInteraction {
		t.Errorf("type filter got %v, want one drug-interaction alert", alerts)
	}

	// Summary reflects the full active set regardless of filter.
	var summary alert.Summary
	if err := json.Unmarshal(out["summary"], &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.Total != 2 {
		t.Errorf("summary total = %d, want 2", summary.Total)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1/alerts?severity=bogus", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid severity status = %d, want 400", w.Code)
	}
}

func TestHandleAlertSummary(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)
	scanPatient(t, r, "p-1", &snapshot.Patient{
		Medications: []snapshot.Medication{{Name: "Warfarin"}, {Name: "Aspirin"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1/alerts/summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var summary alert.Summary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Critical != 1 || summary.Total != 1 {
		t.Errorf("summary = %+v, want Critical=1 Total=1", summary)
	}
}
