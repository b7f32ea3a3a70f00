// Package alertapi exposes the patient alert scan, query, and lifecycle
// operations over HTTP.
package alertapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
	"github.com/linnemanlabs/medwatch/internal/triage"
)

// TriageService defines the business operations alertapi needs.
type TriageService interface {
	Scan(ctx context.Context, patientID string, snap *snapshot.Patient) (*triage.ScanResult, error)
	Acknowledge(ctx context.Context, id, actor string) (*alert.Alert, error)
	BulkAcknowledge(ctx context.Context, ids []string, actor string) (*triage.BulkResult, error)
	Dismiss(ctx context.Context, id string) error
	List(ctx context.Context, patientID string, f triage.Filter, includeHistory bool) ([]*alert.Alert, alert.Summary, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/patients/{id}/alerts/scan", a.handleScan)
		r.Get("/patients/{id}/alerts", a.handleListAlerts)
		r.Get("/patients/{id}/alerts/summary", a.handleAlertSummary)
		r.Post("/alerts/{id}/ack", a.handleAcknowledge)
		r.Post("/alerts/ack-bulk", a.handleBulkAcknowledge)
		r.Post("/alerts/{id}/dismiss", a.handleDismiss)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
