package alertapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/medwatch/internal/triage"
)

type ackRequest struct {
	Actor string `json:"actor"`
}

type bulkAckRequest struct {
	IDs   []string `json:"ids"`
	Actor string   `json:"actor"`
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medwatch.alert.id", id))

	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	al, err := a.svc.Acknowledge(r.Context(), id, req.Actor)
	switch {
	case errors.Is(err, triage.ErrActorRequired):
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	case errors.Is(err, triage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "acknowledge failed", "alert_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, al)
}

func (a *API) handleBulkAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req bulkAckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	result, err := a.svc.BulkAcknowledge(r.Context(), req.IDs, req.Actor)
	switch {
	case errors.Is(err, triage.ErrActorRequired):
		writeError(w, http.StatusBadRequest, "actor is required")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "bulk acknowledge failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("medwatch.ack.requested", len(req.IDs)),
		attribute.Int("medwatch.ack.acknowledged", len(result.Acknowledged)),
		attribute.Int("medwatch.ack.missing", len(result.Missing)),
	)

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("medwatch.alert.id", id))

	err := a.svc.Dismiss(r.Context(), id)
	switch {
	case errors.Is(err, triage.ErrCriticalDismiss):
		writeError(w, http.StatusConflict, "critical alerts cannot be dismissed; acknowledge instead")
		return
	case errors.Is(err, triage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "dismiss failed", "alert_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
