package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

var (
	// ErrNotFound is returned for an alert id with no stored alert.
	ErrNotFound = errors.New("alert not found")

	// ErrCriticalDismiss is returned when a caller tries to dismiss a
	// critical alert. Critical alerts must be acknowledged instead.
	ErrCriticalDismiss = errors.New("critical alerts cannot be dismissed; acknowledge instead")

	// ErrActorRequired is returned when an acknowledgment carries no actor.
	ErrActorRequired = errors.New("actor is required")
)

// Notifier receives newly raised critical alerts. Delivery is best-effort
// and never influences scan results.
type Notifier interface {
	AlertRaised(ctx context.Context, a *alert.Alert) error
}

// ScanResult is the outcome of one reconciled scan.
type ScanResult struct {
	ScanID  string          `json:"scan_id"`
	Alerts  []*alert.Alert  `json:"alerts"`
	Summary alert.Summary   `json:"summary"`
	Faults  []DetectorFault `json:"-"`
}

// BulkResult reports a bulk acknowledgment: acknowledged ids and the unknown
// ids that were skipped. Unknown ids never abort the batch.
type BulkResult struct {
	Acknowledged []string `json:"acknowledged"`
	Missing      []string `json:"missing,omitempty"`
}

// Service owns scan reconciliation and the alert lifecycle. Scans are
// serialized per patient and mutations per alert id, so concurrent actors
// cannot lose updates.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	locks    keyedLocks
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Scan derives the patient's alerts from the snapshot and reconciles them
// against the stored set. Vanished conditions retire their active alerts to
// resolved; acknowledged and dismissed alerts are retained for audit and
// never resurrected; new conditions become new active alerts. Given an
// unchanged snapshot the result is idempotent: same ids, same ack state.
func (s *Service) Scan(ctx context.Context, patientID string, snap *snapshot.Patient) (*ScanResult, error) {
	if patientID == "" {
		return nil, errors.New("patient id is required")
	}

	unlock := s.locks.lock("patient/" + patientID)
	defer unlock()

	scanID := ulid.Make().String()
	L := s.logger.With("scan_id", scanID, "patient_id", patientID)

	derived, faults := s.engine.Run(ctx, patientID, snap)

	existing, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	prevByID := make(map[string]*alert.Alert, len(existing))
	for _, a := range existing {
		prevByID[a.ID] = a
	}

	now := time.Now()
	derivedIDs := make(map[string]bool, len(derived))
	active := make([]*alert.Alert, 0, len(derived))
	var summary alert.Summary

	for _, a := range derived {
		derivedIDs[a.ID] = true

		prev, known := prevByID[a.ID]
		if known {
			switch prev.Status {
			case alert.StatusActive:
				// Same condition still firing: keep identity and creation
				// time, refresh the derived fields.
				a.CreatedAt = prev.CreatedAt
			case alert.StatusAcknowledged, alert.StatusDismissed:
				// Terminal for this cycle; kept as audit history.
				continue
			case alert.StatusResolved:
				// Condition came back after clearing: re-raise fresh.
				L.Info(ctx, "resolved alert re-raised", "alert_id", a.ID, "kind", a.Kind)
			}
		}

		if err := s.store.Put(ctx, a); err != nil {
			return nil, err
		}
		active = append(active, a)
		summary.Add(a.Severity)

		if !known || prevByID[a.ID].Status == alert.StatusResolved {
			if s.metrics != nil {
				s.metrics.AlertsRaised.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
			}
			if s.notifier != nil && a.Severity == alert.SeverityCritical {
				s.notify(ctx, a)
			}
		}
	}

	// Retire active alerts whose condition no longer reproduces.
	for _, prev := range existing {
		if derivedIDs[prev.ID] || prev.Status != alert.StatusActive {
			continue
		}
		prev.Status = alert.StatusResolved
		prev.ResolvedAt = now
		if err := s.store.Put(ctx, prev); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.AlertsResolved.Inc()
		}
		L.Info(ctx, "alert retired", "alert_id", prev.ID, "kind", prev.Kind)
	}

	if s.metrics != nil {
		s.metrics.ScansTotal.WithLabelValues(scanOutcome(faults)).Inc()
	}
	L.Info(ctx, "scan complete",
		"active", len(active),
		"critical", summary.Critical,
		"faults", len(faults),
	)

	return &ScanResult{ScanID: scanID, Alerts: active, Summary: summary, Faults: faults}, nil
}

func scanOutcome(faults []DetectorFault) string {
	if len(faults) > 0 {
		return "degraded"
	}
	return "ok"
}

// notify dispatches a critical alert to the notifier without blocking the
// scan on delivery.
func (s *Service) notify(ctx context.Context, a *alert.Alert) {
	cp := *a
	go func() {
		if err := s.notifier.AlertRaised(context.WithoutCancel(ctx), &cp); err != nil {
			s.logger.Error(ctx, err, "alert notification failed", "alert_id", cp.ID)
		}
	}()
}

// Acknowledge marks an alert as seen by the actor. It is idempotent: a
// duplicate call leaves the original AcknowledgedAt/By untouched.
func (s *Service) Acknowledge(ctx context.Context, id, actor string) (*alert.Alert, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}

	unlock := s.locks.lock("alert/" + id)
	defer unlock()

	a, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.AcksTotal.WithLabelValues("not_found").Inc()
		}
		return nil, ErrNotFound
	}

	if a.Acknowledged {
		if s.metrics != nil {
			s.metrics.AcksTotal.WithLabelValues("duplicate").Inc()
		}
		return a, nil
	}

	a.Status = alert.StatusAcknowledged
	a.Acknowledged = true
	a.AcknowledgedAt = time.Now()
	a.AcknowledgedBy = actor
	if err := s.store.Put(ctx, a); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AcksTotal.WithLabelValues("ok").Inc()
	}
	s.logger.Info(ctx, "alert acknowledged", "alert_id", id, "actor", actor, "severity", a.Severity)
	return a, nil
}

// BulkAcknowledge acknowledges each id in turn. Unknown ids are collected
// into the result instead of aborting the batch; storage errors still abort.
func (s *Service) BulkAcknowledge(ctx context.Context, ids []string, actor string) (*BulkResult, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}

	res := &BulkResult{}
	for _, id := range ids {
		_, err := s.Acknowledge(ctx, id, actor)
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn(ctx, "bulk acknowledge: unknown alert id", "alert_id", id)
			res.Missing = append(res.Missing, id)
		case err != nil:
			return nil, err
		default:
			res.Acknowledged = append(res.Acknowledged, id)
		}
	}
	return res, nil
}

// Dismiss removes a non-critical alert from the active set. Critical alerts
// are rejected with ErrCriticalDismiss regardless of state. Dismissing an
// alert that already left the active set is a no-op.
func (s *Service) Dismiss(ctx context.Context, id string) error {
	unlock := s.locks.lock("alert/" + id)
	defer unlock()

	a, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.DismissalsTotal.WithLabelValues("not_found").Inc()
		}
		return ErrNotFound
	}

	if a.Severity == alert.SeverityCritical {
		if s.metrics != nil {
			s.metrics.DismissalsTotal.WithLabelValues("rejected_critical").Inc()
		}
		return ErrCriticalDismiss
	}

	if !a.Active() {
		return nil
	}

	a.Status = alert.StatusDismissed
	if err := s.store.Put(ctx, a); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.DismissalsTotal.WithLabelValues("ok").Inc()
	}
	s.logger.Info(ctx, "alert dismissed", "alert_id", id, "severity", a.Severity)
	return nil
}

// List returns the patient's alerts after applying the filter, plus the
// severity summary of the full active set. History (acknowledged, dismissed,
// resolved) is included only when requested.
func (s *Service) List(ctx context.Context, patientID string, f Filter, includeHistory bool) ([]*alert.Alert, alert.Summary, error) {
	stored, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, alert.Summary{}, err
	}

	summary := Summarize(stored)

	out := make([]*alert.Alert, 0, len(stored))
	for _, a := range stored {
		if !includeHistory && !a.Active() {
			continue
		}
		if !f.Match(a) {
			continue
		}
		out = append(out, a)
	}
	SortBySeverity(out)
	return out, summary, nil
}

// keyedLocks serializes work per key. Entries are refcounted and removed
// when idle so the map does not grow with the id space.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	e := k.locks[key]
	if e == nil {
		e = &keyedLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
