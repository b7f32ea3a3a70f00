// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/medwatch/internal/alert"
)

// Store holds alerts in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	alerts    map[string]*alert.Alert      // alert ID -> alert
	byPatient map[string]map[string]string // patient ID -> set of alert IDs
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts:    make(map[string]*alert.Alert),
		byPatient: make(map[string]map[string]string),
	}
}

// Get retrieves an alert by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	return copyAlert(a), true, nil
}

// ListByPatient retrieves every stored alert for the patient, in no
// particular order. Returns copies.
func (s *Store) ListByPatient(_ context.Context, patientID string) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPatient[patientID]
	out := make([]*alert.Alert, 0, len(ids))
	for id := range ids {
		out = append(out, copyAlert(s.alerts[id]))
	}
	return out, nil
}

// Put stores a copy of the alert, replacing any previous version.
func (s *Store) Put(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = copyAlert(a)
	idx := s.byPatient[a.PatientID]
	if idx == nil {
		idx = make(map[string]string)
		s.byPatient[a.PatientID] = idx
	}
	idx[a.ID] = a.ID
	return nil
}

// copyAlert deep-copies an alert so callers can mutate their copy freely.
func copyAlert(a *alert.Alert) *alert.Alert {
	cp := *a
	if a.Related != nil {
		cp.Related = make(map[string]any, len(a.Related))
		for k, v := range a.Related {
			cp.Related[k] = v
		}
	}
	return &cp
}
