package triage

import (
	"context"

	"github.com/linnemanlabs/medwatch/internal/alert"
)

// Store is the persistence interface for alerts. Implementations must return
// copies: callers mutate alerts before writing them back.
type Store interface {
	Get(ctx context.Context, id string) (*alert.Alert, bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]*alert.Alert, error)
	Put(ctx context.Context, a *alert.Alert) error
}
