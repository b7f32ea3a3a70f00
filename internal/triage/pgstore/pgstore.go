// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/medwatch/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medwatch/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool lifecycle.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, patient_id, kind, severity, title, message, natural_key, status,
	acknowledged, acknowledged_at, acknowledged_by, resolved_at, created_at, action_required, related`

// Get retrieves an alert by ID.
func (s *Store) Get(ctx context.Context, id string) (*alert.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// ListByPatient retrieves every stored alert for the patient.
func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListByPatient", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE patient_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, patientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

// Put inserts or updates an alert (upsert on id).
func (s *Store) Put(ctx context.Context, a *alert.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var relatedJSON []byte
	if a.Related != nil {
		var err error
		relatedJSON, err = json.Marshal(a.Related)
		if err != nil {
			return fmt.Errorf("marshal related: %w", err)
		}
	}

	var acknowledgedAt, resolvedAt *time.Time
	if !a.AcknowledgedAt.IsZero() {
		acknowledgedAt = &a.AcknowledgedAt
	}
	if !a.ResolvedAt.IsZero() {
		resolvedAt = &a.ResolvedAt
	}

	query := `INSERT INTO alerts (
		id, patient_id, kind, severity, title, message, natural_key, status,
		acknowledged, acknowledged_at, acknowledged_by, resolved_at, created_at, action_required, related
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (id) DO UPDATE SET
		patient_id      = EXCLUDED.patient_id,
		kind            = EXCLUDED.kind,
		severity        = EXCLUDED.severity,
		title           = EXCLUDED.title,
		message         = EXCLUDED.message,
		natural_key     = EXCLUDED.natural_key,
		status          = EXCLUDED.status,
		acknowledged    = EXCLUDED.acknowledged,
		acknowledged_at = EXCLUDED.acknowledged_at,
		acknowledged_by = EXCLUDED.acknowledged_by,
		resolved_at     = EXCLUDED.resolved_at,
		action_required = EXCLUDED.action_required,
		related         = EXCLUDED.related`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.PatientID, string(a.Kind), string(a.Severity), a.Title, a.Message, a.NaturalKey,
		string(a.Status), a.Acknowledged, acknowledgedAt, a.AcknowledgedBy, resolvedAt,
		a.CreatedAt, a.ActionRequired, relatedJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// scanAlertRow scans a single row into an alert.Alert.
// Returns (nil, nil) when no row is found.
func scanAlertRow(row pgx.Row) (*alert.Alert, error) {
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a              alert.Alert
		kind           string
		severity       string
		status         string
		acknowledgedAt *time.Time
		resolvedAt     *time.Time
		relatedJSON    []byte
	)

	err := row.Scan(
		&a.ID, &a.PatientID, &kind, &severity, &a.Title, &a.Message, &a.NaturalKey, &status,
		&a.Acknowledged, &acknowledgedAt, &a.AcknowledgedBy, &resolvedAt, &a.CreatedAt,
		&a.ActionRequired, &relatedJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	a.Kind = alert.Kind(kind)
	a.Severity = alert.Severity(severity)
	a.Status = alert.Status(status)
	if acknowledgedAt != nil {
		a.AcknowledgedAt = *acknowledgedAt
	}
	if resolvedAt != nil {
		a.ResolvedAt = *resolvedAt
	}
	if len(relatedJSON) > 0 {
		if err := json.Unmarshal(relatedJSON, &a.Related); err != nil {
			return nil, fmt.Errorf("unmarshal related: %w", err)
		}
	}

	return &a, nil
}
