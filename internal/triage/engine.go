package triage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medwatch/internal/alert"
	"github.com/linnemanlabs/medwatch/internal/detect"
	"github.com/linnemanlabs/medwatch/internal/snapshot"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medwatch/internal/triage")

// DefaultDetectorTimeout bounds a single detector evaluation when the caller
// does not configure one.
const DefaultDetectorTimeout = 2 * time.Second

// EngineHooks receives engine events for instrumentation. Nil funcs are
// skipped, keeping the engine metrics-agnostic.
type EngineHooks struct {
	OnDetector func(name string, duration float64, candidates int, failed bool)
	OnScan     func(duration float64, candidates, faults int)
}

// DetectorFault records a detector that failed, panicked, or timed out
// during a scan. The scan continues without it: one bad rule must never
// suppress the other detectors' alerts.
type DetectorFault struct {
	Detector string `json:"detector"`
	Err      string `json:"error"`
}

// Engine runs the registered detectors over a snapshot and aggregates their
// candidates into ordered alerts with deterministic identities. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	registry *detect.Registry
	timeout  time.Duration
	logger   log.Logger
	hooks    EngineHooks
}

// NewEngine creates an engine. A zero timeout falls back to
// DefaultDetectorTimeout.
func NewEngine(registry *detect.Registry, timeout time.Duration, logger log.Logger, hooks EngineHooks) *Engine {
	if timeout <= 0 {
		timeout = DefaultDetectorTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		hooks:    hooks,
	}
}

type detectOut struct {
	candidates []detect.Candidate
	err        error
}

// Run evaluates every detector against the snapshot. Detectors run as
// parallel tasks, each under its own timeout; results are merged in
// registration order, stably sorted by severity (registration order is the
// tiebreak), and assigned deterministic ids.
func (e *Engine) Run(ctx context.Context, patientID string, snap *snapshot.Patient) ([]*alert.Alert, []DetectorFault) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "triage.scan",
		trace.WithAttributes(attribute.String("medwatch.patient.id", patientID)),
	)
	defer span.End()

	detectors := e.registry.Detectors()

	results := make([]detectOut, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d detect.Detector) {
			defer wg.Done()
			results[i] = e.runOne(ctx, d, snap)
		}(i, d)
	}
	wg.Wait()

	var merged []detect.Candidate
	var faults []DetectorFault
	for i, d := range detectors {
		if err := results[i].err; err != nil {
			e.logger.Error(ctx, err, "detector fault, skipping",
				"detector", d.Name(),
				"patient_id", patientID,
			)
			faults = append(faults, DetectorFault{Detector: d.Name(), Err: err.Error()})
			continue
		}
		merged = append(merged, results[i].candidates...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity.Rank() < merged[j].Severity.Rank()
	})

	now := time.Now()
	alerts := make([]*alert.Alert, 0, len(merged))
	seen := make(map[string]bool, len(merged))
	for _, c := range merged {
		id := alert.ID(patientID, c.Kind, c.NaturalKey)
		if seen[id] {
			continue
		}
		seen[id] = true
		alerts = append(alerts, &alert.Alert{
			ID:             id,
			PatientID:      patientID,
			Kind:           c.Kind,
			Severity:       c.Severity,
			Title:          c.Title,
			Message:        c.Message,
			NaturalKey:     c.NaturalKey,
			Status:         alert.StatusActive,
			CreatedAt:      now,
			ActionRequired: c.ActionRequired,
			Related:        c.Related,
		})
	}

	span.SetAttributes(
		attribute.Int("medwatch.scan.alerts", len(alerts)),
		attribute.Int("medwatch.scan.faults", len(faults)),
	)
	if e.hooks.OnScan != nil {
		e.hooks.OnScan(time.Since(start).Seconds(), len(alerts), len(faults))
	}
	return alerts, faults
}

// runOne executes a single detector under its timeout, containing panics at
// the detector boundary. On timeout the detector goroutine is abandoned; it
// is pure and cannot leak side effects.
func (e *Engine) runOne(ctx context.Context, d detect.Detector, snap *snapshot.Patient) detectOut {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "detector.evaluate",
		trace.WithAttributes(attribute.String("medwatch.detector.name", d.Name())),
	)
	defer span.End()

	start := time.Now()
	ch := make(chan detectOut, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- detectOut{err: fmt.Errorf("detector %s panicked: %v", d.Name(), r)}
			}
		}()
		candidates, err := d.Detect(ctx, snap)
		ch <- detectOut{candidates: candidates, err: err}
	}()

	var out detectOut
	select {
	case out = <-ch:
	case <-ctx.Done():
		out = detectOut{err: fmt.Errorf("detector %s: %w", d.Name(), ctx.Err())}
	}

	span.SetAttributes(attribute.Int("medwatch.detector.candidates", len(out.candidates)))
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
	}
	if e.hooks.OnDetector != nil {
		e.hooks.OnDetector(d.Name(), time.Since(start).Seconds(), len(out.candidates), out.err != nil)
	}
	return out
}
