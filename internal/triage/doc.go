// Package triage is the business boundary for MedWatch's clinical alert
// engine. It defines the Engine (pure detector fan-out and aggregation), the
// Service (scan reconciliation and the acknowledge/dismiss lifecycle), the
// Store interface (persistence), and read-only query projections.
package triage
