package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	ScanCandidates   prometheus.Histogram
	DetectorDuration *prometheus.HistogramVec
	DetectorFaults   *prometheus.CounterVec
	AlertsRaised     *prometheus.CounterVec
	AlertsResolved   prometheus.Counter
	AcksTotal        *prometheus.CounterVec
	DismissalsTotal  *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medwatch_scans_total",
			Help: "Total alert scans by outcome.",
		}, []string{"outcome"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medwatch_scan_duration_seconds",
			Help:    "Duration of alert scans in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		ScanCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medwatch_scan_alerts",
			Help:    "Alerts produced per scan.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		DetectorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medwatch_detector_duration_seconds",
			Help:    "Duration of individual detector evaluations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms .. ~400ms
		}, []string{"detector"}),
		DetectorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medwatch_detector_faults_total",
			Help: "Detector evaluations skipped due to error, panic, or timeout.",
		}, []string{"detector"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medwatch_alerts_raised_total",
			Help: "Newly raised alerts by kind and severity.",
		}, []string{"kind", "severity"}),
		AlertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medwatch_alerts_resolved_total",
			Help: "Alerts retired by reconciliation after their condition cleared.",
		}),
		AcksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medwatch_acknowledgments_total",
			Help: "Acknowledge operations by result.",
		}, []string{"result"}),
		DismissalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medwatch_dismissals_total",
			Help: "Dismiss operations by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanCandidates,
		m.DetectorDuration,
		m.DetectorFaults,
		m.AlertsRaised,
		m.AlertsResolved,
		m.AcksTotal,
		m.DismissalsTotal,
	)

	return m
}

// Hooks returns EngineHooks that feed the engine-side metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnDetector: func(name string, duration float64, _ int, failed bool) {
			m.DetectorDuration.WithLabelValues(name).Observe(duration)
			if failed {
				m.DetectorFaults.WithLabelValues(name).Inc()
			}
		},
		OnScan: func(duration float64, candidates, _ int) {
			m.ScanDuration.Observe(duration)
			m.ScanCandidates.Observe(float64(candidates))
		},
	}
}
