package exec

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for executions. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
	calls      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// skips registration. Collectors already registered by an earlier call are
// reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_executions_total",
				Help: "Total number of script executions by status and failure kind.",
			},
			[]string{"status", "kind"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scriptbridge_execution_duration_seconds",
			Help:    "Duration of script executions.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_capability_calls_total",
				Help: "Total number of capability calls made by scripts.",
			},
			[]string{"capability", "status"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.executions, err = register(reg, m.executions); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.calls, err = register(reg, m.calls); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(out Outcome) {
	if m == nil {
		return
	}
	status, kind := "success", ""
	if out.Failure != nil {
		status, kind = "failure", string(out.Failure.Kind)
	}
	m.executions.WithLabelValues(status, kind).Inc()
	m.duration.Observe(out.Duration.Seconds())
	for _, c := range out.Calls {
		callStatus := "ok"
		if c.Error != "" {
			callStatus = "error"
		}
		m.calls.WithLabelValues(c.Capability, callStatus).Inc()
	}
}
