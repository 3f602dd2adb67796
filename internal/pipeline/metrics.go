package pipeline

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	outcomes *prometheus.CounterVec
	labels   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_pipeline_outcomes_total",
				Help: "Resolution outcomes by stage and status.",
			},
			[]string{"stage", "status"},
		),
		labels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_classifications_total",
				Help: "Classification results by label. Soft failures count as failed.",
			},
			[]string{"label"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_pipeline_stage_duration_seconds",
				Help:    "Stage run time.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"stage"},
		),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.outcomes, err = register(reg, m.outcomes); err != nil {
		return nil, err
	}
	if m.labels, err = register(reg, m.labels); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adopts an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register pipeline metrics: %w", err)
	}
	return c, nil
}

func (m *metrics) outcome(o Outcome) {
	m.outcomes.WithLabelValues(o.Stage, string(o.Status)).Inc()
}

func (m *metrics) label(l Label) {
	if l.Known() {
		m.labels.WithLabelValues(string(l)).Inc()
		return
	}
	m.labels.WithLabelValues("failed").Inc()
}
