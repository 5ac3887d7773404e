package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports rig activity as Prometheus metrics.
type Metrics struct {
	Samples     *prometheus.CounterVec
	ParseErrors prometheus.Counter
	DosePulses  prometheus.Counter
	DoseCycle   prometheus.Gauge
	DegasStage  *prometheus.GaugeVec
	Pressure    prometheus.Gauge
	Rows        prometheus.Counter
}

var _ Sink = &Metrics{}

var degasStages = []string{"heating", "ramp_down", "ramp_up", "complete", "cancelled"}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellrig",
			Name:      "samples_total",
			Help:      "Smoothed or aggregated samples emitted, by series.",
		}, []string{"series"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellrig",
			Name:      "feedback_parse_errors_total",
			Help:      "Malformed dosing feedback lines.",
		}),
		DosePulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellrig",
			Name:      "dose_pulses_total",
			Help:      "Dose pulses sent to the actuator.",
		}),
		DoseCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wellrig",
			Name:      "dose_cycle",
			Help:      "Current dosing cycle counter.",
		}),
		DegasStage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wellrig",
			Name:      "degas_stage",
			Help:      "1 for the current degas stage, 0 otherwise.",
		}, []string{"stage"}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wellrig",
			Name:      "pressure",
			Help:      "Last smoothed pressure reading.",
		}),
		Rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellrig",
			Name:      "aggregate_rows_total",
			Help:      "Aggregate well rows written.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Samples, m.ParseErrors, m.DosePulses, m.DoseCycle, m.DegasStage, m.Pressure, m.Rows} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Sample(s Sample) {
	m.Samples.WithLabelValues(s.Series).Inc()
	if s.Series == SeriesPressure {
		m.Pressure.Set(s.Value)
	}
}

func (m *Metrics) Event(e Event) {
	switch e.Kind {
	case EventParseError:
		m.ParseErrors.Inc()
	case EventDoseCycle:
		m.DosePulses.Inc()
		if c, ok := e.Fields["cycle"].(int); ok {
			m.DoseCycle.Set(float64(c))
		}
	case EventDegasStage:
		stage, _ := e.Fields["stage"].(string)
		for _, s := range degasStages {
			v := 0.0
			if s == stage {
				v = 1
			}
			m.DegasStage.WithLabelValues(s).Set(v)
		}
	case EventRow:
		m.Rows.Inc()
	}
}
