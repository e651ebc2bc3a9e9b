package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coreswim/swim/internal/domain"
)

// PrometheusSink translates a narrow slice of diagnostic commands into
// Prometheus counters. Every other command is observed but not counted
// (the registry only needs the events §6 calls out: bad frames,
// malformed events, suspicions, deaths, indirect rescues).
type PrometheusSink struct {
	badFrames  prometheus.Counter
	malformed  prometheus.Counter
	suspicions prometheus.Counter
	deaths     prometheus.Counter
	rescues    prometheus.Counter
}

// NewPrometheusSink registers its counters against reg and returns the
// sink. Pass prometheus.DefaultRegisterer to use the global registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		badFrames:  factory.NewCounter(prometheus.CounterOpts{Name: "swim_bad_frames_total", Help: "Frames dropped at decrypt or decode."}),
		malformed:  factory.NewCounter(prometheus.CounterOpts{Name: "swim_malformed_events_total", Help: "Events skipped as malformed or unknown."}),
		suspicions: factory.NewCounter(prometheus.CounterOpts{Name: "swim_suspicions_total", Help: "Neighbours transitioned to suspect."}),
		deaths:     factory.NewCounter(prometheus.CounterOpts{Name: "swim_deaths_total", Help: "Neighbours transitioned to dead."}),
		rescues:    factory.NewCounter(prometheus.CounterOpts{Name: "swim_indirect_rescues_total", Help: "Suspects recovered to alive via an indirect ack."}),
	}
}

// Emit implements domain.DiagSink.
func (s *PrometheusSink) Emit(rec domain.DiagRecord) {
	switch rec.Cmd {
	case "bad_frame":
		s.badFrames.Inc()
	case "skipped_events":
		unknown, _ := rec.Data["unknown"].(int)
		malformed, _ := rec.Data["malformed"].(int)
		s.malformed.Add(float64(unknown + malformed))
	case "status_change":
		switch rec.Data["to"] {
		case "suspect":
			s.suspicions.Inc()
		case "dead":
			s.deaths.Inc()
		case "alive":
			if rec.Data["from"] == "suspect" {
				s.rescues.Inc()
			}
		}
	}
}
