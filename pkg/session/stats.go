package session

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-pacvision/pkg/grid"
)

// Stats summarizes loop health over the recent latency window.
type Stats struct {
	SessionID   string        `json:"session_id"`
	Initialized bool          `json:"initialized"`
	Processed   int           `json:"frames_processed"`
	Skipped     int           `json:"frames_skipped"`
	Lagging     int           `json:"frames_lagging"`
	MeanMs      float64       `json:"latency_mean_ms"`
	StdDevMs    float64       `json:"latency_stddev_ms"`
	MaxMs       float64       `json:"latency_max_ms"`
	Counters    grid.Counters `json:"counters"`
}

// Stats returns a consistent copy of the loop statistics.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	st := Stats{
		SessionID: s.id,
		Processed: s.processed,
		Skipped:   s.skipped,
		Lagging:   s.lagging,
	}
	if n := len(s.latencies); n > 0 {
		st.MaxMs = floats.Max(s.latencies)
		if n > 1 {
			st.MeanMs, st.StdDevMs = stat.MeanStdDev(s.latencies, nil)
		} else {
			st.MeanMs = s.latencies[0]
		}
	}
	s.mu.RUnlock()

	st.Initialized = s.grid.Initialized()
	st.Counters = s.grid.Counters()
	return st
}
