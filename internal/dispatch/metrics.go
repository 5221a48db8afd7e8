package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"blueride-notifier/internal/types"
)

// Metrics tracks delivery outcome counters for the worker. All counters
// are atomic so the consumer goroutines and the health endpoint can touch
// them without locks.
type Metrics struct {
	Accepted       atomic.Int64
	Rejected       atomic.Int64
	Requeued       atomic.Int64
	DecodeFailures atomic.Int64
	PushSkipped    atomic.Int64

	startTime time.Time
}

// NewMetrics creates a Metrics with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now().UTC()}
}

// Record bumps the counter for a terminal delivery state.
func (m *Metrics) Record(state AckState) {
	switch state {
	case StateAccepted:
		m.Accepted.Add(1)
	case StateRejected:
		m.Rejected.Add(1)
	case StateRequeued:
		m.Requeued.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of the counters, shaped for the
// health endpoint's JSON response.
type MetricsSnapshot struct {
	Accepted       int64  `json:"accepted"`
	Rejected       int64  `json:"rejected"`
	Requeued       int64  `json:"requeued"`
	DecodeFailures int64  `json:"decode_failures"`
	PushSkipped    int64  `json:"push_skipped"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	StartedAt      string `json:"started_at"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Accepted:       m.Accepted.Load(),
		Rejected:       m.Rejected.Load(),
		Requeued:       m.Requeued.Load(),
		DecodeFailures: m.DecodeFailures.Load(),
		PushSkipped:    m.PushSkipped.Load(),
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		StartedAt:      m.startTime.Format(time.RFC3339),
	}
}

// LogPeriodically emits a summary line at the given interval until the
// context is canceled. Intended to run in its own goroutine.
func (m *Metrics) LogPeriodically(ctx context.Context, interval time.Duration, logger types.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			logger.Info("delivery counters",
				"accepted", s.Accepted,
				"rejected", s.Rejected,
				"requeued", s.Requeued,
				"decode_failures", s.DecodeFailures,
				"push_skipped", s.PushSkipped,
				"uptime_seconds", s.UptimeSeconds,
			)
		}
	}
}
