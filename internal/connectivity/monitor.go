// Package connectivity tracks whether the ingestion service is reachable and
// raises an event on the offline-to-online edge. It stands in for the
// device's connectivity signal.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober checks reachability of the server. The sales API client's Ping
// implements it.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor probes on a fixed cadence. Online() answers the pipeline's
// "does the device report connectivity" question; Regained() fires once per
// offline-to-online transition and drives the replayer.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	online   bool
	regained chan struct{}
}

// NewMonitor creates a monitor; it starts in the offline state until the
// first successful probe.
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		regained: make(chan struct{}, 1),
	}
}

// Online reports the last probed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Regained delivers one signal per offline-to-online transition. The channel
// is buffered; a missed read does not lose the edge.
func (m *Monitor) Regained() <-chan struct{} {
	return m.regained
}

// Run probes until ctx is cancelled. The first probe happens immediately so
// queued work from a previous run is picked up at startup.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.prober.Ping(probeCtx)
	nowOnline := err == nil

	m.mu.Lock()
	wasOnline := m.online
	m.online = nowOnline
	m.mu.Unlock()

	switch {
	case nowOnline && !wasOnline:
		m.logger.Info("connectivity regained")
		select {
		case m.regained <- struct{}{}:
		default:
		}
	case !nowOnline && wasOnline:
		m.logger.Warn("connectivity lost", zap.Error(err))
	}
}
