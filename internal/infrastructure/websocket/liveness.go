package websocket

import (
	"context"
	"time"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"
)

// LivenessMonitor is the backstop for dead connections that no broadcast has
// discovered. Each cycle it evicts connections that never answered the
// previous probe, then marks the rest pending and probes them again.
type LivenessMonitor struct {
	registry domain.ConnectionRegistry
	interval time.Duration
	log      logger.Logger
	stop     chan struct{}
}

func NewLivenessMonitor(registry domain.ConnectionRegistry, interval time.Duration,
	log logger.Logger) *LivenessMonitor {
	return &LivenessMonitor{
		registry: registry,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (m *LivenessMonitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *LivenessMonitor) Stop() {
	close(m.stop)
}

func (m *LivenessMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("Liveness monitor started", "interval", m.interval)

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		}
	}
}

func (m *LivenessMonitor) sweep() {
	evicted := 0
	for _, conn := range m.registry.Connections() {
		if !conn.Alive() {
			m.registry.Unregister(conn)
			conn.Close()
			evicted++
			continue
		}

		conn.MarkPending()
		if err := conn.Ping(); err != nil {
			m.registry.Unregister(conn)
			conn.Close()
			evicted++
		}
	}

	if evicted > 0 {
		m.log.Info("Evicted unresponsive connections", "count", evicted)
	}
}
