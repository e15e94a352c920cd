package storage

import (
	"context"
	"time"
)

const (
	healthCheckInterval      = 30 * time.Second
	healthCheckFailureBackoff = 60 * time.Second
)

// RunHealthLoop probes every adapter every 30s; on any check erroring
// out it backs off to 60s before the next attempt, mirroring the
// source's _health_check_loop (§5).
func (m *Manager) RunHealthLoop(ctx context.Context) {
	wait := healthCheckInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		results := m.HealthCheckAll(ctx)
		wait = healthCheckInterval
		for name, ok := range results {
			if !ok {
				m.log.WarnContext(ctx, "storage adapter unhealthy", "adapter", name)
				wait = healthCheckFailureBackoff
			}
		}
	}
}
