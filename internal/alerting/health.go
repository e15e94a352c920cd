package alerting

import (
	"context"
	"time"
)

const (
	healthCheckInterval       = 30 * time.Second
	healthCheckFailureBackoff = 60 * time.Second
)

// healthChecker is implemented by channels capable of reporting their
// own reachability; channels that can't (e.g. SMTP, which has no cheap
// probe) are skipped.
type healthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// RunHealthLoop probes every health-checkable channel every 30s,
// backing off to 60s after any failure, mirroring the Storage
// Manager's loop and the original's _health_check_loop (§5, §D.5).
func (m *Manager) RunHealthLoop(ctx context.Context) {
	wait := healthCheckInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		wait = healthCheckInterval
		for _, ch := range m.channels {
			hc, ok := ch.(healthChecker)
			if !ok {
				continue
			}
			if !hc.HealthCheck(ctx) {
				m.log.WarnContext(ctx, "notification channel unhealthy", "channel", ch.Name())
				wait = healthCheckFailureBackoff
			}
		}
	}
}
