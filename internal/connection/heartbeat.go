package connection

import (
	"encoding/json"
	"time"
)

// startHeartbeatLocked starts the liveness loop for a connection. Any prior
// loop is always cancelled first, so rapid reconnects can never leave two
// timers running for the same connection. Callers hold m.mu.
func (m *Manager) startHeartbeatLocked(c *conn) {
	m.stopHeartbeatLocked(c)
	stop := make(chan struct{})
	c.hbStop = stop

	m.wg.Add(1)
	go m.heartbeatLoop(c, stop)
}

// stopHeartbeatLocked cancels the heartbeat loop, if any. Callers hold m.mu.
func (m *Manager) stopHeartbeatLocked(c *conn) {
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
}

// heartbeatLoop ticks at the configured interval. Each tick either declares
// the connection stale (no activity for more than twice the interval) or
// sends a heartbeat frame carrying the current timestamp. Ticks are skipped,
// not cancelled, while the manager is suspended.
func (m *Manager) heartbeatLoop(c *conn, stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.suspended {
				m.mu.Unlock()
				continue
			}
			if c.status != StatusConnected || c.client == nil {
				m.mu.Unlock()
				return
			}
			idle := time.Since(c.lastActivity)
			cl := c.client
			m.mu.Unlock()

			if idle > 2*m.cfg.HeartbeatInterval {
				// forceStale also closes hbStop, which ends this loop.
				m.forceStale(c)
				return
			}

			frame, _ := json.Marshal(map[string]any{
				"type":      FrameHeartbeat,
				"timestamp": time.Now().UnixMilli(),
			})
			if err := cl.Send(frame); err != nil {
				m.logger.Debug("heartbeat send failed", "conn_id", c.id, "error", err)
			}
		}
	}
}
