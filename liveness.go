package main

import (
	"context"
	"log"
	"time"
)

// LivenessMonitor is the only component that proactively scans all
// connections; every other eviction is reactive. Each tick it pings
// every registered connection and evicts ones that are already closed,
// unpingable, or idle past the threshold.
type LivenessMonitor struct {
	registry      *Registry
	interval      time.Duration
	idleThreshold time.Duration
}

func NewLivenessMonitor(registry *Registry, interval, idleThreshold time.Duration) *LivenessMonitor {
	return &LivenessMonitor{
		registry:      registry,
		interval:      interval,
		idleThreshold: idleThreshold,
	}
}

// Run ticks until ctx is cancelled.
func (m *LivenessMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep is one monitor tick.
func (m *LivenessMonitor) sweep(now time.Time) {
	m.registry.RangeConns(func(userID int64, c *Conn) bool {
		switch {
		case !c.IsOpen():
			m.registry.EvictConn(c, ReasonUnreliable)
		case c.Ping() != nil:
			log.Printf("ping failed userId=%d connId=%s", userID, c.ID())
			m.registry.EvictConn(c, ReasonUnreliable)
		case now.Sub(c.LastActive()) > m.idleThreshold:
			log.Printf("idle session userId=%d lastActive=%s", userID, c.LastActive().Format(time.RFC3339))
			m.registry.EvictConn(c, ReasonUnreliable)
		}
		return true
	})
}
