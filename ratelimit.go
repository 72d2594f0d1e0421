package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ActionPolicy is the token bucket shape for one message type:
// Capacity tokens at most, refilled continuously at Refill tokens/sec.
type ActionPolicy struct {
	Capacity int
	Refill   rate.Limit
}

// DefaultActionPolicies returns the per-type bucket policies. Heartbeat
// carries no policy: liveness traffic is never throttled.
func DefaultActionPolicies() map[MessageType]ActionPolicy {
	return map[MessageType]ActionPolicy{
		TypeChat:  {Capacity: 20, Refill: 20},
		TypeRead:  {Capacity: 10, Refill: 10},
		TypeEnter: {Capacity: 5, Refill: 2},
		TypeLeave: {Capacity: 5, Refill: 2},
	}
}

// ActionLimiter enforces per-(user, action type) token buckets. Buckets
// are created lazily on a user's first action of a type and dropped
// when the user disconnects. Each bucket locks individually; the outer
// lock only guards map access.
type ActionLimiter struct {
	policies map[MessageType]ActionPolicy

	mu      sync.Mutex
	buckets map[int64]map[MessageType]*rate.Limiter
}

func NewActionLimiter(policies map[MessageType]ActionPolicy) *ActionLimiter {
	return &ActionLimiter{
		policies: policies,
		buckets:  make(map[int64]map[MessageType]*rate.Limiter),
	}
}

// Allow reports whether userID may perform one action of the given
// type now. Denial is silent at the protocol level; callers drop the
// frame and keep the connection open.
func (l *ActionLimiter) Allow(userID int64, t MessageType) bool {
	policy, limited := l.policies[t]
	if !limited {
		return true
	}

	l.mu.Lock()
	user, ok := l.buckets[userID]
	if !ok {
		user = make(map[MessageType]*rate.Limiter)
		l.buckets[userID] = user
	}
	bucket, ok := user[t]
	if !ok {
		bucket = rate.NewLimiter(policy.Refill, policy.Capacity)
		user[t] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// Clear drops every bucket held for userID. Called on eviction.
func (l *ActionLimiter) Clear(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, userID)
}

// HandshakeLimiter gates connection attempts per client IP, ahead of
// authentication. Entries idle for ten minutes are reaped.
type HandshakeLimiter struct {
	mu       sync.Mutex
	limiters map[string]*handshakeEntry
	rate     float64
}

type handshakeEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewHandshakeLimiter(rps float64) *HandshakeLimiter {
	hl := &HandshakeLimiter{
		limiters: make(map[string]*handshakeEntry),
		rate:     rps,
	}
	go hl.cleanup()
	return hl
}

func (hl *HandshakeLimiter) Allow(ip string) bool {
	hl.mu.Lock()
	entry, ok := hl.limiters[ip]
	if !ok {
		entry = &handshakeEntry{
			limiter: rate.NewLimiter(rate.Limit(hl.rate), int(hl.rate)*2),
		}
		hl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	hl.mu.Unlock()

	return entry.limiter.Allow()
}

func (hl *HandshakeLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		hl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, entry := range hl.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(hl.limiters, ip)
			}
		}
		hl.mu.Unlock()
	}
}
