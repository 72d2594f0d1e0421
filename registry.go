package main

import (
	"log"
	"sync"
)

// Registry is the single source of truth for live session state: which
// connection a user owns and which rooms they are currently entered
// into. Both maps are keyed independently so traffic for different
// users and rooms never contends on a shared lock.
type Registry struct {
	conns sync.Map // userID int64 → *Conn
	rooms sync.Map // roomID int64 → *participantSet

	// onEvict releases per-user state held elsewhere (rate buckets).
	onEvict func(userID int64)
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetEvictHook installs a callback invoked once per eviction with the
// evicted user's id.
func (r *Registry) SetEvictHook(fn func(userID int64)) {
	r.onEvict = fn
}

// Register installs c as userID's active connection. An existing open
// connection is superseded: closed with UNRELIABLE before c becomes the
// one Lookup returns. The swap is atomic, so at most one connection is
// registered per user at any instant.
func (r *Registry) Register(userID int64, c *Conn) {
	if old, loaded := r.conns.Swap(userID, c); loaded {
		prev := old.(*Conn)
		if prev != c {
			prev.Close(ReasonUnreliable)
			log.Printf("session replaced userId=%d oldConnId=%s newConnId=%s", userID, prev.ID(), c.ID())
		}
	}
}

// Lookup returns userID's active connection, or nil.
func (r *Registry) Lookup(userID int64) *Conn {
	v, ok := r.conns.Load(userID)
	if !ok {
		return nil
	}
	return v.(*Conn)
}

// Touch updates the user's last-active timestamp if they are connected.
func (r *Registry) Touch(userID int64) {
	if c := r.Lookup(userID); c != nil {
		c.Touch()
	}
}

// MarkEntered adds userID to roomID's live participant set. A set that
// was concurrently emptied and dropped refuses the add; retry on a
// fresh one so the enter is never lost.
func (r *Registry) MarkEntered(roomID, userID int64) {
	for {
		v, _ := r.rooms.LoadOrStore(roomID, newParticipantSet())
		if v.(*participantSet).add(userID) {
			return
		}
		// Dead set: help drop the stale entry, then retry.
		r.rooms.CompareAndDelete(roomID, v)
	}
}

// MarkLeft removes userID from roomID's live participant set and
// reports whether they were present. The last participant out drops the
// room entry.
func (r *Registry) MarkLeft(roomID, userID int64) bool {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return false
	}
	set := v.(*participantSet)
	removed, empty := set.remove(userID)
	if empty {
		r.rooms.CompareAndDelete(roomID, v)
	}
	return removed
}

// ParticipantsOf returns a snapshot of the user ids currently entered
// into roomID.
func (r *Registry) ParticipantsOf(roomID int64) []int64 {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil
	}
	return v.(*participantSet).snapshot()
}

// IsParticipant reports whether userID is currently entered into roomID.
func (r *Registry) IsParticipant(roomID, userID int64) bool {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return false
	}
	return v.(*participantSet).contains(userID)
}

// Evict closes the user's connection if present, removes them from
// every room, and releases their per-user state. Safe to call for a
// user with no connection; eviction is idempotent.
func (r *Registry) Evict(userID int64, reason CloseReason) {
	if v, ok := r.conns.LoadAndDelete(userID); ok {
		v.(*Conn).Close(reason)
		log.Printf("evicted userId=%d reason=%s", userID, reason)
	}
	r.clearUser(userID)
}

// EvictConn evicts c only while it is still the registered connection
// for its user. A superseded connection's dying read loop lands here
// and must not remove its replacement.
func (r *Registry) EvictConn(c *Conn, reason CloseReason) {
	if r.conns.CompareAndDelete(c.UserID(), c) {
		c.Close(reason)
		r.clearUser(c.UserID())
		log.Printf("evicted userId=%d connId=%s reason=%s", c.UserID(), c.ID(), reason)
		return
	}
	// Already superseded or evicted: close the handle, leave state alone.
	c.Close(reason)
}

// RangeConns visits every registered connection. The walk tolerates
// concurrent registration and eviction.
func (r *Registry) RangeConns(fn func(userID int64, c *Conn) bool) {
	r.conns.Range(func(k, v any) bool {
		return fn(k.(int64), v.(*Conn))
	})
}

// ConnCount returns the number of registered connections.
func (r *Registry) ConnCount() int {
	n := 0
	r.conns.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) clearUser(userID int64) {
	r.rooms.Range(func(k, v any) bool {
		set := v.(*participantSet)
		if _, empty := set.remove(userID); empty {
			r.rooms.CompareAndDelete(k, v)
		}
		return true
	})
	if r.onEvict != nil {
		r.onEvict(userID)
	}
}

// participantSet is the live membership of one room, guarded by its own
// lock so rooms never contend with each other. Emptying the set kills
// it: a dead set refuses adds, so a holder that raced the room-entry
// drop cannot strand a user in a detached set.
type participantSet struct {
	mu    sync.RWMutex
	dead  bool
	users map[int64]struct{}
}

func newParticipantSet() *participantSet {
	return &participantSet{users: make(map[int64]struct{})}
}

func (s *participantSet) add(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return false
	}
	s.users[userID] = struct{}{}
	return true
}

func (s *participantSet) remove(userID int64) (removed, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, removed = s.users[userID]
	delete(s.users, userID)
	if len(s.users) == 0 {
		s.dead = true
		return removed, true
	}
	return removed, false
}

func (s *participantSet) contains(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

func (s *participantSet) snapshot() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	return out
}
