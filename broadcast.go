package main

import (
	"encoding/json"
	"log"
)

// Broadcaster fans one outbound message out to the live participants of
// a room. The message is serialized once. Delivery is at-most-once:
// a failed write is not retried, the broken connection is evicted, and
// durability stays with the persistence collaborator. Stale participant
// entries discovered along the way are reclaimed, so broadcasting
// doubles as cheap registry self-healing.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers msg to every participant of roomID and returns the
// delivered count.
func (b *Broadcaster) Broadcast(roomID int64, msg OutboundMessage) int {
	return b.BroadcastExcept(roomID, msg, 0)
}

// BroadcastExcept delivers msg to every participant of roomID except
// excludeUserID (0 excludes nobody) and returns the delivered count.
func (b *Broadcaster) BroadcastExcept(roomID int64, msg OutboundMessage, excludeUserID int64) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast serialize failed roomId=%d: %v", roomID, err)
		return 0
	}

	delivered := 0
	for _, userID := range b.registry.ParticipantsOf(roomID) {
		if userID == excludeUserID {
			continue
		}
		if b.sendTo(userID, payload) {
			delivered++
		}
	}
	return delivered
}

func (b *Broadcaster) sendTo(userID int64, payload []byte) bool {
	c := b.registry.Lookup(userID)
	if c == nil {
		// Participant entry outlived its connection; reclaim it.
		b.registry.Evict(userID, ReasonUnreliable)
		return false
	}
	if !c.IsOpen() {
		b.registry.EvictConn(c, ReasonUnreliable)
		return false
	}
	if err := c.WriteFrame(payload); err != nil {
		log.Printf("broadcast send failed userId=%d connId=%s: %v", userID, c.ID(), err)
		b.registry.EvictConn(c, ReasonUnreliable)
		return false
	}
	return true
}
