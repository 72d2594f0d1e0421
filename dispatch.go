package main

import (
	"context"
	"log"
	"time"
)

type handlerFunc func(ctx context.Context, c *Conn, in InboundMessage)

// Dispatcher routes decoded inbound messages to per-type handlers after
// the rate limit gate. The handler table is closed: every member of the
// MessageType union has exactly one entry, and decode has already
// rejected anything outside it. There is no cross-message state here —
// each frame is handled independently against the registry and guard.
type Dispatcher struct {
	registry    *Registry
	limiter     *ActionLimiter
	guard       *AccessGuard
	broadcaster *Broadcaster
	store       MessageStore
	notifier    Notifier
	persist     *PersistQueue

	handlers map[MessageType]handlerFunc
	now      func() time.Time
}

func NewDispatcher(
	registry *Registry,
	limiter *ActionLimiter,
	guard *AccessGuard,
	broadcaster *Broadcaster,
	store MessageStore,
	notifier Notifier,
	persist *PersistQueue,
) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		limiter:     limiter,
		guard:       guard,
		broadcaster: broadcaster,
		store:       store,
		notifier:    notifier,
		persist:     persist,
		now:         time.Now,
	}
	d.handlers = map[MessageType]handlerFunc{
		TypeEnter:     d.handleEnter,
		TypeLeave:     d.handleLeave,
		TypeChat:      d.handleChat,
		TypeRead:      d.handleRead,
		TypeHeartbeat: d.handleHeartbeat,
	}
	return d
}

// Dispatch processes one validated inbound frame. Rate-limit denial
// drops the frame silently; the connection stays open — backpressure is
// steady-state behavior under load, not an error. Anything a handler
// did not account for closes the connection: corrupt per-connection
// state is not worth preserving.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, in InboundMessage) {
	c.Touch()

	if !d.limiter.Allow(c.UserID(), in.Type) {
		log.Printf("rate limited userId=%d type=%s roomId=%d", c.UserID(), in.Type, in.RoomID)
		return
	}

	handler, ok := d.handlers[in.Type]
	if !ok {
		d.registry.EvictConn(c, ReasonBadData)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("dispatch panic userId=%d type=%s roomId=%d: %v", c.UserID(), in.Type, in.RoomID, rec)
			d.registry.EvictConn(c, ReasonServerError)
		}
	}()
	handler(ctx, c, in)
}

func (d *Dispatcher) handleEnter(ctx context.Context, c *Conn, in InboundMessage) {
	if !d.guard.EnsureEnterAllowed(ctx, c, in.RoomID) {
		return
	}
	d.registry.MarkEntered(in.RoomID, c.UserID())
	log.Printf("enter userId=%d roomId=%d", c.UserID(), in.RoomID)
}

// Leaving is always permitted for the connection's own user; no guard.
func (d *Dispatcher) handleLeave(_ context.Context, c *Conn, in InboundMessage) {
	if d.registry.MarkLeft(in.RoomID, c.UserID()) {
		log.Printf("leave userId=%d roomId=%d", c.UserID(), in.RoomID)
	}
}

func (d *Dispatcher) handleChat(ctx context.Context, c *Conn, in InboundMessage) {
	if !d.guard.EnsureParticipant(c, in.RoomID) {
		return
	}

	d.persist.EnqueueSave(in.RoomID, c.UserID(), in.Content)

	out := OutboundMessage{
		RoomID:    in.RoomID,
		Type:      TypeChat,
		SenderID:  c.UserID(),
		Content:   in.Content,
		Timestamp: d.now(),
	}
	delivered := d.broadcaster.BroadcastExcept(in.RoomID, out, c.UserID())
	if delivered == 0 {
		log.Printf("no receiver online roomId=%d senderId=%d", in.RoomID, c.UserID())
		if err := d.notifier.NotifyOffline(ctx, in.RoomID, c.UserID(), in.Content); err != nil {
			log.Printf("offline notification failed roomId=%d: %v", in.RoomID, err)
		}
	}
}

func (d *Dispatcher) handleRead(ctx context.Context, c *Conn, in InboundMessage) {
	if !d.guard.EnsureParticipant(c, in.RoomID) {
		return
	}

	lastReadID, err := d.store.MarkRead(ctx, in.RoomID, c.UserID())
	if err != nil {
		log.Printf("mark read failed userId=%d roomId=%d: %v", c.UserID(), in.RoomID, err)
		d.registry.EvictConn(c, ReasonServerError)
		return
	}
	if lastReadID == 0 {
		// Nothing was unread; no acknowledgement to send.
		return
	}

	out := OutboundMessage{
		RoomID:            in.RoomID,
		Type:              TypeRead,
		SenderID:          c.UserID(),
		Timestamp:         d.now(),
		LastReadMessageID: lastReadID,
	}
	log.Printf("read userId=%d roomId=%d lastReadMessageId=%d", c.UserID(), in.RoomID, lastReadID)
	d.broadcaster.BroadcastExcept(in.RoomID, out, c.UserID())
}

// Heartbeat only refreshes liveness; no broadcast, no business logic.
func (d *Dispatcher) handleHeartbeat(_ context.Context, c *Conn, _ InboundMessage) {
	d.registry.Touch(c.UserID())
}
