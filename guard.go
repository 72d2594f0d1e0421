package main

import (
	"context"
	"log"
)

// AccessGuard authorizes room actions. Entry is rare and must reflect
// durable truth, so it consults the membership authority; every
// subsequent action only needs "did this connection already prove
// membership this session" and checks the registry's live participant
// set. A failed check always evicts the acting connection: the action
// is never partially applied.
type AccessGuard struct {
	membership MembershipAuthority
	registry   *Registry
}

func NewAccessGuard(membership MembershipAuthority, registry *Registry) *AccessGuard {
	return &AccessGuard{membership: membership, registry: registry}
}

// EnsureEnterAllowed reports whether the connection's user may enter
// roomID. Entry by a non-member is a protocol violation, not a
// retryable error: the connection is closed with POLICY.
func (g *AccessGuard) EnsureEnterAllowed(ctx context.Context, c *Conn, roomID int64) bool {
	member, err := g.membership.IsMember(ctx, roomID, c.UserID())
	if err != nil {
		log.Printf("membership check failed userId=%d roomId=%d: %v", c.UserID(), roomID, err)
		g.registry.EvictConn(c, ReasonServerError)
		return false
	}
	if !member {
		log.Printf("enter denied userId=%d roomId=%d", c.UserID(), roomID)
		g.registry.EvictConn(c, ReasonPolicy)
		return false
	}
	return true
}

// EnsureParticipant reports whether the connection's user is currently
// entered into roomID. Cheap, in-memory; used for CHAT/READ.
func (g *AccessGuard) EnsureParticipant(c *Conn, roomID int64) bool {
	if !g.registry.IsParticipant(roomID, c.UserID()) {
		log.Printf("not a participant userId=%d roomId=%d", c.UserID(), roomID)
		g.registry.EvictConn(c, ReasonPolicy)
		return false
	}
	return true
}
