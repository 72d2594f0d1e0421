package main

import (
	"testing"
	"time"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1, &fakeLink{})

	r.Register(1, c)
	if got := r.Lookup(1); got != c {
		t.Fatalf("Lookup returned %v, want registered conn", got)
	}
	if r.Lookup(2) != nil {
		t.Error("Lookup for unknown user should return nil")
	}
	if r.ConnCount() != 1 {
		t.Errorf("ConnCount = %d, want 1", r.ConnCount())
	}
}

func TestRegistry_RegisterSupersedes(t *testing.T) {
	r := NewRegistry()
	oldLink := &fakeLink{}
	oldConn := NewConn(1, oldLink)
	r.Register(1, oldConn)

	newConn := NewConn(1, &fakeLink{})
	r.Register(1, newConn)

	if got := r.Lookup(1); got != newConn {
		t.Fatal("Lookup should return the superseding connection")
	}
	closed, code := oldLink.closedWith()
	if !closed {
		t.Error("superseded connection should be closed")
	}
	if code != ReasonUnreliable.Code() {
		t.Errorf("superseded close code = %d, want %d", code, ReasonUnreliable.Code())
	}
	if r.ConnCount() != 1 {
		t.Errorf("ConnCount = %d, want 1", r.ConnCount())
	}
}

func TestRegistry_EvictConnSupersededLeavesReplacement(t *testing.T) {
	r := NewRegistry()
	oldConn := NewConn(1, &fakeLink{})
	r.Register(1, oldConn)
	newConn := NewConn(1, &fakeLink{})
	r.Register(1, newConn)
	r.MarkEntered(10, 1)

	// The superseded connection's read loop dies and tries to evict.
	r.EvictConn(oldConn, ReasonUnreliable)

	if got := r.Lookup(1); got != newConn {
		t.Error("evicting a superseded connection must not remove its replacement")
	}
	if !r.IsParticipant(10, 1) {
		t.Error("evicting a superseded connection must not clear room state")
	}
}

func TestRegistry_EvictClearsRoomsAndFiresHook(t *testing.T) {
	r := NewRegistry()
	var hooked []int64
	r.SetEvictHook(func(userID int64) { hooked = append(hooked, userID) })

	link := &fakeLink{}
	c := NewConn(1, link)
	r.Register(1, c)
	r.MarkEntered(10, 1)
	r.MarkEntered(20, 1)

	r.Evict(1, ReasonPolicy)

	if r.Lookup(1) != nil {
		t.Error("evicted user should have no connection")
	}
	if r.IsParticipant(10, 1) || r.IsParticipant(20, 1) {
		t.Error("evicted user should be removed from all rooms")
	}
	closed, code := link.closedWith()
	if !closed || code != ReasonPolicy.Code() {
		t.Errorf("closed=%v code=%d, want closed with %d", closed, code, ReasonPolicy.Code())
	}
	if len(hooked) != 1 || hooked[0] != 1 {
		t.Errorf("evict hook calls = %v, want [1]", hooked)
	}
}

func TestRegistry_EvictUnknownUserIsNoop(t *testing.T) {
	r := NewRegistry()
	r.SetEvictHook(func(int64) {})
	r.Evict(42, ReasonUnreliable)
}

func TestRegistry_MarkEnteredAndLeft(t *testing.T) {
	r := NewRegistry()

	r.MarkEntered(10, 1)
	r.MarkEntered(10, 2)
	// Entering twice is idempotent.
	r.MarkEntered(10, 1)

	got := r.ParticipantsOf(10)
	if len(got) != 2 {
		t.Fatalf("ParticipantsOf = %v, want two participants", got)
	}
	if !r.IsParticipant(10, 1) || !r.IsParticipant(10, 2) {
		t.Error("both users should be participants")
	}

	if !r.MarkLeft(10, 1) {
		t.Error("MarkLeft should report removal of a present participant")
	}
	if r.MarkLeft(10, 1) {
		t.Error("MarkLeft should report false for an absent participant")
	}
	if r.IsParticipant(10, 1) {
		t.Error("user 1 should no longer be a participant")
	}

	// Last one out drops the room entry.
	r.MarkLeft(10, 2)
	if got := r.ParticipantsOf(10); got != nil {
		t.Errorf("empty room should be dropped, got %v", got)
	}
}

func TestRegistry_MarkLeftUnknownRoom(t *testing.T) {
	r := NewRegistry()
	if r.MarkLeft(99, 1) {
		t.Error("leaving an unknown room should report false")
	}
}

func TestRegistry_EnterNotLostWhenRoomDropped(t *testing.T) {
	r := NewRegistry()
	r.MarkEntered(10, 2)

	// Hold the set the way a concurrent enter would after its lookup,
	// then let the peer's leave empty the set and drop the room entry.
	v, _ := r.rooms.Load(int64(10))
	set := v.(*participantSet)
	r.MarkLeft(10, 2)

	if set.add(1) {
		t.Error("a dropped set must refuse adds")
	}

	// The enter retries on a fresh set instead of landing in the
	// detached one.
	r.MarkEntered(10, 1)
	if !r.IsParticipant(10, 1) {
		t.Error("enter must survive a concurrent empty-room drop")
	}
}

func TestRegistry_TouchRefreshesLastActive(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1, &fakeLink{})
	r.Register(1, c)

	c.lastActive.Store(time.Now().Add(-time.Minute).UnixNano())
	before := c.LastActive()
	r.Touch(1)
	if !c.LastActive().After(before) {
		t.Error("Touch should refresh the connection's last-active timestamp")
	}

	// Unknown user is a no-op.
	r.Touch(2)
}
