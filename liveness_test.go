package main

import (
	"testing"
	"time"
)

func TestLivenessSweep_PingsHealthyConn(t *testing.T) {
	r := NewRegistry()
	link := &fakeLink{}
	r.Register(1, NewConn(1, link))

	m := NewLivenessMonitor(r, time.Second, time.Minute)
	m.sweep(time.Now())

	if r.Lookup(1) == nil {
		t.Error("healthy connection should survive the sweep")
	}
	if link.pings != 1 {
		t.Errorf("pings = %d, want 1", link.pings)
	}
}

func TestLivenessSweep_EvictsClosedConn(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1, &fakeLink{})
	r.Register(1, c)
	c.Close(ReasonPolicy)

	NewLivenessMonitor(r, time.Second, time.Minute).sweep(time.Now())

	if r.Lookup(1) != nil {
		t.Error("already-closed connection should be evicted")
	}
}

func TestLivenessSweep_EvictsOnPingFailure(t *testing.T) {
	r := NewRegistry()
	link := &fakeLink{failPing: true}
	r.Register(1, NewConn(1, link))

	NewLivenessMonitor(r, time.Second, time.Minute).sweep(time.Now())

	if r.Lookup(1) != nil {
		t.Error("unpingable connection should be evicted")
	}
	closed, code := link.closedWith()
	if !closed || code != ReasonUnreliable.Code() {
		t.Errorf("closed=%v code=%d, want closed with %d", closed, code, ReasonUnreliable.Code())
	}
}

func TestLivenessSweep_EvictsIdleConn(t *testing.T) {
	r := NewRegistry()
	link := &fakeLink{}
	c := NewConn(1, link)
	r.Register(1, c)
	r.MarkEntered(10, 1)

	c.lastActive.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	NewLivenessMonitor(r, time.Second, time.Minute).sweep(time.Now())

	if r.Lookup(1) != nil {
		t.Error("idle connection should be evicted")
	}
	if r.IsParticipant(10, 1) {
		t.Error("idle eviction should clear room state")
	}
}

func TestLivenessSweep_RecentActivityKeepsConn(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1, &fakeLink{})
	r.Register(1, c)

	c.lastActive.Store(time.Now().Add(-30 * time.Second).UnixNano())
	NewLivenessMonitor(r, time.Second, time.Minute).sweep(time.Now())

	if r.Lookup(1) == nil {
		t.Error("connection within the idle threshold should survive")
	}
}
