package main

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// fakeLink is an in-memory wsLink that records frames, pings, and the
// close code it was torn down with.
type fakeLink struct {
	mu        sync.Mutex
	frames    [][]byte
	pings     int
	closed    bool
	closeCode int
	failWrite bool
	failPing  bool
}

func (f *fakeLink) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("write failed")
	}
	if messageType == websocket.TextMessage {
		f.frames = append(f.frames, append([]byte(nil), data...))
	}
	return nil
}

func (f *fakeLink) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch messageType {
	case websocket.PingMessage:
		if f.failPing {
			return errors.New("ping failed")
		}
		f.pings++
	case websocket.CloseMessage:
		if len(data) >= 2 {
			f.closeCode = int(binary.BigEndian.Uint16(data[:2]))
		}
	}
	return nil
}

func (f *fakeLink) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeLink) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeLink) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func (f *fakeLink) closedWith() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

// stubMembership is a canned membership authority.
type stubMembership struct {
	member bool
	err    error
}

func (s stubMembership) IsMember(context.Context, int64, int64) (bool, error) {
	return s.member, s.err
}

// stubStore records saves and serves canned MarkRead results.
type stubStore struct {
	mu          sync.Mutex
	saved       []saveEvent
	lastReadID  int64
	markReadErr error
}

func (s *stubStore) SaveMessage(_ context.Context, roomID, senderID int64, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, saveEvent{roomID: roomID, senderID: senderID, content: content})
	return int64(len(s.saved)), nil
}

func (s *stubStore) MarkRead(context.Context, int64, int64) (int64, error) {
	return s.lastReadID, s.markReadErr
}

func (s *stubStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// stubNotifier counts offline-notification signals.
type stubNotifier struct {
	mu    sync.Mutex
	calls []saveEvent
}

func (n *stubNotifier) NotifyOffline(_ context.Context, roomID, senderID int64, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, saveEvent{roomID: roomID, senderID: senderID, content: content})
	return nil
}

func (n *stubNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
