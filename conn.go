package main

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection is closed")

// wsLink is the write side of an underlying WebSocket connection.
// *websocket.Conn satisfies it; tests substitute a fake.
type wsLink interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is the registry's handle to one live client connection. Once
// registered it is owned by the registry; everything else reaches it
// through Lookup. Data writes are serialized because the underlying
// WebSocket forbids concurrent writers.
type Conn struct {
	id     string
	userID int64
	link   wsLink

	writeMu    sync.Mutex
	closeOnce  sync.Once
	closed     atomic.Bool
	lastActive atomic.Int64 // unix nanoseconds
}

func NewConn(userID int64, link wsLink) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		userID: userID,
		link:   link,
	}
	// Initialize last-active so a fresh connection is never judged idle
	// before its first ping round-trip.
	c.Touch()
	return c
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) UserID() int64 { return c.userID }

func (c *Conn) IsOpen() bool { return !c.closed.Load() }

// Touch records inbound activity. Called for every received frame,
// including pongs and heartbeats.
func (c *Conn) Touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Conn) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// WriteFrame sends one text frame with a write deadline.
func (c *Conn) WriteFrame(data []byte) error {
	if c.closed.Load() {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.link.SetWriteDeadline(time.Now().Add(writeWait))
	return c.link.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a liveness probe carrying a millisecond timestamp.
// Control frames may be written concurrently with data frames.
func (c *Conn) Ping() error {
	if c.closed.Load() {
		return errConnClosed
	}
	payload := []byte(strconv.FormatInt(time.Now().UnixMilli(), 10))
	return c.link.WriteControl(websocket.PingMessage, payload, time.Now().Add(writeWait))
}

// Close sends a close frame carrying the reason code and tears down the
// link. Idempotent; subsequent writes fail fast with errConnClosed.
func (c *Conn) Close(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(reason.Code(), reason.String())
		_ = c.link.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.link.Close()
	})
}
