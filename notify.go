package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// offlineSubject is where offline-notification events are published for
// the push collaborator to consume.
const offlineSubject = "chat.notify.offline"

type offlineEvent struct {
	RoomID   int64     `json:"roomId"`
	SenderID int64     `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

// NatsNotifier publishes offline-notification events to NATS.
type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(url string) (*NatsNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("sessiond"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsNotifier{nc: nc}, nil
}

func (n *NatsNotifier) NotifyOffline(_ context.Context, roomID, senderID int64, content string) error {
	data, err := json.Marshal(offlineEvent{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encode offline event: %w", err)
	}
	if err := n.nc.Publish(offlineSubject, data); err != nil {
		return fmt.Errorf("publish offline event: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (n *NatsNotifier) Close() {
	_ = n.nc.Drain()
}
