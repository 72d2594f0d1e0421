package main

import (
	"context"
	"log"
)

// MembershipAuthority answers durable room membership. Consulted only
// on room entry; every later action checks the registry's live
// participant set instead.
type MembershipAuthority interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// MessageStore persists chat messages and read state. SaveMessage is
// invoked off the delivery hot path; MarkRead is invoked in the READ
// handler because the acknowledgement needs the returned id.
type MessageStore interface {
	SaveMessage(ctx context.Context, roomID, senderID int64, content string) (int64, error)
	MarkRead(ctx context.Context, roomID, userID int64) (lastReadID int64, err error)
}

// Notifier is signaled when a broadcast delivers to zero recipients, so
// an offline recipient can still be reached out of band.
type Notifier interface {
	NotifyOffline(ctx context.Context, roomID, senderID int64, content string) error
}

// LogNotifier is wired when no broker is configured: the signal is
// observable in logs and nothing else happens.
type LogNotifier struct{}

func (LogNotifier) NotifyOffline(_ context.Context, roomID, senderID int64, _ string) error {
	log.Printf("offline notification roomId=%d senderId=%d (no broker configured)", roomID, senderID)
	return nil
}
