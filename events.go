package main

import (
	"context"
	"log"
	"time"
)

const saveTimeout = 5 * time.Second

type saveEvent struct {
	roomID   int64
	senderID int64
	content  string
}

// PersistQueue hands CHAT persistence off the delivery hot path. The
// enqueue never blocks: when the queue is full the event is dropped and
// logged. Store errors are logged and not retried — retry policy
// belongs to the persistence collaborator, not this core.
type PersistQueue struct {
	store MessageStore
	ch    chan saveEvent
}

func NewPersistQueue(store MessageStore, size int) *PersistQueue {
	return &PersistQueue{
		store: store,
		ch:    make(chan saveEvent, size),
	}
}

// EnqueueSave records a sent message for asynchronous persistence.
func (q *PersistQueue) EnqueueSave(roomID, senderID int64, content string) {
	select {
	case q.ch <- saveEvent{roomID: roomID, senderID: senderID, content: content}:
	default:
		log.Printf("persist queue full, dropping save roomId=%d senderId=%d", roomID, senderID)
	}
}

// Run consumes events until ctx is cancelled, then drains whatever is
// already queued before returning.
func (q *PersistQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-q.ch:
					q.save(ev)
				default:
					return
				}
			}
		case ev := <-q.ch:
			q.save(ev)
		}
	}
}

func (q *PersistQueue) save(ev saveEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if _, err := q.store.SaveMessage(ctx, ev.roomID, ev.senderID, ev.content); err != nil {
		log.Printf("persist failed roomId=%d senderId=%d: %v", ev.roomID, ev.senderID, err)
	}
}
