package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Room is a two-party conversation. Durable membership lives in
// RoomMember rows; the registry's participant sets are only a live
// cache of it.
type Room struct {
	ID        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
}

type RoomMember struct {
	ID     int64 `gorm:"primaryKey"`
	RoomID int64 `gorm:"uniqueIndex:idx_room_user"`
	UserID int64 `gorm:"uniqueIndex:idx_room_user"`
}

type Message struct {
	ID        int64 `gorm:"primaryKey"`
	RoomID    int64 `gorm:"index"`
	SenderID  int64
	Content   string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// ChatStore implements MembershipAuthority and MessageStore on GORM
// with SQLite.
type ChatStore struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func OpenStore(path string) (*ChatStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Room{}, &RoomMember{}, &Message{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &ChatStore{db: db}, nil
}

// CreateRoom creates a room with exactly two members and returns its id.
func (s *ChatStore) CreateRoom(ctx context.Context, userA, userB int64) (int64, error) {
	room := &Room{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		members := []RoomMember{
			{RoomID: room.ID, UserID: userA},
			{RoomID: room.ID, UserID: userB},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return 0, fmt.Errorf("create room: %w", err)
	}
	return room.ID, nil
}

func (s *ChatStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return n > 0, nil
}

func (s *ChatStore) SaveMessage(ctx context.Context, roomID, senderID int64, content string) (int64, error) {
	msg := &Message{RoomID: roomID, SenderID: senderID, Content: content}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return 0, fmt.Errorf("save message: %w", err)
	}
	return msg.ID, nil
}

// MarkRead marks every unread message in the room not sent by userID
// and returns the highest id marked, or 0 when nothing was unread.
func (s *ChatStore) MarkRead(ctx context.Context, roomID, userID int64) (int64, error) {
	var last Message
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", roomID, userID).
		Order("id DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find unread: %w", err)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).
		Model(&Message{}).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL AND id <= ?", roomID, userID, last.ID).
		Update("read_at", now).Error
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return last.ID, nil
}
