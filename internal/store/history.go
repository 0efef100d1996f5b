package store

import (
	"context"
	"fmt"

	"travel-together-api/internal/models"

	"gorm.io/gorm"
)

const maxHistoryLimit = 500

// ChatHistory persists chat messages of trip rooms and direct chats.
type ChatHistory struct {
	db *gorm.DB
}

func NewChatHistory(db *gorm.DB) *ChatHistory {
	return &ChatHistory{db: db}
}

// Append stores one message.
func (h *ChatHistory) Append(ctx context.Context, msg *models.ChatMessage) error {
	if err := h.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append chat message %s: %w", msg.ID, err)
	}
	return nil
}

// ListByRoom returns up to limit most recent messages of a room, oldest first.
func (h *ChatHistory) ListByRoom(ctx context.Context, kind models.RoomKind, roomID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var msgs []models.ChatMessage
	err := h.db.WithContext(ctx).
		Where("room_kind = ? AND room_id = ?", kind, roomID).
		Order("sent_at desc").
		Order("created_at desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s room %s: %w", kind, roomID, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
