package models

import "time"

// RoomKind separates trip rooms from direct chat rooms.
type RoomKind string

const (
	RoomTrip   RoomKind = "trip"
	RoomDirect RoomKind = "direct"
)

// ChatMessage is one persisted chat line of a trip room or a direct chat.
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	RoomKind  RoomKind  `json:"roomKind" gorm:"column:room_kind;not null;index:idx_chat_room,priority:1"`
	RoomID    string    `json:"roomId" gorm:"column:room_id;not null;index:idx_chat_room,priority:2"`
	UserID    string    `json:"userId" gorm:"column:user_id;not null"`
	Username  string    `json:"username"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	SentAt    time.Time `json:"sentAt" gorm:"column:sent_at;index:idx_chat_room,priority:3"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
