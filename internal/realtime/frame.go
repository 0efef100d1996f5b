package realtime

import (
	"encoding/json"
)

// Frame types carried in the "type" field of every websocket frame.
const (
	TypeMessage          = "message"
	TypeDirectMessage    = "direct_message"
	TypeJoinDirectChat   = "join_direct_chat"
	TypeLeaveDirectChat  = "leave_direct_chat"
	TypeJoinTrip         = "join_trip"
	TypeLeaveTrip        = "leave_trip"
	TypeActivity         = "activity"
	TypeConnectionStatus = "connection_status"
	TypeError            = "error"
)

const (
	StatusConnected = "connected"
	StatusJoined    = "joined"
)

// Frame is the JSON shape of every frame except activity, which is forwarded verbatim.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	TripID    string          `json:"tripId,omitempty"`
	ChatID    string          `json:"chatId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Content   string          `json:"content,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Status    string          `json:"status,omitempty"`
	Role      string          `json:"role,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// envelope is decoded first so that kind-specific payloads don't have to match Frame.
type envelope struct {
	Type   string `json:"type"`
	TripID string `json:"tripId"`
	ChatID string `json:"chatId"`
}

func hasTimestamp(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func errorFrame(message string) Frame {
	return Frame{Type: TypeError, Message: message}
}
