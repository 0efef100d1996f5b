package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"travel-together-api/internal/models"
)

// Error codes recorded for frames answered with an error frame.
const (
	codeMalformed    = "malformed"
	codeUnknownType  = "unknown_type"
	codeMissingField = "missing_field"
	codeNotMember    = "not_member"
	codeNotAllowed   = "not_participant"
)

// route dispatches one inbound frame. Protocol errors are answered with an error frame and
// never close the connection.
func (h *Hub) route(ctx context.Context, c Client, data []byte) {
	if !h.registry.Current(c) {
		h.metrics.frameError("stale_connection")
		h.logger.Debug().
			Str("userID", c.UserID()).
			Str("connID", c.ID()).
			Msg("dropping frame of an unregistered connection")
		return
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.reject(c, codeMalformed, "Malformed frame: expected a JSON object")
		return
	}

	switch env.Type {
	case TypeJoinTrip:
		h.metrics.frame(env.Type)
		h.joinTrip(ctx, c, env)
	case TypeLeaveTrip:
		h.metrics.frame(env.Type)
		h.leaveTrip(c, env)
	case TypeMessage:
		h.metrics.frame(env.Type)
		h.tripMessage(c, env, data)
	case TypeActivity:
		h.metrics.frame(env.Type)
		h.activity(c, env, data)
	case TypeJoinDirectChat:
		h.metrics.frame(env.Type)
		h.joinDirectChat(c, env)
	case TypeLeaveDirectChat:
		h.metrics.frame(env.Type)
		h.leaveDirectChat(c, env)
	case TypeDirectMessage:
		h.metrics.frame(env.Type)
		h.directMessage(c, env, data)
	case "":
		h.reject(c, codeMalformed, "Malformed frame: missing type")
	default:
		h.reject(c, codeUnknownType, fmt.Sprintf("Unknown frame type %q", env.Type))
	}
}

func (h *Hub) joinTrip(ctx context.Context, c Client, env envelope) {
	if env.TripID == "" {
		h.reject(c, codeMissingField, "tripId is required")
		return
	}
	if h.gate == nil {
		h.reject(c, string(OutcomeUnavailable), Authorization{Outcome: OutcomeUnavailable}.Reason())
		return
	}
	h.startTripJoin(ctx, c, env.TripID)
}

func (h *Hub) leaveTrip(c Client, env envelope) {
	if env.TripID == "" {
		h.reject(c, codeMissingField, "tripId is required")
		return
	}
	h.cancelTripJoin(c, env.TripID)
	h.rooms.Trips.Leave(env.TripID, c.UserID())
	h.metrics.observeState(h.registry.Len(), h.rooms)
}

// tripMessage broadcasts a chat message to the trip room. Membership was checked when the
// sender joined; here only the in-memory room is consulted.
func (h *Hub) tripMessage(c Client, env envelope, data []byte) {
	if env.TripID == "" {
		h.reject(c, codeMissingField, "tripId is required")
		return
	}
	if !h.rooms.Trips.IsMember(env.TripID, c.UserID()) {
		h.reject(c, codeNotMember, "Join the trip before sending messages")
		return
	}
	f, ok := h.decodeChat(c, data)
	if !ok {
		return
	}
	f.TripID = env.TripID
	f.ChatID = ""
	h.publishChat(c, f, models.RoomTrip, env.TripID, h.rooms.Trips.MembersOf(env.TripID))
}

// activity forwards the frame verbatim to the trip room.
func (h *Hub) activity(c Client, env envelope, data []byte) {
	if env.TripID == "" {
		h.reject(c, codeMissingField, "tripId is required")
		return
	}
	if !h.rooms.Trips.IsMember(env.TripID, c.UserID()) {
		h.reject(c, codeNotMember, "Join the trip before sending activity")
		return
	}
	// forwarded bytes must stay a valid text frame for every recipient
	if !utf8.Valid(data) {
		h.reject(c, codeMalformed, "Malformed frame: invalid UTF-8")
		return
	}
	h.broadcast(h.rooms.Trips.MembersOf(env.TripID), data)
}

func (h *Hub) joinDirectChat(c Client, env envelope) {
	if env.ChatID == "" {
		h.reject(c, codeMissingField, "chatId is required")
		return
	}
	if !IsDirectParticipant(env.ChatID, c.UserID()) {
		h.reject(c, codeNotAllowed, "Not a participant of this chat")
		return
	}
	h.rooms.Direct.Join(env.ChatID, c.UserID())
	h.metrics.observeState(h.registry.Len(), h.rooms)
}

func (h *Hub) leaveDirectChat(c Client, env envelope) {
	if env.ChatID == "" {
		h.reject(c, codeMissingField, "chatId is required")
		return
	}
	h.rooms.Direct.Leave(env.ChatID, c.UserID())
	h.metrics.observeState(h.registry.Len(), h.rooms)
}

// directMessage broadcasts to every member of the direct room, the sender included.
func (h *Hub) directMessage(c Client, env envelope, data []byte) {
	if env.ChatID == "" {
		h.reject(c, codeMissingField, "chatId is required")
		return
	}
	if !IsDirectParticipant(env.ChatID, c.UserID()) {
		h.reject(c, codeNotAllowed, "Not a participant of this chat")
		return
	}
	f, ok := h.decodeChat(c, data)
	if !ok {
		return
	}
	f.ChatID = env.ChatID
	f.TripID = ""
	h.publishChat(c, f, models.RoomDirect, env.ChatID, h.rooms.Direct.MembersOf(env.ChatID))
}

func (h *Hub) decodeChat(c Client, data []byte) (Frame, bool) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		h.reject(c, codeMalformed, "Malformed frame: "+err.Error())
		return Frame{}, false
	}
	if strings.TrimSpace(f.Content) == "" {
		h.reject(c, codeMissingField, "content is required")
		return Frame{}, false
	}
	return f, true
}

// publishChat stamps the sender identity onto f, fans it out and queues it for history.
func (h *Hub) publishChat(c Client, f Frame, kind models.RoomKind, roomID string, audience []string) {
	sentAt := h.now().UTC()
	f.ID = h.newID()
	f.UserID = c.UserID()
	if f.Username == "" {
		f.Username = c.Username()
	}
	if !hasTimestamp(f.Timestamp) {
		stamp, _ := json.Marshal(sentAt.Format(time.RFC3339Nano))
		f.Timestamp = stamp
	}
	f.Status, f.Role, f.Message = "", "", ""

	payload, err := json.Marshal(f)
	if err != nil {
		h.reject(c, codeMalformed, "Malformed frame: "+err.Error())
		return
	}
	delivered := h.broadcast(audience, payload)
	h.logger.Debug().
		Str("userID", c.UserID()).
		Str("roomKind", string(kind)).
		Str("roomID", roomID).
		Int("audience", len(audience)).
		Int("delivered", delivered).
		Msg("chat message routed")

	if h.history != nil {
		h.history.Record(models.ChatMessage{
			ID:       f.ID,
			RoomKind: kind,
			RoomID:   roomID,
			UserID:   f.UserID,
			Username: f.Username,
			Content:  f.Content,
			SentAt:   sentAt,
		})
	}
}
