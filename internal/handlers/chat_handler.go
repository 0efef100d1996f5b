package handlers

import (
	"context"
	"net/http"
	"strconv"

	"travel-together-api/internal/middleware"
	"travel-together-api/internal/models"
	"travel-together-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MessageHistory is the read side of the chat history.
type MessageHistory interface {
	ListByRoom(ctx context.Context, kind models.RoomKind, roomID string, limit int) ([]models.ChatMessage, error)
}

// Presence answers who is connected right now.
type Presence interface {
	OnlineUsers(ctx context.Context) ([]string, error)
	TripPresence(ctx context.Context, tripID string) ([]string, error)
}

type ChatHandler struct {
	gate         realtime.Authorizer
	history      MessageHistory
	presence     Presence
	defaultLimit int
	logger       zerolog.Logger
}

func NewChatHandler(gate realtime.Authorizer, history MessageHistory, presence Presence, defaultLimit int, logger *zerolog.Logger) *ChatHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &ChatHandler{
		gate:         gate,
		history:      history,
		presence:     presence,
		defaultLimit: defaultLimit,
		logger:       logger.With().Str("component", "chat").Logger(),
	}
}

// GetTripMessages returns the recent chat history of a trip the caller belongs to.
// GET /api/trips/:id/messages?limit=N
func (h *ChatHandler) GetTripMessages(c *gin.Context) {
	tripID := c.Param("id")
	if !h.authorizeTrip(c, tripID) {
		return
	}
	h.listMessages(c, models.RoomTrip, tripID)
}

// GetDirectMessages returns the recent history of a direct chat the caller takes part in.
// GET /api/direct/:chatId/messages?limit=N
func (h *ChatHandler) GetDirectMessages(c *gin.Context) {
	chatID := c.Param("chatId")
	if !realtime.IsDirectParticipant(chatID, c.GetString(middleware.UserIDKey)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this chat"})
		return
	}
	h.listMessages(c, models.RoomDirect, chatID)
}

// GetTripPresence lists the trip members currently connected to the trip room.
// GET /api/trips/:id/presence
func (h *ChatHandler) GetTripPresence(c *gin.Context) {
	tripID := c.Param("id")
	if !h.authorizeTrip(c, tripID) {
		return
	}
	ids, err := h.presence.TripPresence(c.Request.Context(), tripID)
	if err != nil {
		h.logger.Error().Err(err).Str("tripID", tripID).Msg("failed to read trip presence")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Presence is unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tripId": tripID,
		"online": ids,
		"count":  len(ids),
	})
}

// authorizeTrip writes the error response and returns false when the caller may not read tripID.
func (h *ChatHandler) authorizeTrip(c *gin.Context, tripID string) bool {
	auth := h.gate.AuthorizeTripJoin(c.Request.Context(), tripID, c.GetString(middleware.UserIDKey))
	switch auth.Outcome {
	case realtime.OutcomeAllowed:
		return true
	case realtime.OutcomeTripNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": auth.Reason()})
	case realtime.OutcomeNotMember:
		c.JSON(http.StatusForbidden, gin.H{"error": auth.Reason()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": auth.Reason()})
	}
	return false
}

func (h *ChatHandler) listMessages(c *gin.Context, kind models.RoomKind, roomID string) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	msgs, err := h.history.ListByRoom(c.Request.Context(), kind, roomID, limit)
	if err != nil {
		h.logger.Error().Err(err).
			Str("roomKind", string(kind)).
			Str("roomID", roomID).
			Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"count":    len(msgs),
	})
}
