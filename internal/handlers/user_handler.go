package handlers

import (
	"net/http"

	"travel-together-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type UserHandler struct {
	db       *gorm.DB
	presence Presence
	logger   zerolog.Logger
}

func NewUserHandler(db *gorm.DB, presence Presence, logger *zerolog.Logger) *UserHandler {
	return &UserHandler{
		db:       db,
		presence: presence,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

// GetOnlineUsers returns the users with a live websocket connection.
// GET /api/users/online
func (h *UserHandler) GetOnlineUsers(c *gin.Context) {
	ids, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read online users")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Presence is unavailable"})
		return
	}

	names := make(map[string]string, len(ids))
	if len(ids) > 0 {
		var users []models.User
		if err := h.db.WithContext(c.Request.Context()).Where("id IN ?", ids).Find(&users).Error; err != nil {
			h.logger.Error().Err(err).Msg("failed to fetch users")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}

	// Map to safe response payload, keeping users that have no account row
	resp := make([]UserResponse, 0, len(ids))
	for _, id := range ids {
		resp = append(resp, UserResponse{ID: id, Username: names[id]})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}
