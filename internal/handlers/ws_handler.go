package handlers

import (
	"context"
	"net/http"
	"time"

	"travel-together-api/internal/middleware"
	"travel-together-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Connector is the part of the hub the upgrade handler needs.
type Connector interface {
	realtime.FrameSink
	Connect(ctx context.Context, c realtime.Client) error
}

type WSHandler struct {
	hub      Connector
	cfg      realtime.ConnConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler builds the upgrade handler. allowedOrigins follows the CORS setting, "*" allows any.
func NewWSHandler(hub Connector, cfg realtime.ConnConfig, allowedOrigins []string, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve upgrades the request and hands the connection to the hub. The identity comes from the
// token validated by JWTAuthMiddleware; a userId query parameter may only repeat it.
// GET /ws
func (h *WSHandler) Serve(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return
	}
	if claimed := c.Query("userId"); claimed != "" && claimed != userID {
		h.logger.Warn().Str("userID", userID).Str("claimed", claimed).Msg("userId does not match token")
		c.JSON(http.StatusForbidden, gin.H{"error": "userId does not match token"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn().Err(err).Str("userID", userID).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConn(ws, userID, c.GetString(middleware.UsernameKey), h.cfg, &h.logger)
	if err := h.hub.Connect(c.Request.Context(), conn); err != nil {
		h.logger.Warn().Err(err).Str("userID", userID).Msg("hub refused connection")
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, realtime.CloseReasonShutdown)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	conn.Serve(h.hub)
}
