package routes

import (
	"net/http"
	"time"

	"travel-together-api/internal/handlers"
	"travel-together-api/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth           *handlers.AuthHandler
	WS             *handlers.WSHandler
	Chat           *handlers.ChatHandler
	Users          *handlers.UserHandler
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *zerolog.Logger
}

func SetupRoutes(deps Deps) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(middleware.RequestLogger(deps.Logger), gin.Recovery())

	// CORS middleware (for frontend integration)
	ginRouter.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Travel Together realtime API is running",
		})
	})

	if deps.Gatherer != nil {
		ginRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", deps.Auth.Login)
	}

	// Protected routes (authentication required)
	ginRouter.GET("/ws", middleware.JWTAuthMiddleware(), deps.WS.Serve)

	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		protectedRoutes.GET("/trips/:id/messages", deps.Chat.GetTripMessages)
		protectedRoutes.GET("/trips/:id/presence", deps.Chat.GetTripPresence)
		protectedRoutes.GET("/direct/:chatId/messages", deps.Chat.GetDirectMessages)
		protectedRoutes.GET("/users/online", deps.Users.GetOnlineUsers)
	}

	return ginRouter
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		// credentials forbid a literal "*", so the request origin is echoed back
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
