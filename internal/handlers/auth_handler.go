package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"travel-together-api/internal/auth"
	"travel-together-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type AuthHandler struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewAuthHandler(db *gorm.DB, logger *zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Login signs a user in, creating the account on first use.
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Username and password are required.",
		})
		return
	}

	ctx := c.Request.Context()
	user, err := h.findUser(ctx, req.Username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var created bool
		user, created, err = h.createUser(ctx, req.Username, req.Password)
		if err == nil && created {
			h.logger.Info().Str("userID", user.ID).Msg("user created on first login")
			h.respondWithToken(c, user)
			return
		}
		if err == nil {
			// a concurrent first login created the account
			user, err = h.findUser(ctx, req.Username)
		}
	}
	if err != nil {
		h.logger.Error().Err(err).Str("username", req.Username).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	h.respondWithToken(c, user)
}

func (h *AuthHandler) findUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := h.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	return user, err
}

// createUser inserts a new account. created is false when the username already exists.
func (h *AuthHandler) createUser(ctx context.Context, username, password string) (models.User, bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{ID: uuid.NewString(), Username: username, Password: string(hash)}
	res := h.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return models.User{}, false, fmt.Errorf("create user %s: %w", username, res.Error)
	}
	return user, res.RowsAffected == 1, nil
}

func (h *AuthHandler) respondWithToken(c *gin.Context, user models.User) {
	token, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Message:  "Login successful",
	})
}
