package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"travel-together-api/internal/auth"
	"travel-together-api/internal/middleware"
	"travel-together-api/internal/models"
	"travel-together-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	online []string
	trips  map[string][]string
	err    error
}

func (p fakePresence) OnlineUsers(context.Context) ([]string, error) {
	return p.online, p.err
}

func (p fakePresence) TripPresence(_ context.Context, tripID string) ([]string, error) {
	return p.trips[tripID], p.err
}

func TestGetOnlineUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	// Seed some users
	_ = db.Create(&models.User{ID: "u-1", Username: "alice", Password: "x"}).Error
	_ = db.Create(&models.User{ID: "u-2", Username: "bob", Password: "x"}).Error

	logger := zerolog.Nop()
	h := NewUserHandler(db, fakePresence{online: []string{"u-2", "u-9"}}, &logger)

	r := gin.New()
	r.Use(middleware.JWTAuthMiddleware())
	r.GET("/api/users/online", h.GetOnlineUsers)

	token, _ := auth.GenerateToken("u-1", "alice")
	req := httptest.NewRequest(http.MethodGet, "/api/users/online", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users []UserResponse `json:"users"`
		Count int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, []UserResponse{{ID: "u-2", Username: "bob"}, {ID: "u-9"}}, resp.Users)
}

func TestGetOnlineUsers_HubStopped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	logger := zerolog.Nop()
	h := NewUserHandler(db, fakePresence{err: errors.New("realtime hub stopped")}, &logger)

	r := gin.New()
	r.GET("/api/users/online", h.GetOnlineUsers)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/online", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
