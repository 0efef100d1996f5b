package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"travel-together-api/internal/auth"
	"travel-together-api/internal/models"
	"travel-together-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func login(t *testing.T, r *gin.Engine, username, password string) (*httptest.ResponseRecorder, LoginResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func newAuthRouter(t *testing.T) (*gin.Engine, *AuthHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	logger := zerolog.Nop()
	h := NewAuthHandler(db, &logger)

	r := gin.New()
	r.POST("/api/login", h.Login)
	return r, h
}

func TestLogin_CreatesUserIfNotExists(t *testing.T) {
	r, h := newAuthRouter(t)

	w, resp := login(t, r, "newuser", "sha256-from-fe")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.UserID)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.UserID, claims.UserID)
	require.Equal(t, "newuser", claims.Username)

	var user models.User
	require.NoError(t, h.db.Where("username = ?", "newuser").First(&user).Error)
	require.NotEqual(t, "sha256-from-fe", user.Password)
}

func TestLogin_ReturnsSameUserOnSecondLogin(t *testing.T) {
	r, _ := newAuthRouter(t)

	_, first := login(t, r, "alice", "secret")
	w, second := login(t, r, "alice", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, first.UserID, second.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _ := newAuthRouter(t)

	login(t, r, "alice", "secret")
	w, resp := login(t, r, "alice", "guess")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, resp.Token)
}

func TestLogin_InvalidRequest(t *testing.T) {
	r, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader([]byte(`{"username":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_CreateUserKeepsExistingAccount(t *testing.T) {
	_, h := newAuthRouter(t)
	ctx := context.Background()

	first, created, err := h.createUser(ctx, "alice", "secret")
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = h.createUser(ctx, "alice", "other")
	require.NoError(t, err)
	require.False(t, created)

	var users []models.User
	require.NoError(t, h.db.Where("username = ?", "alice").Find(&users).Error)
	require.Len(t, users, 1)
	require.Equal(t, first.ID, users[0].ID)
}

func TestLogin_ConcurrentFirstLogins(t *testing.T) {
	r, _ := newAuthRouter(t)

	const n = 6
	codes := make([]int, n)
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, resp := login(t, r, "carol", "pw")
			codes[i], ids[i] = w.Code, resp.UserID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Equal(t, http.StatusOK, codes[i])
		require.Equal(t, ids[0], ids[i])
	}
}
