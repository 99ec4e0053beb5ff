package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/discusshub/discusshub/middleware"
)

func setupAuthRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	authController := NewAuthController(db)

	auth := r.Group("/api/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.GET("/oauth/:provider/login", authController.OAuthRedirect)
	auth.POST("/logout", middleware.AuthRequired(db), authController.Logout)
	auth.GET("/me", middleware.AuthRequired(db), authController.Me)
	return r
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	r := setupAuthRouter(db)

	t.Run("creates account and issues token", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.NotEmpty(t, dataField(t, w, "token"))

		user := dataField(t, w, "user").(map[string]interface{})
		assert.Equal(t, "alice", user["username"])
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/register", "", map[string]string{
			"username": "alice2",
			"email":    "alice@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("password too short", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/register", "", map[string]string{
			"username": "bob",
			"email":    "bob@example.com",
			"password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	r := setupAuthRouter(db)
	createTestUser(t, db, "alice")

	t.Run("valid credentials", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		token, ok := dataField(t, w, "token").(string)
		require.True(t, ok)

		w = doRequest(r, "GET", "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "alice@example.com")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/auth/login", "", map[string]string{
			"username": "nobody",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogoutRevokesToken(t *testing.T) {
	db := setupTestDB(t)
	r := setupAuthRouter(db)
	user := createTestUser(t, db, "alice")
	token := tokenFor(t, user)

	w := doRequest(r, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "POST", "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuthRedirectValidation(t *testing.T) {
	db := setupTestDB(t)
	r := setupAuthRouter(db)

	t.Run("unsupported provider", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/auth/oauth/gitlab/login", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/auth/oauth/github/login", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
