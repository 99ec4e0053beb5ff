package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/discusshub/discusshub/models"
	"github.com/discusshub/discusshub/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key")
	os.Setenv("REDIS_PORT", "63790")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestAuthenticateRequest(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	validToken, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	expiredToken, err := utils.GenerateToken(user.ID, user.Username, -time.Hour)
	require.NoError(t, err)
	orphanToken, err := utils.GenerateToken(9999, "ghost", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"missing header", "", ErrMissingCredential},
		{"blank header", "   ", ErrMissingCredential},
		{"wrong scheme", "Basic " + validToken, ErrMalformedCredential},
		{"scheme only", "Bearer ", ErrMalformedCredential},
		{"garbage token", "Bearer not.a.jwt", ErrMalformedCredential},
		{"expired token", "Bearer " + expiredToken, ErrExpiredCredential},
		{"unknown subject", "Bearer " + orphanToken, ErrUnknownSubject},
		{"valid token", "Bearer " + validToken, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AuthenticateRequest(db, tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
			assert.Equal(t, "alice", got.Username)
		})
	}
}

func TestAuthenticateRequestRevokedToken(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)

	_, err = AuthenticateRequest(db, "Bearer "+token)
	require.NoError(t, err)

	utils.BlacklistToken(token, time.Now().Add(time.Hour))
	_, err = AuthenticateRequest(db, "Bearer "+token)
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func TestAuthRequiredMiddleware(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	r := gin.New()
	r.GET("/whoami", AuthRequired(db), func(ctx *gin.Context) {
		current, ok := CurrentUser(ctx)
		require.True(t, ok)
		ctx.JSON(http.StatusOK, gin.H{"username": current.Username})
	})

	validToken, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	expiredToken, err := utils.GenerateToken(user.ID, user.Username, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no credential", "", http.StatusUnauthorized},
		{"malformed credential", "Bearer junk", http.StatusUnauthorized},
		{"expired credential", "Bearer " + expiredToken, http.StatusUnauthorized},
		{"valid credential", "Bearer " + validToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), "alice")
			}
		})
	}
}
