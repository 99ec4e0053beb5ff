package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/discusshub/discusshub/middleware"
	"github.com/discusshub/discusshub/models"
	"github.com/discusshub/discusshub/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret-key")
	// Point Redis at a closed port so caching degrades to pass-through.
	os.Setenv("REDIS_PORT", "63790")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Reply{}, &models.Message{}))
	return db
}

// setupTestRouter mounts the API routes with the real auth middleware but
// without rate limiting.
func setupTestRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()

	postController := NewPostController(db)
	messageController := NewMessageController(db)

	api := r.Group("/api")
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/category/:category", postController.ListPosts)
	api.GET("/posts/:postId", postController.GetPost)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(db))
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:postId", postController.UpdatePost)
	protected.DELETE("/posts/:postId", postController.DeletePost)
	protected.POST("/posts/:postId/comments", postController.CreateComment)
	protected.POST("/posts/:postId/comments/:commentId/replies", postController.CreateReply)
	protected.DELETE("/posts/:postId/comments/:commentId", postController.DeleteComment)
	protected.DELETE("/posts/:postId/comments/:commentId/replies/:replyId", postController.DeleteReply)

	protected.POST("/messages", messageController.SendMessage)
	protected.GET("/messages", messageController.ListMessages)
	protected.PATCH("/messages/:messageId/read", messageController.MarkRead)
	protected.DELETE("/messages/:messageId", messageController.DeleteMessage)

	return r
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return token
}

func doRequest(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func dataField(t *testing.T, w *httptest.ResponseRecorder, key string) interface{} {
	t.Helper()
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data[key]
}
