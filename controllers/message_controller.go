package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/discusshub/discusshub/models"
	"github.com/discusshub/discusshub/utils"
)

// MessageController manages direct messages between users.
type MessageController struct {
	db *gorm.DB
}

// NewMessageController creates a new MessageController instance.
func NewMessageController(db *gorm.DB) *MessageController {
	return &MessageController{db: db}
}

// SendMessage creates a direct message addressed by recipient username.
func (m *MessageController) SendMessage(ctx *gin.Context) {
	var req struct {
		RecipientUsername string `json:"recipient_username" binding:"required"`
		Content           string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "message content is required")
		return
	}

	senderID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var recipient models.User
	if err := m.db.Where("username = ?", strings.TrimSpace(req.RecipientUsername)).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40407, "recipient not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50040, "failed to resolve recipient", err)
		return
	}

	message := models.Message{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Content:     content,
	}
	if err := m.db.Create(&message).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50041, "failed to send message", err)
		return
	}

	if err := m.db.Preload("Sender").Preload("Recipient").First(&message, message.ID).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50042, "failed to load message", err)
		return
	}

	utils.Created(ctx, gin.H{"message": message})
}

// ListMessages returns the authenticated user's messages, sent and received,
// newest-first with both parties resolved.
func (m *MessageController) ListMessages(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var messages []models.Message
	err := m.db.
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Preload("Sender").
		Preload("Recipient").
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50043, "failed to list messages", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	utils.Success(ctx, gin.H{"messages": messages})
}

// MarkRead flips the read flag to true. Only the recipient may do so, and
// marking an already-read message again is a no-op.
func (m *MessageController) MarkRead(ctx *gin.Context) {
	messageID, ok := parseID(ctx.Param("messageId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid message id")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var message models.Message
	if err := m.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40408, "message not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50044, "failed to load message", err)
		return
	}

	if message.RecipientID != userID {
		utils.Error(ctx, http.StatusForbidden, 40330, "not authorized to mark this message as read")
		return
	}

	if !message.Read {
		if err := m.db.Model(&message).Update("read", true).Error; err != nil {
			utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50045, "failed to mark message as read", err)
			return
		}
	}
	message.Read = true

	utils.Success(ctx, gin.H{"message": message})
}

// DeleteMessage removes a message; either party may delete it.
func (m *MessageController) DeleteMessage(ctx *gin.Context) {
	messageID, ok := parseID(ctx.Param("messageId"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid message id")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var message models.Message
	if err := m.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40408, "message not found")
			return
		}
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50044, "failed to load message", err)
		return
	}

	if message.SenderID != userID && message.RecipientID != userID {
		utils.Error(ctx, http.StatusForbidden, 40331, "not authorized to delete this message")
		return
	}

	if err := m.db.Delete(&message).Error; err != nil {
		utils.ErrorWithDetail(ctx, http.StatusInternalServerError, 50046, "failed to delete message", err)
		return
	}

	utils.Success(ctx, gin.H{"message": "message deleted"})
}
