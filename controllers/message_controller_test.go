package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discusshub/discusshub/models"
)

func TestSendMessage(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	sender := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
	senderToken := tokenFor(t, sender)

	t.Run("unknown recipient creates nothing", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/messages", senderToken, map[string]string{
			"recipient_username": "nobody",
			"content":            "hello?",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)

		var count int64
		require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/messages", senderToken, map[string]string{
			"recipient_username": "bob",
			"content":            "   ",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("message created unread and hydrated", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/messages", senderToken, map[string]string{
			"recipient_username": "bob",
			"content":            "hello bob",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		msg := dataField(t, w, "message").(map[string]interface{})
		assert.Equal(t, false, msg["read"])
		assert.Equal(t, "alice", msg["sender"].(map[string]interface{})["username"])
		assert.Equal(t, "bob", msg["recipient"].(map[string]interface{})["username"])
	})
}

func TestListMessages(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	require.NoError(t, db.Create(&models.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "to bob"}).Error)
	require.NoError(t, db.Create(&models.Message{SenderID: bob.ID, RecipientID: alice.ID, Content: "to alice"}).Error)
	require.NoError(t, db.Create(&models.Message{SenderID: bob.ID, RecipientID: carol.ID, Content: "to carol"}).Error)

	w := doRequest(r, "GET", "/api/messages", tokenFor(t, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := dataField(t, w, "messages").([]interface{})
	assert.Len(t, messages, 2, "sender or recipient only")

	w = doRequest(r, "GET", "/api/messages", tokenFor(t, carol), nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages = dataField(t, w, "messages").([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "bob", messages[0].(map[string]interface{})["sender"].(map[string]interface{})["username"])
}

func TestMarkRead(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	msg := models.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "hello"}
	require.NoError(t, db.Create(&msg).Error)
	path := fmt.Sprintf("/api/messages/%d/read", msg.ID)

	t.Run("sender may not mark read", func(t *testing.T) {
		w := doRequest(r, "PATCH", path, tokenFor(t, alice), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("recipient marks read, idempotently", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := doRequest(r, "PATCH", path, tokenFor(t, bob), nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			m := dataField(t, w, "message").(map[string]interface{})
			assert.Equal(t, true, m["read"])
		}

		var stored models.Message
		require.NoError(t, db.First(&stored, msg.ID).Error)
		assert.True(t, stored.Read)
	})

	t.Run("unknown message", func(t *testing.T) {
		w := doRequest(r, "PATCH", "/api/messages/9999/read", tokenFor(t, bob), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDeleteMessage(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	msg := models.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "hello"}
	require.NoError(t, db.Create(&msg).Error)
	path := fmt.Sprintf("/api/messages/%d", msg.ID)

	t.Run("outsider forbidden", func(t *testing.T) {
		w := doRequest(r, "DELETE", path, tokenFor(t, carol), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("sender deletes", func(t *testing.T) {
		w := doRequest(r, "DELETE", path, tokenFor(t, alice), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var count int64
		require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("already deleted", func(t *testing.T) {
		w := doRequest(r, "DELETE", path, tokenFor(t, alice), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
