package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/chat"
)

// SendMessage answers a chat message synchronously.
func (h *Handler) SendMessage(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req chat.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.chatSvc.Send(c.Request.Context(), claims.UserID, req)
	if err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StreamMessage streams the assistant reply using Server-Sent Events.
func (h *Handler) StreamMessage(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req chat.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	stream, err := h.chatSvc.Stream(c.Request.Context(), claims.UserID, req)
	if err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	writeEvents(c, h.logger, stream)
}

// ListConversations returns the caller's conversations.
func (h *Handler) ListConversations(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	convs, err := h.chatSvc.Conversations(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// ConversationMessages returns one conversation's messages.
func (h *Handler) ConversationMessages(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.chatSvc.Messages(c.Request.Context(), claims.UserID, id)
	if err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": id, "messages": msgs})
}

// DeleteConversation removes a conversation.
func (h *Handler) DeleteConversation(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.chatSvc.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		abortWithError(c, domainError(err, "chat_failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportConversation downloads a conversation transcript.
func (h *Handler) ExportConversation(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	export, err := h.chatSvc.Export(c.Request.Context(), claims.UserID, id)
	if err != nil {
		abortWithError(c, domainError(err, "export_failed"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, []byte(export.Content))
}
