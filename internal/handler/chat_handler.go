package handler

import (
	"log"
	"net/http"
	"strconv"

	"curbside/internal/middleware"
	"curbside/internal/models"
	"curbside/internal/repository"
	"curbside/internal/service"
	"curbside/internal/ws"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chat          *repository.ChatRepository
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	fanout        *service.Fanout
	hub           *ws.Hub
}

func NewChatHandler(chat *repository.ChatRepository, notifications *repository.NotificationRepository,
	users *repository.UserRepository, fanout *service.Fanout, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{chat: chat, notifications: notifications, users: users, fanout: fanout, hub: hub}
}

type createConversationRequest struct {
	Title     string `json:"title" binding:"max=255"`
	MemberIDs []uint `json:"member_ids" binding:"required,min=1"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	conv := &models.Conversation{CreatedBy: actorID, Title: req.Title}
	if err := h.chat.CreateConversation(conv); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	if err := h.chat.AddMember(conv.ID, actorID, actorID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	actorName := h.actorName(actorID)
	for _, memberID := range req.MemberIDs {
		if memberID == actorID {
			continue
		}
		if err := h.chat.AddMember(conv.ID, memberID, actorID); err != nil {
			log.Printf("[CHAT] add member %d to conversation %d: %v", memberID, conv.ID, err)
			continue
		}
		h.dispatch(service.DomainEvent{
			Kind:           service.EventMemberAdded,
			ActorID:        actorID,
			ActorName:      actorName,
			ConversationID: conv.ID,
			TargetUserID:   memberID,
			Subject:        conv.Title,
		})
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

type addMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *ChatHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	conv, ok := h.memberConversation(c, actorID)
	if !ok {
		return
	}
	if err := h.chat.AddMember(conv.ID, req.UserID, actorID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if req.UserID != actorID {
		h.dispatch(service.DomainEvent{
			Kind:           service.EventMemberAdded,
			ActorID:        actorID,
			ActorName:      h.actorName(actorID),
			ConversationID: conv.ID,
			TargetUserID:   req.UserID,
			Subject:        conv.Title,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	conv, ok := h.memberConversation(c, actorID)
	if !ok {
		return
	}
	msg := &models.Message{ConversationID: conv.ID, AuthorID: actorID, Body: req.Body}
	if err := h.chat.CreateMessage(msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:           service.EventMessageSent,
		ActorID:        actorID,
		ActorName:      h.actorName(actorID),
		ConversationID: conv.ID,
		Preview:        preview(req.Body),
	})
	h.hub.PublishChange("message", "insert", msg)
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	conv, ok := h.memberConversation(c, actorID)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.chat.ListMessages(conv.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

// MarkRead records read state for every message in the conversation and
// flips the matching notification rows so badges settle immediately.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	conv, ok := h.memberConversation(c, actorID)
	if !ok {
		return
	}
	if err := h.chat.MarkConversationRead(conv.ID, actorID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.notifications.MarkConversationRead(actorID, conv.ID); err != nil {
		log.Printf("[CHAT] mark notification rows read for conversation %d: %v", conv.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// memberConversation loads the :id conversation and enforces membership.
// Writes the error response itself when the check fails.
func (h *ChatHandler) memberConversation(c *gin.Context, userID uint) (*models.Conversation, bool) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	conv, err := h.chat.GetConversation(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return nil, false
	}
	member, err := h.chat.IsMember(conv.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return nil, false
	}
	return conv, true
}

func (h *ChatHandler) dispatch(ev service.DomainEvent) {
	if err := h.fanout.Dispatch(ev); err != nil {
		log.Printf("[FANOUT] %s: %v", ev.Kind, err)
	}
}

func (h *ChatHandler) actorName(id uint) string {
	u, err := h.users.GetByID(id)
	if err != nil {
		return "Someone"
	}
	return u.Name
}
