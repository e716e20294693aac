package handler

import (
	"log"
	"net/http"
	"strconv"

	"curbside/internal/middleware"
	"curbside/internal/repository"
	"curbside/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	users  *repository.UserRepository
	fanout *service.Fanout
}

func NewAdminHandler(users *repository.UserRepository, fanout *service.Fanout) *AdminHandler {
	return &AdminHandler{users: users, fanout: fanout}
}

func (h *AdminHandler) ListPending(c *gin.Context) {
	list, err := h.users.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *AdminHandler) Approve(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := h.users.SetApproved(uint(id), true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.fanout.Dispatch(service.DomainEvent{
		Kind:         service.EventUserApproved,
		ActorID:      middleware.GetUserID(c),
		TargetUserID: uint(id),
	}); err != nil {
		log.Printf("[FANOUT] user approved: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) Reject(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := h.users.SetApproved(uint(id), false); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if err := h.fanout.Dispatch(service.DomainEvent{
		Kind:         service.EventUserRejected,
		ActorID:      middleware.GetUserID(c),
		TargetUserID: uint(id),
	}); err != nil {
		log.Printf("[FANOUT] user rejected: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type broadcastRequest struct {
	Title string `json:"title" binding:"required,max=255"`
	Body  string `json:"body" binding:"required"`
}

// Broadcast sends an announcement to every approved user. Mandatory
// category: preference toggles do not apply.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	if err := h.fanout.Dispatch(service.DomainEvent{
		Kind:    service.EventBroadcast,
		ActorID: actorID,
		Subject: req.Title,
		Preview: req.Body,
	}); err != nil {
		log.Printf("[FANOUT] broadcast: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
