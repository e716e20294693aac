package handler

import (
	"net/http"
	"strconv"

	"curbside/internal/middleware"
	"curbside/internal/repository"
	"curbside/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *repository.NotificationRepository
	preferences   *repository.PreferenceRepository
	badges        *service.BadgeAggregator
}

func NewNotificationHandler(notifications *repository.NotificationRepository,
	preferences *repository.PreferenceRepository, badges *service.BadgeAggregator) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, preferences: preferences, badges: badges}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.notifications.ListByUser(middleware.GetUserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := h.notifications.MarkRead(uint(id), middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notifications.MarkAllRead(middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

func (h *NotificationHandler) SetPinned(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := h.notifications.SetPinned(uint(id), middleware.GetUserID(c), *req.Pinned); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Badges computes the four counters fresh on every call. Pass
// ?details=true for per-conversation and per-request breakdowns.
func (h *NotificationHandler) Badges(c *gin.Context) {
	includeDetails := c.Query("details") == "true"
	snap, err := h.badges.GetBadgeCounts(middleware.GetUserID(c), includeDetails)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "badge computation failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	p, err := h.preferences.GetByUserID(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preferences not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": p})
}

type updatePreferencesRequest struct {
	DirectMessages *bool `json:"direct_messages"`
	RequestUpdates *bool `json:"request_updates"`
	QAActivity     *bool `json:"qa_activity"`
	Reviews        *bool `json:"reviews"`
	BoardActivity  *bool `json:"board_activity"`
}

// UpdatePreferences applies a partial update: absent fields keep their
// current value. Mandatory categories ignore these toggles entirely.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.GetUserID(c)
	p, err := h.preferences.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "preferences not found"})
		return
	}
	if req.DirectMessages != nil {
		p.DirectMessages = *req.DirectMessages
	}
	if req.RequestUpdates != nil {
		p.RequestUpdates = *req.RequestUpdates
	}
	if req.QAActivity != nil {
		p.QAActivity = *req.QAActivity
	}
	if req.Reviews != nil {
		p.Reviews = *req.Reviews
	}
	if req.BoardActivity != nil {
		p.BoardActivity = *req.BoardActivity
	}
	if err := h.preferences.Save(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": p})
}
