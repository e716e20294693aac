package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"curbside/internal/domain"
	"curbside/internal/middleware"
	"curbside/internal/models"
	"curbside/internal/repository"
	"curbside/internal/service"
	"curbside/internal/ws"

	"github.com/gin-gonic/gin"
)

// RequestHandler serves rides and favors. Every mutation dispatches one
// domain event post-commit and publishes a raw change frame for the
// client reconcilers; neither may fail the request.
type RequestHandler struct {
	requests *repository.RequestRepository
	users    *repository.UserRepository
	fanout   *service.Fanout
	hub      *ws.Hub
}

func NewRequestHandler(requests *repository.RequestRepository, users *repository.UserRepository,
	fanout *service.Fanout, hub *ws.Hub) *RequestHandler {
	return &RequestHandler{requests: requests, users: users, fanout: fanout, hub: hub}
}

type createRideRequest struct {
	Origin      string    `json:"origin" binding:"required,max=255"`
	Destination string    `json:"destination" binding:"required,max=255"`
	Seats       int       `json:"seats" binding:"omitempty,min=1,max=8"`
	Notes       string    `json:"notes"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

func (h *RequestHandler) CreateRide(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	ride := &models.Ride{
		OwnerID:     actorID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Seats:       req.Seats,
		Notes:       req.Notes,
		Status:      domain.RequestStatusOpen,
		ScheduledAt: req.ScheduledAt,
	}
	if ride.Seats == 0 {
		ride.Seats = 1
	}
	if err := h.requests.CreateRide(ride); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:        service.EventRideCreated,
		ActorID:     actorID,
		ActorName:   h.actorName(actorID),
		RequestKind: domain.RequestKindRide,
		RequestID:   ride.ID,
		Subject:     rideSubject(ride),
	})
	h.hub.PublishChange(domain.RequestKindRide, "insert", ride)
	c.JSON(http.StatusCreated, gin.H{"ride": ride})
}

type createFavorRequest struct {
	Title       string    `json:"title" binding:"required,max=255"`
	Details     string    `json:"details"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

func (h *RequestHandler) CreateFavor(c *gin.Context) {
	var req createFavorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	favor := &models.Favor{
		OwnerID:     actorID,
		Title:       req.Title,
		Details:     req.Details,
		Status:      domain.RequestStatusOpen,
		ScheduledAt: req.ScheduledAt,
	}
	if err := h.requests.CreateFavor(favor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:        service.EventFavorCreated,
		ActorID:     actorID,
		ActorName:   h.actorName(actorID),
		RequestKind: domain.RequestKindFavor,
		RequestID:   favor.ID,
		Subject:     favor.Title,
	})
	h.hub.PublishChange(domain.RequestKindFavor, "insert", favor)
	c.JSON(http.StatusCreated, gin.H{"favor": favor})
}

func (h *RequestHandler) ListRides(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.requests.ListRides(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rides": list})
}

func (h *RequestHandler) ListFavors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.requests.ListFavors(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favors": list})
}

func (h *RequestHandler) GetRide(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ride, err := h.requests.GetRide(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": ride})
}

func (h *RequestHandler) GetFavor(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	favor, err := h.requests.GetFavor(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "favor not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favor": favor})
}

func (h *RequestHandler) ClaimRide(c *gin.Context)      { h.transitionRide(c, service.EventRequestClaimed) }
func (h *RequestHandler) UnclaimRide(c *gin.Context)    { h.transitionRide(c, service.EventRequestUnclaimed) }
func (h *RequestHandler) CompleteRide(c *gin.Context)   { h.transitionRide(c, service.EventRequestCompleted) }
func (h *RequestHandler) ClaimFavor(c *gin.Context)     { h.transitionFavor(c, service.EventRequestClaimed) }
func (h *RequestHandler) UnclaimFavor(c *gin.Context)   { h.transitionFavor(c, service.EventRequestUnclaimed) }
func (h *RequestHandler) CompleteFavor(c *gin.Context)  { h.transitionFavor(c, service.EventRequestCompleted) }

func (h *RequestHandler) transitionRide(c *gin.Context, kind service.EventKind) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ride, err := h.requests.GetRide(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
		return
	}
	actorID := middleware.GetUserID(c)
	ev, httpErr := applyTransition(kind, actorID, &requestState{
		kind:        domain.RequestKindRide,
		id:          ride.ID,
		ownerID:     ride.OwnerID,
		status:      &ride.Status,
		claimedBy:   &ride.ClaimedBy,
		completedAt: &ride.CompletedAt,
		scheduledAt: ride.ScheduledAt,
		subject:     rideSubject(ride),
	})
	if httpErr != "" {
		c.JSON(http.StatusConflict, gin.H{"error": httpErr})
		return
	}
	if err := h.requests.SaveRide(ride); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	ev.ActorName = h.actorName(actorID)
	h.dispatch(*ev)
	h.hub.PublishChange(domain.RequestKindRide, "update", ride)
	c.JSON(http.StatusOK, gin.H{"ride": ride})
}

func (h *RequestHandler) transitionFavor(c *gin.Context, kind service.EventKind) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	favor, err := h.requests.GetFavor(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "favor not found"})
		return
	}
	actorID := middleware.GetUserID(c)
	ev, httpErr := applyTransition(kind, actorID, &requestState{
		kind:        domain.RequestKindFavor,
		id:          favor.ID,
		ownerID:     favor.OwnerID,
		status:      &favor.Status,
		claimedBy:   &favor.ClaimedBy,
		completedAt: &favor.CompletedAt,
		scheduledAt: favor.ScheduledAt,
		subject:     favor.Title,
	})
	if httpErr != "" {
		c.JSON(http.StatusConflict, gin.H{"error": httpErr})
		return
	}
	if err := h.requests.SaveFavor(favor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	ev.ActorName = h.actorName(actorID)
	h.dispatch(*ev)
	h.hub.PublishChange(domain.RequestKindFavor, "update", favor)
	c.JSON(http.StatusOK, gin.H{"favor": favor})
}

// requestState lets the claim/unclaim/complete rules mutate a ride or
// favor through one shape.
type requestState struct {
	kind        string
	id          uint
	ownerID     uint
	status      *string
	claimedBy   **uint
	completedAt **time.Time
	scheduledAt time.Time
	subject     string
}

// applyTransition validates and applies a status transition in memory,
// returning the domain event carrying old and new state for the
// engine's no-op deduplication.
func applyTransition(kind service.EventKind, actorID uint, st *requestState) (*service.DomainEvent, string) {
	ev := &service.DomainEvent{
		Kind:        kind,
		ActorID:     actorID,
		RequestKind: st.kind,
		RequestID:   st.id,
		OwnerID:     st.ownerID,
		ScheduledAt: st.scheduledAt,
		OldStatus:   *st.status,
		Subject:     st.subject,
	}
	if *st.claimedBy != nil {
		ev.OldClaimerID = **st.claimedBy
	}

	switch kind {
	case service.EventRequestClaimed:
		if *st.status != domain.RequestStatusOpen {
			return nil, "request is not open"
		}
		if actorID == st.ownerID {
			return nil, "cannot claim your own request"
		}
		*st.status = domain.RequestStatusClaimed
		*st.claimedBy = &actorID
		ev.NewClaimerID = actorID
	case service.EventRequestUnclaimed:
		if *st.status != domain.RequestStatusClaimed || *st.claimedBy == nil || **st.claimedBy != actorID {
			return nil, "request is not claimed by you"
		}
		*st.status = domain.RequestStatusOpen
		*st.claimedBy = nil
	case service.EventRequestCompleted:
		if *st.status != domain.RequestStatusClaimed {
			return nil, "request is not claimed"
		}
		if actorID != st.ownerID && (*st.claimedBy == nil || **st.claimedBy != actorID) {
			return nil, "only the owner or claimer can complete"
		}
		*st.status = domain.RequestStatusCompleted
		now := time.Now()
		*st.completedAt = &now
		if *st.claimedBy != nil {
			ev.NewClaimerID = **st.claimedBy
		}
	}
	ev.NewStatus = *st.status
	return ev, ""
}

type coRequestorRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *RequestHandler) AddRideCoRequestor(c *gin.Context)  { h.addCoRequestor(c, domain.RequestKindRide) }
func (h *RequestHandler) AddFavorCoRequestor(c *gin.Context) { h.addCoRequestor(c, domain.RequestKindFavor) }

func (h *RequestHandler) addCoRequestor(c *gin.Context, kind string) {
	var req coRequestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ownerID, _, status, err := h.requestMeta(kind, uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	if ownerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can add co-requestors"})
		return
	}
	if status == domain.RequestStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "request already completed"})
		return
	}
	if err := h.requests.AddCoRequestor(kind, uint(id), req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type questionRequest struct {
	Body       string `json:"body" binding:"required"`
	AnswerToID *uint  `json:"answer_to_id"`
}

func (h *RequestHandler) PostRideQuestion(c *gin.Context)  { h.postQuestion(c, domain.RequestKindRide) }
func (h *RequestHandler) PostFavorQuestion(c *gin.Context) { h.postQuestion(c, domain.RequestKindFavor) }

// postQuestion handles both questions and answers (AnswerToID set).
// Q&A notifications keep flowing while a request is claimed; they stop
// once it is completed.
func (h *RequestHandler) postQuestion(c *gin.Context, kind string) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	_, subject, status, err := h.requestMeta(kind, uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	actorID := middleware.GetUserID(c)
	q := &models.Question{
		RequestKind: kind,
		RequestID:   uint(id),
		AuthorID:    actorID,
		Body:        req.Body,
		AnswerToID:  req.AnswerToID,
	}
	if err := h.requests.CreateQuestion(q); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	if status != domain.RequestStatusCompleted {
		evKind := service.EventQuestionPosted
		if req.AnswerToID != nil {
			evKind = service.EventAnswerPosted
		}
		h.dispatch(service.DomainEvent{
			Kind:        evKind,
			ActorID:     actorID,
			ActorName:   h.actorName(actorID),
			RequestKind: kind,
			RequestID:   uint(id),
			Subject:     subject,
			Preview:     preview(req.Body),
		})
	}
	c.JSON(http.StatusCreated, gin.H{"question": q})
}

func (h *RequestHandler) ListQuestions(c *gin.Context) {
	kind := c.Param("kind")
	if kind != domain.RequestKindRide && kind != domain.RequestKindFavor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request kind"})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	list, err := h.requests.ListQuestions(kind, uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": list})
}

func (h *RequestHandler) requestMeta(kind string, id uint) (ownerID uint, subject, status string, err error) {
	if kind == domain.RequestKindRide {
		ride, e := h.requests.GetRide(id)
		if e != nil {
			return 0, "", "", e
		}
		return ride.OwnerID, rideSubject(ride), ride.Status, nil
	}
	favor, e := h.requests.GetFavor(id)
	if e != nil {
		return 0, "", "", e
	}
	return favor.OwnerID, favor.Title, favor.Status, nil
}

func (h *RequestHandler) dispatch(ev service.DomainEvent) {
	if err := h.fanout.Dispatch(ev); err != nil {
		log.Printf("[FANOUT] %s: %v", ev.Kind, err)
	}
}

func (h *RequestHandler) actorName(id uint) string {
	u, err := h.users.GetByID(id)
	if err != nil {
		return "Someone"
	}
	return u.Name
}

func rideSubject(r *models.Ride) string {
	return "Ride from " + r.Origin + " to " + r.Destination
}

// preview truncates a message body for notification text, cutting on a
// rune boundary so multibyte characters never get split.
func preview(body string) string {
	const max = 120
	if len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "…"
}
