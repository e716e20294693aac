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

type BoardHandler struct {
	board  *repository.BoardRepository
	users  *repository.UserRepository
	fanout *service.Fanout
	hub    *ws.Hub
}

func NewBoardHandler(board *repository.BoardRepository, users *repository.UserRepository,
	fanout *service.Fanout, hub *ws.Hub) *BoardHandler {
	return &BoardHandler{board: board, users: users, fanout: fanout, hub: hub}
}

type createPostRequest struct {
	Title string `json:"title" binding:"required,max=255"`
	Body  string `json:"body"`
}

func (h *BoardHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actorID := middleware.GetUserID(c)
	post := &models.BoardPost{AuthorID: actorID, Title: req.Title, Body: req.Body}
	if err := h.board.CreatePost(post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:      service.EventBoardPostCreated,
		ActorID:   actorID,
		ActorName: h.actorName(actorID),
		PostID:    post.ID,
		Subject:   post.Title,
	})
	h.hub.PublishChange("board_post", "insert", post)
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *BoardHandler) ListPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.board.ListPosts(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": list})
}

func (h *BoardHandler) GetPost(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	post, err := h.board.GetPost(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	comments, err := h.board.ListComments(post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "comments": comments})
}

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *BoardHandler) CreateComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	post, err := h.board.GetPost(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	actorID := middleware.GetUserID(c)
	comment := &models.BoardComment{PostID: post.ID, AuthorID: actorID, Body: req.Body}
	if err := h.board.CreateComment(comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:         service.EventBoardCommentCreated,
		ActorID:      actorID,
		ActorName:    h.actorName(actorID),
		PostID:       post.ID,
		PostAuthorID: post.AuthorID,
		Subject:      post.Title,
		Preview:      preview(req.Body),
	})
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

type voteRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1"`
}

// Vote records an up or down vote. Only upvotes notify; downvotes stay
// silent.
func (h *BoardHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	post, err := h.board.GetPost(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	actorID := middleware.GetUserID(c)
	vote := &models.BoardVote{PostID: post.ID, UserID: actorID, Value: req.Value}
	if err := h.board.UpsertVote(vote); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "vote failed"})
		return
	}
	h.dispatch(service.DomainEvent{
		Kind:         service.EventBoardVoted,
		ActorID:      actorID,
		ActorName:    h.actorName(actorID),
		PostID:       post.ID,
		PostAuthorID: post.AuthorID,
		VoteValue:    req.Value,
		Subject:      post.Title,
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *BoardHandler) dispatch(ev service.DomainEvent) {
	if err := h.fanout.Dispatch(ev); err != nil {
		log.Printf("[FANOUT] %s: %v", ev.Kind, err)
	}
}

func (h *BoardHandler) actorName(id uint) string {
	u, err := h.users.GetByID(id)
	if err != nil {
		return "Someone"
	}
	return u.Name
}
