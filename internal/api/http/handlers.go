package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/circlehq/circle-go/internal/community"
	"github.com/circlehq/circle-go/internal/infrastructure/resilience"
	"github.com/circlehq/circle-go/internal/platform"
	"github.com/circlehq/circle-go/internal/shared/validate"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	content       *community.Content
	messaging     *community.Messaging
	notifications *community.Notifications
	profiles      *community.Profiles
}

// NewHandlers creates a new handler set
func NewHandlers(
	content *community.Content,
	messaging *community.Messaging,
	notifications *community.Notifications,
	profiles *community.Profiles,
) *Handlers {
	return &Handlers{
		content:       content,
		messaging:     messaging,
		notifications: notifications,
		profiles:      profiles,
	}
}

// respondError maps service errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	var apiErr *platform.APIError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	case errors.Is(err, platform.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &apiErr):
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// pathID pulls a path parameter and rejects malformed identifiers before
// they reach a platform query. Returns "" after writing the response.
func pathID(c *gin.Context, param string) string {
	id := c.Param(param)
	if err := validate.ID(id, param); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return ""
	}
	return id
}

// Feed returns the most recent posts
func (h *Handlers) Feed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	posts, err := h.content.ListPosts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// GetPost returns a single post
func (h *Handlers) GetPost(c *gin.Context) {
	postID := pathID(c, "id")
	if postID == "" {
		return
	}

	post, err := h.content.GetPost(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a new post
func (h *Handlers) CreatePost(c *gin.Context) {
	var req struct {
		AuthorID string `json:"author_id" binding:"required"`
		Title    string `json:"title" binding:"required"`
		Body     string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.content.CreatePost(c.Request.Context(), req.AuthorID, req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListComments returns a post's comments
func (h *Handlers) ListComments(c *gin.Context) {
	postID := pathID(c, "id")
	if postID == "" {
		return
	}

	comments, err := h.content.ListComments(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// AddComment adds a comment to a post
func (h *Handlers) AddComment(c *gin.Context) {
	var req struct {
		AuthorID string `json:"author_id" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	postID := pathID(c, "id")
	if postID == "" {
		return
	}

	comment, err := h.content.AddComment(c.Request.Context(), postID, req.AuthorID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Like records a like on a post
func (h *Handlers) Like(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	postID := pathID(c, "id")
	if postID == "" {
		return
	}

	if err := h.content.Like(c.Request.Context(), postID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true})
}

// Unlike removes a like from a post
func (h *Handlers) Unlike(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	postID := pathID(c, "id")
	if postID == "" {
		return
	}

	if err := h.content.Unlike(c.Request.Context(), postID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false})
}

// ListConversations returns a user's conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	userID := pathID(c, "userId")
	if userID == "" {
		return
	}

	conversations, err := h.messaging.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// ListMessages returns a conversation's messages
func (h *Handlers) ListMessages(c *gin.Context) {
	convID := pathID(c, "id")
	if convID == "" {
		return
	}

	messages, err := h.messaging.ListMessages(c.Request.Context(), convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage posts a message to a conversation
func (h *Handlers) SendMessage(c *gin.Context) {
	var req struct {
		SenderID string `json:"sender_id" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	convID := pathID(c, "id")
	if convID == "" {
		return
	}

	msg, err := h.messaging.Send(c.Request.Context(), convID, req.SenderID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListNotifications returns a user's unseen notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	userID := pathID(c, "userId")
	if userID == "" {
		return
	}

	notifications, err := h.notifications.ListUnseen(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationsSeen marks notifications as seen
func (h *Handlers) MarkNotificationsSeen(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := pathID(c, "userId")
	if userID == "" {
		return
	}
	if err := validate.IDList(req.IDs, "ids"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifications.MarkSeen(c.Request.Context(), userID, req.IDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seen": len(req.IDs)})
}

// GetProfile returns a user's profile
func (h *Handlers) GetProfile(c *gin.Context) {
	userID := pathID(c, "userId")
	if userID == "" {
		return
	}

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile patches a user's profile
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := pathID(c, "userId")
	if userID == "" {
		return
	}
	if err := validate.ProfileFields(fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), userID, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListAchievements returns a user's achievements
func (h *Handlers) ListAchievements(c *gin.Context) {
	userID := pathID(c, "userId")
	if userID == "" {
		return
	}

	achievements, err := h.profiles.ListAchievements(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": achievements})
}

// ActivityFeed returns a user's recent activity
func (h *Handlers) ActivityFeed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	userID := pathID(c, "userId")
	if userID == "" {
		return
	}

	activity, err := h.profiles.ListActivity(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}
