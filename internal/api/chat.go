package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/noTilt3/SMARKETECH/internal/apperr"
	"github.com/noTilt3/SMARKETECH/internal/chat"
	"github.com/noTilt3/SMARKETECH/internal/middleware"
	"go.uber.org/zap"
)

// ChatHandler serves the contact and message endpoints. All of them run
// behind AuthMiddleware, so the caller's id always comes from the JWT —
// never from the request body.
type ChatHandler struct {
	service *chat.Service
	logger  *zap.Logger
}

func NewChatHandler(service *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// fail maps a service error to its HTTP status. Coded errors keep their
// message; anything else is an internal error the client gets a generic
// line for.
func (h *ChatHandler) fail(c *gin.Context, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("chat handler failure", zap.String("op", op), zap.Error(err))
		c.JSON(status, gin.H{"error": op + " failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ListContacts handles GET /api/chat/contatos.
func (h *ChatHandler) ListContacts(c *gin.Context) {
	userID := middleware.GetUserID(c)

	contacts, err := h.service.ListContacts(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "list contacts", err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

type addContactRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AddContact handles POST /api/chat/contatos.
func (h *ChatHandler) AddContact(c *gin.Context) {
	var req addContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.GetUserID(c)

	added, err := h.service.AddContact(c.Request.Context(), userID, req.Email)
	if err != nil {
		h.fail(c, "add contact", err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// ListMessages handles GET /api/chat/mensagens?userId=N — the full
// conversation between the caller and the given user, oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	otherID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || otherID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	userID := middleware.GetUserID(c)

	messages, err := h.service.ListConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		h.fail(c, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type sendMessageRequest struct {
	ToUserID int64  `json:"toUserId" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// SendMessage handles POST /api/chat/mensagens. The response only
// confirms persistence; whether the live push reached anyone is invisible
// to the sender by design.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.GetUserID(c)

	msg, err := h.service.SendMessage(c.Request.Context(), userID, req.ToUserID, req.Content)
	if err != nil {
		h.fail(c, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"ok":         true,
		"id":         msg.ID,
		"created_at": msg.CreatedAt,
	})
}

type latestResponse struct {
	LatestTS *time.Time `json:"latestTs"`
}

// Latest handles GET /api/chat/latest — the cheap unread-activity probe
// polling clients hit on a timer. Returns null when the caller has never
// received a message.
func (h *ChatHandler) Latest(c *gin.Context) {
	userID := middleware.GetUserID(c)

	ts, err := h.service.LatestTimestamp(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "latest timestamp", err)
		return
	}
	c.JSON(http.StatusOK, latestResponse{LatestTS: ts})
}
