package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avoren/go-messenger-backend/internal/services"
	"github.com/avoren/go-messenger-backend/internal/utils"
)

// MessageHandler serves message history and the HTTP send fallback for
// clients without a live websocket.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// History godoc
// @ID          getMessageHistory
// @Summary     Paginated room history
// @Description Returns the room's messages oldest first. The requester must
// @Description be one of the two room members.
// @Tags        Messages
// @Produce     json
//
// @Param       room       path   string  true   "Room key"
// @Param       user       query  string  true   "Requesting member"
// @Param       page       query  int     false  "Page number"  default(1)
// @Param       page_size  query  int     false  "Messages per page"  default(50)
//
// @Success     200  {object}  map[string]interface{}
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user"
// @Failure     403  {object}  handlers.ErrorResponse  "Requester not a member"
// @Router      /messages/{room} [get]
func (h *MessageHandler) History(c *gin.Context) {
	room := c.Param("room")
	user := c.Query("user")
	if user == "" {
		fail(c, http.StatusBadRequest, "missing_user", "query parameter user is required")
		return
	}
	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 50)

	msgs, total, err := h.messages.History(c.Request.Context(), user, room, page, pageSize)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"messages":  msgs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SendRequest is the body of POST /messages.
type SendRequest struct {
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Send godoc
// @ID          sendMessage
// @Summary     Relay one message over HTTP
// @Description Persists the message and attempts delivery to a live recipient
// @Description session, exactly as for websocket sends.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SendRequest  true  "Sender, recipient, and text"
//
// @Success     201  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse  "Self send, blank or oversized text"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown sender or recipient"
// @Router      /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "from, to, and message are required")
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), req.From, req.To, req.Message)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, msg)
}
