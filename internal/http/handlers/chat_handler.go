package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avoren/go-messenger-backend/internal/services"
)

// ChatHandler serves the chat overview: partner lists and unread counters.
type ChatHandler struct {
	chats *services.ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// GetOverview godoc
// @ID          getChatOverview
// @Summary     Chat overview
// @Description Returns the user's partners and unread counters. Carries a
// @Description weak ETag; a matching If-None-Match is answered with 304.
// @Tags        Chats
// @Produce     json
//
// @Param       username       query   string  true   "Owner of the overview"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  services.Overview
// @Header      200  {string}  ETag  "Weak ETag for the current overview"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing username"
// @Router      /chats [get]
func (h *ChatHandler) GetOverview(c *gin.Context) {
	user := c.Query("username")
	if user == "" {
		fail(c, http.StatusBadRequest, "missing_username", "query parameter username is required")
		return
	}

	version, err := h.chats.OverviewVersion(c.Request.Context(), user)
	if err != nil {
		failFromErr(c, err)
		return
	}
	etag := fmt.Sprintf(`W/"%s"`, version)
	if c.GetHeader("If-None-Match") == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return
	}

	ov, err := h.chats.GetOverview(c.Request.Context(), user)
	if err != nil {
		failFromErr(c, err)
		return
	}
	c.Header("ETag", etag)
	ok(c, http.StatusOK, ov)
}

// LinkRequest is the body of POST /chats.
type LinkRequest struct {
	User1 string `json:"user1" binding:"required"`
	User2 string `json:"user2" binding:"required"`
}

// PairRequest names the requester and the partner for DELETE /chats and
// POST /chats/read.
type PairRequest struct {
	CurrentUser string `json:"currentUser" binding:"required"`
	OtherUser   string `json:"otherUser" binding:"required"`
}

// AddChat godoc
// @ID          addChat
// @Summary     Link two users as chat partners
// @Description Records the pair on both partner lists. Linking an already
// @Description linked pair succeeds without duplicating entries.
// @Tags        Chats
// @Accept      json
//
// @Param       body  body  handlers.LinkRequest  true  "The two users to link"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Self link or bad body"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown partner"
// @Router      /chats [post]
func (h *ChatHandler) AddChat(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "user1 and user2 are required")
		return
	}
	if err := h.chats.Link(c.Request.Context(), req.User1, req.User2); err != nil {
		failFromErr(c, err)
		return
	}
	noContent(c)
}

// RemoveChat godoc
// @ID          removeChat
// @Summary     Unlink two chat partners
// @Description Removes the pair from both partner lists and purges the shared
// @Description room history and both unread counters.
// @Tags        Chats
// @Accept      json
//
// @Param       body  body  handlers.PairRequest  true  "The pair to unlink"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Self unlink or bad body"
// @Router      /chats [delete]
func (h *ChatHandler) RemoveChat(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "currentUser and otherUser are required")
		return
	}
	if err := h.chats.Unlink(c.Request.Context(), req.CurrentUser, req.OtherUser); err != nil {
		failFromErr(c, err)
		return
	}
	noContent(c)
}

// MarkRead godoc
// @ID          markChatRead
// @Summary     Acknowledge a conversation as read
// @Description Clears currentUser's unread counter for otherUser.
// @Tags        Chats
// @Accept      json
//
// @Param       body  body  handlers.PairRequest  true  "Reader and partner"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad body"
// @Router      /chats/read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "currentUser and otherUser are required")
		return
	}
	if err := h.chats.MarkRead(c.Request.Context(), req.CurrentUser, req.OtherUser); err != nil {
		failFromErr(c, err)
		return
	}
	noContent(c)
}
