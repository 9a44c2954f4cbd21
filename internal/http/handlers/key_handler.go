package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avoren/go-messenger-backend/internal/services"
)

// KeyHandler stores and serves the public keys clients use for end-to-end
// encryption. The server never inspects key material.
type KeyHandler struct {
	messages *services.MessageService
}

// NewKeyHandler builds a KeyHandler.
func NewKeyHandler(messages *services.MessageService) *KeyHandler {
	return &KeyHandler{messages: messages}
}

// SetKeyRequest is the body of POST /public-key.
type SetKeyRequest struct {
	Username  string `json:"username" binding:"required"`
	PublicKey string `json:"publicKey" binding:"required"`
}

// SetKey godoc
// @ID          setPublicKey
// @Summary     Upload a public key
// @Description Stores or replaces the user's public key.
// @Tags        Keys
// @Accept      json
//
// @Param       body  body  handlers.SetKeyRequest  true  "Owner and key material"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad body"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /public-key [post]
func (h *KeyHandler) SetKey(c *gin.Context) {
	var req SetKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "username and publicKey are required")
		return
	}
	if err := h.messages.SetPublicKey(c.Request.Context(), req.Username, req.PublicKey); err != nil {
		failFromErr(c, err)
		return
	}
	noContent(c)
}

// GetKey godoc
// @ID          getPublicKey
// @Summary     Fetch a public key
// @Description Returns the user's stored public key. A registered user
// @Description without an uploaded key yields an empty publicKey, not an error.
// @Tags        Keys
// @Produce     json
//
// @Param       username  path  string  true  "Key owner"
//
// @Success     200  {object}  map[string]string
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /public-key/{username} [get]
func (h *KeyHandler) GetKey(c *gin.Context) {
	username := c.Param("username")
	key, err := h.messages.GetPublicKey(c.Request.Context(), username)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"username": username, "publicKey": key})
}
