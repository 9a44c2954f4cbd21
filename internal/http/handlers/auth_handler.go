package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avoren/go-messenger-backend/internal/services"
	"github.com/avoren/go-messenger-backend/internal/utils"
)

// AuthHandler serves registration, login, and user search.
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// Register godoc
// @ID          registerUser
// @Summary     Register a new account
// @Description Creates an account with a hashed password and returns it.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid username or body"
// @Failure     409  {object}  handlers.ErrorResponse  "Username taken"
// @Router      /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "username and password are required")
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @ID          loginUser
// @Summary     Log in
// @Description Verifies the credentials and returns the account. Wrong
// @Description password and unknown user are both 401.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_body", "username and password are required")
		return
	}
	u, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// Search godoc
// @ID          searchUsers
// @Summary     Search usernames
// @Description Returns usernames containing the term, case-insensitively,
// @Description excluding the requester. An empty term yields an empty list.
// @Tags        Accounts
// @Produce     json
//
// @Param       term         query  string  true   "Substring to match"
// @Param       currentUser  query  string  false  "Requester, excluded from results"
// @Param       limit        query  int     false  "Maximum results"  default(20)
//
// @Success     200  {array}  string
// @Router      /search/users [get]
func (h *AuthHandler) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		ok(c, http.StatusOK, []string{})
		return
	}
	requester := c.Query("currentUser")
	limit := utils.AtoiDefault(c.Query("limit"), 20)

	users, err := h.accounts.Search(c.Request.Context(), term, requester, limit)
	if err != nil {
		failFromErr(c, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	ok(c, http.StatusOK, users)
}
