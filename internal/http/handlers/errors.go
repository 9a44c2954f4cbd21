package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avoren/go-messenger-backend/internal/services"
)

// failFromErr translates a service error into the standard error envelope.
// Unrecognized errors become an opaque 500 so internals never leak to clients.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidUsername):
		fail(c, http.StatusBadRequest, "invalid_username", err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		fail(c, http.StatusConflict, "username_taken", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, services.ErrUnknownUser):
		fail(c, http.StatusNotFound, "unknown_user", err.Error())
	case errors.Is(err, services.ErrSelfMessage):
		fail(c, http.StatusBadRequest, "self_message", err.Error())
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusRequestEntityTooLarge, "message_too_long", err.Error())
	case errors.Is(err, services.ErrNotMember):
		fail(c, http.StatusForbidden, "not_member", err.Error())
	case errors.Is(err, services.ErrBadRoomKey):
		fail(c, http.StatusBadRequest, "bad_room_key", err.Error())
	case errors.Is(err, services.ErrEmptyPublicKey):
		fail(c, http.StatusBadRequest, "empty_public_key", err.Error())
	default:
		log.Error().Err(err).Str("request_id", requestID(c)).Msg("handler error")
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
