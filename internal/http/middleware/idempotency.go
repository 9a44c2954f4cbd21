package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HeaderIdempotencyKey is the request header carrying the client's retry key.
const HeaderIdempotencyKey = "Idempotency-Key"

// ctxKeyRateBypass marks a request as an idempotent replay so the rate
// limiter lets it through without consuming tokens.
const ctxKeyRateBypass = "rateBypass"

// ClaimFunc atomically claims an idempotency key for its TTL and reports
// whether this request was the first to use it. The production
// implementation is backed by the chat state store's SetNX.
type ClaimFunc func(ctx context.Context, scope, key string, ttl time.Duration) (bool, error)

// IdempotencyValidator makes mutating requests safely retryable. Clients may
// attach an Idempotency-Key header (a UUID) to POST and DELETE requests; a
// key seen before within the TTL short-circuits the handler and answers 200
// with a duplicate marker instead of repeating the side effect. Requests
// without the header pass through untouched.
//
// The claim is keyed by method and route, so the same UUID can be reused
// across different endpoints without collisions.
func IdempotencyValidator(claim ClaimFunc, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if _, err := uuid.Parse(key); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "invalid_idempotency_key",
				"message":    "Idempotency-Key must be a UUID",
			})
			return
		}

		scope := c.Request.Method + " " + c.FullPath()
		first, err := claim(c.Request.Context(), scope, key, ttl)
		if err != nil {
			// The store being down must not block writes; log and continue.
			log.Error().Err(err).Str("scope", scope).Msg("idempotency claim failed")
			c.Next()
			return
		}
		if !first {
			c.Set(ctxKeyRateBypass, true)
			c.AbortWithStatusJSON(http.StatusOK, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"status":     "duplicate",
			})
			return
		}
		c.Next()
	}
}
