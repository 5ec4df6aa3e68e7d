package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"certforge/internal/issuance"
)

// ValidationHandler serves the public, unauthenticated certificate lookup.
type ValidationHandler struct {
	lookup        *issuance.Lookup
	redis         redis.UniversalClient
	ratePerMinute int
}

// NewValidationHandler constructs a ValidationHandler.
func NewValidationHandler(lookup *issuance.Lookup, redisClient redis.UniversalClient, ratePerMinute int) *ValidationHandler {
	return &ValidationHandler{
		lookup:        lookup,
		redis:         redisClient,
		ratePerMinute: ratePerMinute,
	}
}

// GET /v1/validate/:token
// Every failure collapses into one uniform invalid result so the endpoint
// never reveals which tokens or templates exist.
func (h *ValidationHandler) Validate(c *gin.Context) {
	if h.ratePerMinute > 0 && h.redis != nil {
		rateKey := "rate:validate:" + c.ClientIP() + ":" + time.Now().UTC().Format("200601021504")
		count, err := incrWithTTL(c.Request.Context(), h.redis, rateKey, time.Minute)
		if err == nil && count > int64(h.ratePerMinute) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
	}

	view, err := h.lookup.Find(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, view)
}
