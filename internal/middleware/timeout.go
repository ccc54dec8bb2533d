package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

const DefaultRequestTimeout = 30 * time.Second

// Timeout bounds the request context. Store and AI calls observe the
// deadline; the handler itself keeps running on the request goroutine.
func Timeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
