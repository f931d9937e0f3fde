package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Deadline attaches a deadline to the request context. Repository calls
// inherit it, and services map the resulting DeadlineExceeded to a 503.
func Deadline(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
