package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/estate-chat/internal/common"
)

const requestIDHeader = "X-Request-ID"

// RequestID reuses an inbound X-Request-ID or mints a ULID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 64 {
			id, err := common.NewULID()
			if err == nil {
				rid = id
			}
		}
		c.Set(RequestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
