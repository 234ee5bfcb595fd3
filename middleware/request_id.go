package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const REQUEST_ID_HEADER = "X-Request-ID"
const REQUEST_ID_KEY = "RequestID"

// RequestID reaproveita o X-Request-ID do cliente ou gera um novo.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(REQUEST_ID_HEADER)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(REQUEST_ID_KEY, rid)
		c.Header(REQUEST_ID_HEADER, rid)
		c.Next()
	}
}
