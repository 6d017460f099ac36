package voice_auth_routers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CallIDHeader is the correlation header echoed on every response.
const CallIDHeader = "X-Call-ID"

const callIDKey = "call_id"

// CallID propagates the caller's correlation id, minting one when absent.
func CallID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CallIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(callIDKey, id)
		c.Writer.Header().Set(CallIDHeader, id)
		c.Next()
	}
}

// GetCallID returns the request's correlation id.
func GetCallID(c *gin.Context) string {
	return c.GetString(callIDKey)
}
