package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Middleware rejects requests without a valid credential and stores the
// caller's user id in the gin context.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Verify(TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"HttpStatusCode": http.StatusUnauthorized,
				"ResponseBody":   nil,
				"IsSuccess":      false,
				"Message":        "Unauthorized",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
