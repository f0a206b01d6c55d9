package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plonguo/portfolio-api/internal/common"
	"github.com/plonguo/portfolio-api/internal/guard"
)

const RequestIDKey = "request_id"

// RequestID tags every request with a ULID for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			if generated, err := common.NewULID(); err == nil {
				id = generated
			}
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// Recovery converts panics into the SERVER_ERROR envelope instead of
// leaking stack details to the wire.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic path=%s err=%v", c.Request.URL.Path, r)
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError,
						common.CodeServerError, "Something went wrong. Please try again.")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// OriginGate validates the declared Origin and answers preflight requests
// generically. requireOrigin makes an absent Origin a rejection (the chat
// endpoint); the commits endpoint tolerates origin-less callers.
func OriginGate(allowed []string, methods string, requireOrigin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// Preflight bypasses the allow-list and is answered generically.
		if c.Request.Method == http.MethodOptions {
			setCORSHeaders(c, origin, methods)
			c.AbortWithStatus(http.StatusOK)
			return
		}

		if origin == "" && !requireOrigin {
			c.Next()
			return
		}
		if !guard.OriginAllowed(origin, allowed) {
			common.Fail(c, http.StatusForbidden, common.CodeValidation, "Forbidden")
			c.Abort()
			return
		}

		setCORSHeaders(c, origin, methods)
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin, methods string) {
	if origin == "" {
		origin = "*"
	}
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}
