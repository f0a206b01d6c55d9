package common

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// Error codes surfaced on the wire. Every downstream failure is mapped to
// exactly one of these at the request boundary.
const (
	CodeValidation         = "VALIDATION"
	CodeRateLimit          = "RATE_LIMIT"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeServerError        = "SERVER_ERROR"
)

// Fail writes the error envelope. msg must already be safe for the browser;
// internal error text never goes through here.
func Fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"error": msg,
		"code":  code,
	})
}

func NewULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
