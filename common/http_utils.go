package common

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	apperrors "finco/txcoordinator/errors"
)

// RespondError writes the JSON error envelope for a coordinator error, with
// the HTTP status derived from its code class.
func RespondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	log.WithFields(log.Fields{"code": code, "path": c.FullPath()}).Error(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), ApiError{
		Status: false,
		Err: ErrorDetails{
			Type:    string(code),
			Message: err.Error(),
		},
	})
}

// RespondResult writes the JSON success envelope.
func RespondResult(c *gin.Context, status int, result interface{}) {
	c.JSON(status, ApiSuccess{
		Status: true,
		Result: result,
	})
}

// CORSMiddleware to apply server middleware for CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
