package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
)

const detailKey = "error_detail"

// ErrorDetail controls whether internal error messages reach clients.
func ErrorDetail(detailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(detailKey, detailed)
		c.Next()
	}
}

// Fail classifies err and aborts with the failure envelope.
func Fail(c *gin.Context, err error) {
	appErr := apperror.From(err)
	if appErr.Code == apperror.CodeInternal {
		logutils.Log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), gin.H{
		"success":   false,
		"message":   appErr.PublicMessage(c.GetBool(detailKey)),
		"code":      appErr.Code,
		"retryable": appErr.Code.Retryable(),
		"timestamp": time.Now().UTC(),
	})
}
