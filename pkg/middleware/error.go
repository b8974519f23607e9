package middleware

import (
	"errors"
	"net/http"

	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error pushed with c.Error. Causes wrapped in a
// BaseError are logged, never written to the response.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		log := logger.FromContext(c.Request.Context()).With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
		)

		var be errutil.BaseError
		if !errors.As(last.Err, &be) {
			log.Error("unhandled error", zap.Error(last.Err))
			be = errutil.BaseError{Code: errutil.StatusInternal, Message: "internal server error"}
		}

		status := be.Code.HTTPStatus()
		if status >= http.StatusInternalServerError {
			log.Error("request failed", zap.String("code", string(be.Code)), zap.Error(be))
		} else {
			log.Debug("request rejected", zap.String("code", string(be.Code)), zap.Error(be))
		}

		c.AbortWithStatusJSON(status, be.JSON())
	}
}
