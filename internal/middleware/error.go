package middleware

import (
	"github.com/GoPolymarket/apilogs/internal/pkg/apperrors"
	"github.com/GoPolymarket/apilogs/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last c.Error as an AppError body; any other
// error is reported as INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperrors.Wrap(c.Errors.Last().Err)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logFields := []any{
			"method", c.Request.Method,
			"route", route,
			"code", appErr.Type,
		}
		if id := CorrelationID(c); id != "" {
			logFields = append(logFields, "correlation_id", id)
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "admin request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr)
	}
}
