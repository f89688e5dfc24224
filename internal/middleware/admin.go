package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/GoPolymarket/apilogs/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards the call-log inspection endpoints.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, apperrors.New(apperrors.ErrAuthFailed, "admin key not configured", nil))
			return
		}
		given := c.GetHeader(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.Auth.AdminKey)) != 1 {
			err := apperrors.New(apperrors.ErrAuthFailed, "invalid admin key", nil)
			c.AbortWithStatusJSON(err.HTTPStatus, err)
			return
		}
		c.Next()
	}
}
