package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/service"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
	"github.com/ams-platform/attendance-api/pkg/response"
)

// ContextUserKey is the gin context key storing login token claims.
const ContextUserKey = "currentUser"

// FingerprintHeader is the client header carried into login tokens and
// re-checked on every protected call.
const FingerprintHeader = "User-Agent"

// Auth protects routes by requiring a valid login token whose device
// fingerprint matches the caller. A missing or invalid token is 401; a valid
// token presented from a different device is 403.
func Auth(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "no token provided"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.VerifyLoginToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if claims.Fingerprint != c.GetHeader(FingerprintHeader) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "you are not allowed"))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Claims returns the login claims stored by Auth.
func Claims(c *gin.Context) (*models.LoginClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.LoginClaims)
	return claims, ok
}
