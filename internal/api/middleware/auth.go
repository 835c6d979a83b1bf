package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/auth"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/pkg/errors"
)

const principalKey = "principal"

// TokenVerifier turns a bearer token into a principal
type TokenVerifier interface {
	ValidateAccessToken(token string) (*auth.Principal, error)
}

// ExtractToken reads the token from the Authorization header, falling back
// to the access_token cookie used by browsers.
func ExtractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware rejects requests without a valid token and stores the
// principal on the context.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			abortWithError(c, &errors.ErrUnauthorized{Message: "not authorized, no token"})
			return
		}

		principal, err := verifier.ValidateAccessToken(token)
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err))
			abortWithError(c, &errors.ErrUnauthorized{Message: "not authorized, token failed"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipalFromContext(c)
		if !ok {
			abortWithError(c, &errors.ErrUnauthorized{Message: "unauthorized"})
			return
		}
		if !principal.HasRole(roles...) {
			abortWithError(c, &errors.ErrForbidden{Message: "not authorized for this role"})
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatus(err), gin.H{"error": err.Error()})
}

// GetPrincipalFromContext returns the principal set by AuthMiddleware
func GetPrincipalFromContext(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	principal, ok := v.(*auth.Principal)
	return principal, ok
}

// SetPrincipal stores a principal on the context
func SetPrincipal(c *gin.Context, principal *auth.Principal) {
	c.Set(principalKey, principal)
}
