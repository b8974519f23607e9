package middleware

import (
	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const PrincipalKey = "principal"

// Authenticate verifies the bearer token and stores the principal on both
// the gin context and the request context.
func Authenticate(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := v.Verify(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(PrincipalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// Authorize checks the route pattern against the access policy. It must run
// after Authenticate.
func Authorize(e *auth.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromContext(c.Request.Context())
		if !ok {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		if !e.Allow(p.Role, c.Request.URL.Path, c.Request.Method) {
			_ = c.Error(errutil.Forbidden("insufficient role", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
