package auth

import (
	"log/slog"
	"net/http"
	"strings"

	coreErrors "github.com/dmphub-lab/dmphub/internal/core/errors"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/gin-gonic/gin"
)

const identityKey = "dmphub.caller_identity"

// Middleware verifies an optional bearer token. Requests without an
// Authorization header pass through anonymously; a malformed or invalid
// token is rejected with 401.
func Middleware(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, "Authorization header must be 'Bearer <token>'")
			return
		}

		id, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			slog.Debug("[Auth] Token rejected", "error", err)
			abort(c, err.Error())
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// Identity returns the verified caller identity, or nil for anonymous requests.
func Identity(c *gin.Context) *provenance.CallerIdentity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*provenance.CallerIdentity)
	return id
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, coreErrors.ErrorResponse{
		ErrorType: coreErrors.HttpUnauthorizedError,
		Message:   msg,
	})
}
