package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// principalCtxKey is the Gin context key used to store the authenticated caller.
const principalCtxKey = "principal"

// Authenticator establishes the caller's principal from either an X-API-Key
// header or an HS256 bearer token. Authorization is not its concern.
type Authenticator struct {
	keys   map[string]string
	jwt    *TokenVerifier
	logger *slog.Logger
}

// NewAuthenticator maps API keys to principals. An empty jwtSecret disables
// bearer tokens.
func NewAuthenticator(keys map[string]string, jwtSecret string, logger *slog.Logger) *Authenticator {
	a := &Authenticator{
		keys:   keys,
		logger: logger.With("component", "auth"),
	}
	if jwtSecret != "" {
		a.jwt = NewTokenVerifier([]byte(jwtSecret))
	}
	return a
}

// Middleware rejects requests without a valid credential with 401.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := a.authenticate(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(principalCtxKey, principal)
		c.Next()
	}
}

func (a *Authenticator) authenticate(r *http.Request) (string, bool) {
	if apiKey := strings.TrimSpace(r.Header.Get("X-API-Key")); apiKey != "" {
		principal, ok := a.keys[apiKey]
		return principal, ok
	}

	if a.jwt == nil {
		return "", false
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	principal, err := a.jwt.Verify(strings.TrimSpace(token))
	if err != nil {
		a.logger.Debug("bearer token rejected", "error", err, "remote_addr", r.RemoteAddr)
		return "", false
	}
	return principal, true
}

// Principal returns the authenticated caller from the request context.
func Principal(c *gin.Context) string {
	return c.GetString(principalCtxKey)
}
