package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/middleware"
	"staybook/internal/infra/security"
)

// IdentityMiddleware verifies bearer tokens and attaches the caller to the
// request context. Requests without a token pass through anonymously; the
// command bus decides whether the operation needs an actor.
type IdentityMiddleware struct {
	Verifier *security.TokenVerifier
	Logger   *slog.Logger
}

func (m IdentityMiddleware) Handle(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" || m.Verifier == nil {
		c.Next()
		return
	}
	id, err := m.Verifier.FromHeader(header)
	if err != nil {
		if m.Logger != nil {
			m.Logger.DebugContext(c.Request.Context(), "token rejected", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid bearer token", Code: "unauthenticated"})
		return
	}
	ctx := middleware.WithActor(c.Request.Context(), middleware.Actor{ID: id.UserID, Role: id.Role})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// actorID returns the verified caller id, or "" for anonymous requests.
func actorID(c *gin.Context) string {
	actor, ok := middleware.ActorFrom(c.Request.Context())
	if !ok {
		return ""
	}
	return actor.ID
}
