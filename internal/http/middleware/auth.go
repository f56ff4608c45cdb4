package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/carecall-backend/internal/http/response"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/services"
)

type AuthMiddleware struct {
	log  *logger.Logger
	auth services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, auth services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), auth: auth}
}

// RequireRole admits a request only when its bearer token names an actor
// holding one of roles. Missing or bad tokens get 401, other roles 403.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, actor, ok := am.authenticate(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		if !lo.Contains(roles, actor.Role) {
			am.log.Debug("Role not allowed", "user_id", actor.UserID, "role", actor.Role, "route", c.FullPath())
			response.Abort(c, http.StatusForbidden, "forbidden", "Forbidden")
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) authenticate(c *gin.Context) (context.Context, *ctxutil.RequestData, bool) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		return nil, nil, false
	}
	ctx, err := am.auth.SetContextFromToken(c.Request.Context(), token)
	if err != nil {
		am.log.Debug("Token rejected", "error", err)
		return nil, nil, false
	}
	actor := ctxutil.GetRequestData(ctx)
	if actor == nil || actor.UserID == uuid.Nil {
		return nil, nil, false
	}
	return ctx, actor, true
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
