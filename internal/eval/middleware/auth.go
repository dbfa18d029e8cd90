package middleware

import (
	"context"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/contextkey"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Auth validates the bearer token and stores the operator identity on the
// request context. With roles given, the operator role must match one of them.
func Auth(authService *service.AuthService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			response.AbortWithErrorCode(c, appErr.ServiceUnavailable, "auth service unavailable")
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		info, err := authService.Authenticate(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		if len(roles) > 0 && !hasRole(info.Role, roles) {
			response.AbortWithErrorCode(c, appErr.Forbidden, "insufficient role")
			return
		}

		c.Set("operator", info.Username)
		c.Set("operator_role", info.Role)
		ctx := context.WithValue(c.Request.Context(), contextkey.OperatorID, info.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasRole(role string, allowed []string) bool {
	for _, item := range allowed {
		if strings.EqualFold(role, item) {
			return true
		}
	}
	return false
}
