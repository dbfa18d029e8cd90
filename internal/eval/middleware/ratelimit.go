package middleware

import (
	"fmt"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitPolicy bounds request counts inside a fixed window.
type RateLimitPolicy struct {
	Window      time.Duration
	IPMax       int
	OperatorMax int
}

// RateLimit enforces per-IP and per-operator limits for one route. A nil rate
// service disables limiting, so the API stays usable without Redis.
func RateLimit(rateService *service.RateLimitService, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil {
			c.Next()
			return
		}

		if policy.IPMax > 0 {
			key := fmt.Sprintf("eval:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := rateService.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		if policy.OperatorMax > 0 {
			if operator, ok := c.Get("operator"); ok {
				key := fmt.Sprintf("eval:rate:op:%v:%s", operator, routeKey)
				if err := rateService.Allow(c.Request.Context(), key, policy.OperatorMax, policy.Window); err != nil {
					response.AbortWithError(c, err)
					return
				}
			}
		}

		c.Next()
	}
}
