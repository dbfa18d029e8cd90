package middleware

import (
	"context"
	"strings"

	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader    = "X-Trace-Id"
	requestIDHeader  = "X-Request-Id"
	operatorIDHeader = "X-Operator-Id"

	traceIDContextKey    = "trace_id"
	requestIDContextKey  = "request_id"
	operatorIDContextKey = "operator_id"
)

// TraceContextConfig controls how the operator id header is handled. Trace
// and request ids are always generated when absent.
type TraceContextConfig struct {
	AllowOperatorIDHeader bool
	WriteOperatorIDHeader bool
}

// TraceContextMiddleware ensures trace/request/operator id are in context and
// response headers.
func TraceContextMiddleware() gin.HandlerFunc {
	return TraceContextMiddlewareWithConfig(TraceContextConfig{
		AllowOperatorIDHeader: true,
		WriteOperatorIDHeader: true,
	})
}

// TraceContextMiddlewareWithConfig is the configurable version of TraceContextMiddleware.
func TraceContextMiddlewareWithConfig(cfg TraceContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceIDContextKey, traceID)
		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(traceIDHeader, traceID)

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDContextKey, requestID)
		ctx = context.WithValue(c.Request.Context(), contextkey.RequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(requestIDHeader, requestID)

		if cfg.AllowOperatorIDHeader {
			operatorID := strings.TrimSpace(c.GetHeader(operatorIDHeader))
			if operatorID != "" {
				c.Set(operatorIDContextKey, operatorID)
				ctx = context.WithValue(c.Request.Context(), contextkey.OperatorID, operatorID)
				c.Request = c.Request.WithContext(ctx)
				if cfg.WriteOperatorIDHeader {
					c.Writer.Header().Set(operatorIDHeader, operatorID)
				}
			}
		}

		c.Next()
	}
}
