package response

import (
	"net/http"

	"github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/contextkey"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint returns. Code and Message are
// always present; Kind names the failure taxonomy entry when one applies.
type Response struct {
	Code    errors.ErrorCode `json:"code"`
	Kind    string           `json:"kind,omitempty"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Details interface{}      `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

func send(c *gin.Context, status int, resp Response) {
	resp.TraceID = getTraceID(c)
	c.JSON(status, resp)
}

// Success sends a 200 response carrying data.
func Success(c *gin.Context, data interface{}) {
	send(c, http.StatusOK, Response{
		Code:    errors.Success,
		Message: "Success",
		Data:    data,
	})
}

// Accepted sends a 202 response for asynchronously started work.
func Accepted(c *gin.Context, data interface{}) {
	send(c, http.StatusAccepted, Response{
		Code:    errors.Success,
		Message: "Accepted",
		Data:    data,
	})
}

// Error sends the response mapped from err: its code picks the HTTP status
// and kind label, its details ride along in the envelope. The full error,
// including the stack, goes to the server log only.
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.Any("details", customErr.Details),
		zap.String("stack", customErr.Stack),
	)

	send(c, customErr.Code.HTTPStatus(), Response{
		Code:    customErr.Code,
		Kind:    customErr.Kind(),
		Message: customErr.Error(),
		Details: customErr.Details,
	})
}

// ErrorWithCode sends an error response for code without allocating an
// error value, falling back to the code's default message.
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(code)),
		zap.String("message", message),
	)

	send(c, code.HTTPStatus(), Response{
		Code:    code,
		Kind:    code.Kind(),
		Message: message,
	})
}

// BadRequest sends a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.InvalidParams, message)
}

// AbortWithError sends the error response and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// AbortWithErrorCode sends an error response for code and stops the handler
// chain.
func AbortWithErrorCode(c *gin.Context, code errors.ErrorCode, message string) {
	ErrorWithCode(c, code, message)
	c.Abort()
}

// getTraceID reads the trace id placed by the trace middleware, checking the
// gin key first and the request context second.
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	if traceID := c.Request.Context().Value(contextkey.TraceID); traceID != nil {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	return ""
}
