package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Error carries a stable code plus request-scoped context. Code drives the
// HTTP status mapping and the kind label; Details and Stack feed the server
// log and the response envelope, never the client message.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the stable taxonomy name for this error's code.
func (e *Error) Kind() string {
	return e.Code.Kind()
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     cause,
		Stack:   callStack(3),
	}
}

// New creates an Error carrying code's default message.
func New(code ErrorCode) *Error {
	return newError(code, code.Message(), nil)
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code to err. A plain error becomes the cause; an Error is
// returned as-is with its code replaced, keeping its details and stack.
// Wrapping nil stays nil.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.Code = code
		return e
	}
	return newError(code, err.Error(), err)
}

// Wrapf attaches code and a formatted message to err. Unlike Wrap it always
// allocates, so an Error cause keeps its original code for the chain.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(code, fmt.Sprintf(format, args...), err)
}

// WithMessage replaces the client-facing message.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithMessagef replaces the client-facing message with a formatted one.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithDetail attaches one key-value pair of context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails attaches a batch of context values.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// GetCode finds the code anywhere in err's chain. nil maps to Success and an
// uncoded error to InternalServerError, so any error can be classified
// without a check first.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalServerError
}

// GetError finds the Error anywhere in err's chain, wrapping uncoded errors
// as InternalServerError.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, InternalServerError)
}

// Is reports whether err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}

// callStack renders the non-runtime frames above skip, one per line.
func callStack(skip int) string {
	var pcs [10]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// Shorthand constructors for the codes handlers raise most.

// BadRequest creates an InvalidParams error with a custom message.
func BadRequest(msg string) *Error {
	return New(InvalidParams).WithMessage(msg)
}

// NotFoundError creates a NotFound error naming the missing resource.
func NotFoundError(resource string) *Error {
	return Newf(NotFound, "%s not found", resource)
}

// UnauthorizedError creates an Unauthorized error, keeping the default
// message when msg is empty.
func UnauthorizedError(msg string) *Error {
	if msg == "" {
		return New(Unauthorized)
	}
	return New(Unauthorized).WithMessage(msg)
}

// InternalError wraps err as InternalServerError, tolerating nil.
func InternalError(err error) *Error {
	if err == nil {
		return New(InternalServerError)
	}
	return Wrap(err, InternalServerError)
}

// ValidationError creates a ValidationFailed error recording the offending
// field and why it was rejected.
func ValidationError(field, reason string) *Error {
	return New(ValidationFailed).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// TimeoutError creates an execution timeout error for one test case.
func TimeoutError(testCaseID string, limitMs int64) *Error {
	return New(ExecutionTimeout).
		WithDetail("test_case_id", testCaseID).
		WithDetail("limit_ms", limitMs)
}

// EntryPointError creates an entry point lookup failure for a solution.
func EntryPointError(language, reason string) *Error {
	return New(EntryPointNotFound).
		WithDetail("language", language).
		WithDetail("reason", reason)
}
