package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Assessment module errors
// 12000-12999: Solution module errors
// 13000-13999: Sandbox & Execution errors
// 14000-14999: Analysis module errors
// 15000-15999: Job module errors
// 16000-16999: Ranking & Report errors
// 17000-17999: Auth & Operator errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheSetFailed ErrorCode = 10201

	// Storage errors (10300-10399)
	StorageError        ErrorCode = 10300
	ObjectUploadFailed  ErrorCode = 10301
	ObjectNotFound      ErrorCode = 10302

	// Validation errors (10400-10499)
	ValidationFailed   ErrorCode = 10400
	InvalidFormat      ErrorCode = 10401
	RequiredFieldEmpty ErrorCode = 10402

	// ========== Assessment Module Errors (11000-11999) ==========

	AssessmentNotFound    ErrorCode = 11000
	AssessmentStoreFailed ErrorCode = 11001
	QuestionNotFound      ErrorCode = 11100
	TestCaseInvalid       ErrorCode = 11101
	TestCaseWeightInvalid ErrorCode = 11102

	// ========== Solution Module Errors (12000-12999) ==========

	SolutionNotFound    ErrorCode = 12000
	SolutionStoreFailed ErrorCode = 12001
	CodeTooLarge        ErrorCode = 12002
	CodeEmpty           ErrorCode = 12003

	// ========== Sandbox & Execution Errors (13000-13999) ==========

	// Harness (13000-13099)
	LanguageNotSupported  ErrorCode = 13000
	EntryPointNotFound    ErrorCode = 13001
	InvocationBuildFailed ErrorCode = 13002

	// Sandbox (13100-13199)
	SandboxUnavailable ErrorCode = 13100
	SandboxSystemError ErrorCode = 13101
	ExecutionTimeout   ErrorCode = 13102
	CompilationFailed  ErrorCode = 13103
	RuntimeFailure     ErrorCode = 13104
	MemoryExceeded     ErrorCode = 13105
	OutputExceeded     ErrorCode = 13106
	WorkspaceFailed    ErrorCode = 13107
	CleanupFailed      ErrorCode = 13108

	// ========== Analysis Module Errors (14000-14999) ==========

	AnalyzerFailure     ErrorCode = 14000
	PipelineFailed      ErrorCode = 14001
	AnalysisNotFound    ErrorCode = 14100
	AnalysisStoreFailed ErrorCode = 14101

	// ========== Job Module Errors (15000-15999) ==========

	JobNotFound           ErrorCode = 15000
	JobQueueFull          ErrorCode = 15001
	JobScopeInvalid       ErrorCode = 15002
	JobPreconditionFailed ErrorCode = 15003
	JobPartialFailure     ErrorCode = 15004
	JobAlreadyTerminal    ErrorCode = 15005

	// ========== Ranking & Report Errors (16000-16999) ==========

	RankingUnavailable ErrorCode = 16000
	NoAnalysesForTest  ErrorCode = 16001
	ReportNotFound     ErrorCode = 16100
	ReportBuildFailed  ErrorCode = 16101

	// ========== Auth & Operator Errors (17000-17999) ==========

	InvalidCredentials    ErrorCode = 17000
	TokenExpired          ErrorCode = 17001
	TokenInvalid          ErrorCode = 17002
	TokenGenerationFailed ErrorCode = 17003
	PermissionDenied      ErrorCode = 17100
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError:     "Cache operation failed",
	CacheSetFailed: "Failed to set cache",

	// Storage
	StorageError:       "Object storage operation failed",
	ObjectUploadFailed: "Failed to upload object",
	ObjectNotFound:     "Object not found in storage",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Assessment
	AssessmentNotFound:    "Assessment not found",
	AssessmentStoreFailed: "Failed to store assessment",
	QuestionNotFound:      "Question not found",
	TestCaseInvalid:       "Invalid test case",
	TestCaseWeightInvalid: "Test case weights must be positive",

	// Solution
	SolutionNotFound:    "Solution not found",
	SolutionStoreFailed: "Failed to store solution",
	CodeTooLarge:        "Submitted code is too large",
	CodeEmpty:           "Submitted code is empty",

	// Harness
	LanguageNotSupported:  "Programming language not supported",
	EntryPointNotFound:    "No candidate entry point found in source",
	InvocationBuildFailed: "Failed to build test invocation",

	// Sandbox
	SandboxUnavailable: "Isolation runtime unavailable",
	SandboxSystemError: "Sandbox system error",
	ExecutionTimeout:   "Execution timed out",
	CompilationFailed:  "Compilation failed",
	RuntimeFailure:     "Runtime error",
	MemoryExceeded:     "Memory limit exceeded",
	OutputExceeded:     "Output limit exceeded",
	WorkspaceFailed:    "Failed to prepare execution workspace",
	CleanupFailed:      "Workspace cleanup failed",

	// Analysis
	AnalyzerFailure:     "Analyzer failed",
	PipelineFailed:      "Analysis pipeline failed",
	AnalysisNotFound:    "Analysis record not found",
	AnalysisStoreFailed: "Failed to store analysis record",

	// Job
	JobNotFound:           "Job not found",
	JobQueueFull:          "Job queue is full, please try again later",
	JobScopeInvalid:       "Invalid job scope",
	JobPreconditionFailed: "Job precondition failed",
	JobPartialFailure:     "Job finished with partial failures",
	JobAlreadyTerminal:    "Job already reached a terminal state",

	// Ranking & Report
	RankingUnavailable: "Ranking is not available",
	NoAnalysesForTest:  "No analysis records exist for this test",
	ReportNotFound:     "Report not found",
	ReportBuildFailed:  "Failed to build report",

	// Auth
	InvalidCredentials:    "Invalid username or password",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",
	PermissionDenied:      "Permission denied",
}

// errorKinds maps taxonomy codes to their stable kind names. Kinds are part
// of the API contract: batch jobs record them per item and synchronous
// endpoints return them alongside the message.
var errorKinds = map[ErrorCode]string{
	SandboxUnavailable:    "SandboxUnavailable",
	ExecutionTimeout:      "ExecutionTimeout",
	EntryPointNotFound:    "EntryPointNotFound",
	AnalyzerFailure:       "AnalyzerFailure",
	JobPartialFailure:     "JobPartialFailure",
	CleanupFailed:         "CleanupError",
	JobPreconditionFailed: "JobPreconditionFailed",
	CompilationFailed:     "CompilationFailed",
	LanguageNotSupported:  "LanguageNotSupported",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Kind returns the stable taxonomy name for the code, or empty when the code
// is not part of the published taxonomy.
func (c ErrorCode) Kind() string {
	return errorKinds[c]
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c >= 17000 && c < 17100:
		return 401
	case c == Forbidden, c == PermissionDenied:
		return 403
	case c == NotFound, c == RecordNotFound, c == AssessmentNotFound,
		c == SolutionNotFound, c == AnalysisNotFound, c == JobNotFound,
		c == ReportNotFound, c == QuestionNotFound, c == ObjectNotFound,
		c == NoAnalysesForTest:
		return 404
	case c == TooManyRequests, c == JobQueueFull:
		return 429
	case c == ServiceUnavailable, c == SandboxUnavailable:
		return 503
	case c >= 10400 && c < 10500:
		return 400
	case c == InvalidParams, c == JobScopeInvalid, c == CodeEmpty,
		c == CodeTooLarge, c == LanguageNotSupported, c == TestCaseInvalid,
		c == TestCaseWeightInvalid:
		return 400
	case c == ExecutionTimeout:
		return 408
	default:
		return 500
	}
}
