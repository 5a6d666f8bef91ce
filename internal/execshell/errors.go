package execshell

import "errors"

const (
	argumentErrorCodeConstant              = "ARG_ERROR"
	executionErrorCodeConstant             = "EXEC_ERROR"
	binaryNameRequiredMessageConstant      = "binaryName is required"
	loggerNotConfiguredMessageConstant     = "logger not configured"
	resolverNotConfiguredMessageConstant   = "executable resolver not configured"
	fileSystemNotConfiguredMessageConstant = "file system not configured"
	unknownExecutionFailureMessageConstant = "unknown error"
)

// Error codes reported to callers.
const (
	ErrorCodeArgument  = argumentErrorCodeConstant
	ErrorCodeExecution = executionErrorCodeConstant
)

var (
	// ErrBinaryNameRequired indicates that a run request omitted the binary name.
	ErrBinaryNameRequired = errors.New(binaryNameRequiredMessageConstant)
	// ErrLoggerNotConfigured indicates that a session was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrResolverNotConfigured indicates that a session was constructed without a resolver.
	ErrResolverNotConfigured = errors.New(resolverNotConfiguredMessageConstant)
	// ErrFileSystemNotConfigured indicates that a resolver was constructed without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
)

// ArgumentError reports a caller-supplied request that failed validation.
type ArgumentError struct {
	Cause error
}

// Error describes the failed precondition.
func (argumentError ArgumentError) Error() string {
	if argumentError.Cause == nil {
		return binaryNameRequiredMessageConstant
	}
	return argumentError.Cause.Error()
}

// Unwrap exposes the underlying validation failure.
func (argumentError ArgumentError) Unwrap() error {
	return argumentError.Cause
}

// Code returns the caller-facing error code.
func (argumentError ArgumentError) Code() string {
	return argumentErrorCodeConstant
}

// ExecutionError reports a failure while resolving, building, or starting a command.
type ExecutionError struct {
	DisplayCommand string
	Cause          error
}

// Error returns the underlying failure description unchanged.
func (executionError ExecutionError) Error() string {
	if executionError.Cause == nil {
		return unknownExecutionFailureMessageConstant
	}
	return executionError.Cause.Error()
}

// Unwrap exposes the underlying failure.
func (executionError ExecutionError) Unwrap() error {
	return executionError.Cause
}

// Code returns the caller-facing error code.
func (executionError ExecutionError) Code() string {
	return executionErrorCodeConstant
}

// CodedError is implemented by errors that carry a caller-facing error code.
type CodedError interface {
	error
	Code() string
}
