package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/execshell"
)

// Method names accepted by the dispatcher.
const (
	MethodRun        = "run"
	MethodRunBinary  = "runBinary"
	MethodStop       = "stop"
	MethodStopBinary = "stopBinary"
)

// ErrorCodeNotImplemented is reported for unknown method names.
const ErrorCodeNotImplemented = "NOT_IMPLEMENTED"

const (
	notImplementedTemplateConstant         = "method %q is not implemented"
	argumentDecodeErrorTemplateConstant    = "invalid arguments: %w"
	controllerNotConfiguredMessageConstant = "process controller not configured"
	argumentTagNameConstant                = "mapstructure"
	dispatchMessageConstant                = "dispatching method call"
	dispatchFailedMessageConstant          = "method call failed"
	logFieldMethodConstant                 = "method"
	logFieldErrorCodeConstant              = "code"
	logFieldErrorMessageConstant           = "error"
)

// ErrControllerNotConfigured indicates that a dispatcher was constructed without a process controller.
var ErrControllerNotConfigured = errors.New(controllerNotConfiguredMessageConstant)

// ProcessController runs and stops processes on behalf of the dispatcher.
type ProcessController interface {
	Run(executionContext context.Context, request execshell.RunRequest) (execshell.RunResult, error)
	Stop(executionContext context.Context) execshell.StopResult
}

// MethodCall is a named invocation with loosely typed arguments.
type MethodCall struct {
	Method    string
	Arguments map[string]any
}

// MethodError is the coded failure returned to callers.
type MethodError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MethodResult holds either a success value or a MethodError.
type MethodResult struct {
	Value   any
	Failure *MethodError
}

type runArguments struct {
	Path         string   `mapstructure:"path"`
	BinaryName   string   `mapstructure:"binaryName"`
	Arguments    []string `mapstructure:"args"`
	UseElevation bool     `mapstructure:"useSu"`
}

// Dispatcher routes method calls to a ProcessController.
type Dispatcher struct {
	logger     *zap.Logger
	controller ProcessController
}

// NewDispatcher constructs a Dispatcher. A nil logger is replaced with a no-op logger.
func NewDispatcher(logger *zap.Logger, controller ProcessController) (*Dispatcher, error) {
	if controller == nil {
		return nil, ErrControllerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger, controller: controller}, nil
}

// Dispatch executes call and returns its result. Run blocks until the process
// exits; stop never fails.
func (dispatcher *Dispatcher) Dispatch(executionContext context.Context, call MethodCall) MethodResult {
	dispatcher.logger.Debug(dispatchMessageConstant, zap.String(logFieldMethodConstant, call.Method))

	switch call.Method {
	case MethodRun, MethodRunBinary:
		return dispatcher.dispatchRun(executionContext, call)
	case MethodStop, MethodStopBinary:
		return MethodResult{Value: dispatcher.controller.Stop(executionContext)}
	default:
		return dispatcher.failure(call, ErrorCodeNotImplemented, fmt.Sprintf(notImplementedTemplateConstant, call.Method))
	}
}

func (dispatcher *Dispatcher) dispatchRun(executionContext context.Context, call MethodCall) MethodResult {
	arguments, decodeError := decodeRunArguments(call.Arguments)
	if decodeError != nil {
		return dispatcher.failure(call, execshell.ErrorCodeArgument, decodeError.Error())
	}

	result, runError := dispatcher.controller.Run(executionContext, execshell.RunRequest{
		WorkingDirectory: arguments.Path,
		BinaryName:       arguments.BinaryName,
		Arguments:        arguments.Arguments,
		UseElevation:     arguments.UseElevation,
	})
	if runError != nil {
		code := execshell.ErrorCodeExecution
		var codedError execshell.CodedError
		if errors.As(runError, &codedError) {
			code = codedError.Code()
		}
		return dispatcher.failure(call, code, runError.Error())
	}

	return MethodResult{Value: result}
}

func (dispatcher *Dispatcher) failure(call MethodCall, code string, message string) MethodResult {
	dispatcher.logger.Debug(
		dispatchFailedMessageConstant,
		zap.String(logFieldMethodConstant, call.Method),
		zap.String(logFieldErrorCodeConstant, code),
		zap.String(logFieldErrorMessageConstant, message),
	)
	return MethodResult{Failure: &MethodError{Code: code, Message: message}}
}

// decodeRunArguments accepts JSON-decoded values: numbers and booleans are
// converted to strings where a string is expected, and a missing args entry
// means no arguments.
func decodeRunArguments(rawArguments map[string]any) (runArguments, error) {
	var arguments runArguments
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &arguments,
		TagName:          argumentTagNameConstant,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return runArguments{}, decoderError
	}
	if decodeError := decoder.Decode(rawArguments); decodeError != nil {
		return runArguments{}, fmt.Errorf(argumentDecodeErrorTemplateConstant, decodeError)
	}
	return arguments, nil
}
