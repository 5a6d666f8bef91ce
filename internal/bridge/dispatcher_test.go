package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/binrunner/internal/bridge"
	"github.com/temirov/binrunner/internal/execshell"
)

const (
	testBinaryNameConstant     = "toybox"
	testPathHintConstant       = "/data/local/tmp"
	testStartFailureMessage    = "fork/exec /data/local/tmp/toybox: permission denied"
	testDisplayCommandConstant = "/data/local/tmp/toybox ls -l"
)

type fakeProcessController struct {
	mutex        sync.Mutex
	requests     []execshell.RunRequest
	runResult    execshell.RunResult
	runError     error
	runEntered   chan struct{}
	releaseRun   chan struct{}
	stopResult   execshell.StopResult
	stopRequests int
}

func (controller *fakeProcessController) Run(executionContext context.Context, request execshell.RunRequest) (execshell.RunResult, error) {
	controller.mutex.Lock()
	controller.requests = append(controller.requests, request)
	controller.mutex.Unlock()

	if controller.runEntered != nil {
		close(controller.runEntered)
	}
	if controller.releaseRun != nil {
		select {
		case <-controller.releaseRun:
		case <-executionContext.Done():
		}
	}
	return controller.runResult, controller.runError
}

func (controller *fakeProcessController) Stop(context.Context) execshell.StopResult {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	controller.stopRequests++
	if controller.releaseRun != nil {
		select {
		case <-controller.releaseRun:
		default:
			close(controller.releaseRun)
		}
	}
	return controller.stopResult
}

func (controller *fakeProcessController) recordedRequests() []execshell.RunRequest {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	return append([]execshell.RunRequest(nil), controller.requests...)
}

func newTestDispatcher(testInstance *testing.T, controller bridge.ProcessController) *bridge.Dispatcher {
	testInstance.Helper()
	dispatcher, creationError := bridge.NewDispatcher(zap.NewNop(), controller)
	require.NoError(testInstance, creationError)
	return dispatcher
}

func TestNewDispatcherRequiresController(testInstance *testing.T) {
	dispatcher, creationError := bridge.NewDispatcher(zap.NewNop(), nil)
	require.ErrorIs(testInstance, creationError, bridge.ErrControllerNotConfigured)
	require.Nil(testInstance, dispatcher)
}

func TestDispatcherRunDecodesArguments(testInstance *testing.T) {
	testCases := []struct {
		name            string
		method          string
		arguments       map[string]any
		expectedRequest execshell.RunRequest
	}{
		{
			name:   "json_decoded_arguments",
			method: bridge.MethodRunBinary,
			arguments: map[string]any{
				"path":       testPathHintConstant,
				"binaryName": testBinaryNameConstant,
				"args":       []any{"ls", "-l"},
				"useSu":      true,
			},
			expectedRequest: execshell.RunRequest{
				WorkingDirectory: testPathHintConstant,
				BinaryName:       testBinaryNameConstant,
				Arguments:        []string{"ls", "-l"},
				UseElevation:     true,
			},
		},
		{
			name:            "missing_optional_arguments",
			method:          bridge.MethodRun,
			arguments:       map[string]any{"binaryName": testBinaryNameConstant},
			expectedRequest: execshell.RunRequest{BinaryName: testBinaryNameConstant},
		},
		{
			name:   "weakly_typed_values",
			method: bridge.MethodRun,
			arguments: map[string]any{
				"binaryName": testBinaryNameConstant,
				"args":       []any{"sleep", float64(2)},
				"useSu":      "false",
			},
			expectedRequest: execshell.RunRequest{BinaryName: testBinaryNameConstant, Arguments: []string{"sleep", "2"}},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			controller := &fakeProcessController{runResult: execshell.RunResult{ExitCode: 0, DisplayCommand: testDisplayCommandConstant}}
			dispatcher := newTestDispatcher(testInstance, controller)

			result := dispatcher.Dispatch(context.Background(), bridge.MethodCall{Method: testCase.method, Arguments: testCase.arguments})

			require.Nil(testInstance, result.Failure)
			require.Equal(testInstance, controller.runResult, result.Value)
			require.Equal(testInstance, []execshell.RunRequest{testCase.expectedRequest}, controller.recordedRequests())
		})
	}
}

func TestDispatcherReportsCodedFailures(testInstance *testing.T) {
	testCases := []struct {
		name            string
		call            bridge.MethodCall
		runError        error
		expectedCode    string
		expectedMessage string
		expectRun       bool
	}{
		{
			name:            "argument_error_from_session",
			call:            bridge.MethodCall{Method: bridge.MethodRunBinary, Arguments: map[string]any{"binaryName": ""}},
			runError:        execshell.ArgumentError{Cause: execshell.ErrBinaryNameRequired},
			expectedCode:    "ARG_ERROR",
			expectedMessage: "binaryName is required",
			expectRun:       true,
		},
		{
			name:            "execution_error_from_session",
			call:            bridge.MethodCall{Method: bridge.MethodRunBinary, Arguments: map[string]any{"binaryName": testBinaryNameConstant}},
			runError:        execshell.ExecutionError{DisplayCommand: testDisplayCommandConstant, Cause: errors.New(testStartFailureMessage)},
			expectedCode:    "EXEC_ERROR",
			expectedMessage: testStartFailureMessage,
			expectRun:       true,
		},
		{
			name:            "uncoded_error_is_execution_error",
			call:            bridge.MethodCall{Method: bridge.MethodRun, Arguments: map[string]any{"binaryName": testBinaryNameConstant}},
			runError:        errors.New(testStartFailureMessage),
			expectedCode:    "EXEC_ERROR",
			expectedMessage: testStartFailureMessage,
			expectRun:       true,
		},
		{
			name:         "undecodable_arguments",
			call:         bridge.MethodCall{Method: bridge.MethodRun, Arguments: map[string]any{"binaryName": testBinaryNameConstant, "args": map[string]any{"nested": true}}},
			expectedCode: "ARG_ERROR",
		},
		{
			name:            "unknown_method",
			call:            bridge.MethodCall{Method: "listBinaries"},
			expectedCode:    "NOT_IMPLEMENTED",
			expectedMessage: `method "listBinaries" is not implemented`,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			controller := &fakeProcessController{runError: testCase.runError}
			dispatcher := newTestDispatcher(testInstance, controller)

			result := dispatcher.Dispatch(context.Background(), testCase.call)

			require.Nil(testInstance, result.Value)
			require.NotNil(testInstance, result.Failure)
			require.Equal(testInstance, testCase.expectedCode, result.Failure.Code)
			if len(testCase.expectedMessage) > 0 {
				require.Equal(testInstance, testCase.expectedMessage, result.Failure.Message)
			}
			require.Equal(testInstance, testCase.expectRun, len(controller.recordedRequests()) == 1)
		})
	}
}

func TestDispatcherStopNeverFails(testInstance *testing.T) {
	for _, stopped := range []bool{true, false} {
		for _, method := range []string{bridge.MethodStop, bridge.MethodStopBinary} {
			controller := &fakeProcessController{stopResult: execshell.StopResult{Stopped: stopped}}
			dispatcher := newTestDispatcher(testInstance, controller)

			result := dispatcher.Dispatch(context.Background(), bridge.MethodCall{Method: method})

			require.Nil(testInstance, result.Failure)
			require.Equal(testInstance, execshell.StopResult{Stopped: stopped}, result.Value)
			require.Equal(testInstance, 1, controller.stopRequests)
		}
	}
}

func TestDispatcherLogsFailedCalls(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	controller := &fakeProcessController{runError: errors.New(testStartFailureMessage)}
	dispatcher, creationError := bridge.NewDispatcher(zap.New(observedCore), controller)
	require.NoError(testInstance, creationError)

	dispatcher.Dispatch(context.Background(), bridge.MethodCall{Method: bridge.MethodRunBinary, Arguments: map[string]any{"binaryName": testBinaryNameConstant}})

	failureEntries := observedLogs.FilterMessage("method call failed").All()
	require.Len(testInstance, failureEntries, 1)
	fields := failureEntries[0].ContextMap()
	require.Equal(testInstance, bridge.MethodRunBinary, fields["method"])
	require.Equal(testInstance, "EXEC_ERROR", fields["code"])
	require.Equal(testInstance, testStartFailureMessage, fields["error"])
}
