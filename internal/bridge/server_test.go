package bridge_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/bridge"
	"github.com/temirov/binrunner/internal/execshell"
)

const testServeTimeout = 5 * time.Second

type decodedResponse struct {
	ID     json.RawMessage     `json:"id"`
	Result map[string]any      `json:"result"`
	Error  *bridge.MethodError `json:"error"`
}

func newTestServer(testInstance *testing.T, controller bridge.ProcessController) *bridge.Server {
	testInstance.Helper()
	server, creationError := bridge.NewServer(zap.NewNop(), newTestDispatcher(testInstance, controller))
	require.NoError(testInstance, creationError)
	return server
}

func decodeResponses(testInstance *testing.T, output []byte) map[string]decodedResponse {
	testInstance.Helper()
	responses := make(map[string]decodedResponse)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		var response decodedResponse
		require.NoError(testInstance, json.Unmarshal(scanner.Bytes(), &response))
		responses[string(response.ID)] = response
	}
	require.NoError(testInstance, scanner.Err())
	return responses
}

func TestNewServerRequiresDispatcher(testInstance *testing.T) {
	server, creationError := bridge.NewServer(zap.NewNop(), nil)
	require.ErrorIs(testInstance, creationError, bridge.ErrDispatcherNotConfigured)
	require.Nil(testInstance, server)
}

func TestServerAnswersEveryRequestLine(testInstance *testing.T) {
	controller := &fakeProcessController{
		runResult: execshell.RunResult{
			RunID:          "run-1",
			StandardOutput: "hello world\n",
			ExitCode:       0,
			DisplayCommand: "/system/bin/echo hello world",
		},
	}
	server := newTestServer(testInstance, controller)
	input := strings.Join([]string{
		`{"id":1,"method":"runBinary","arguments":{"binaryName":"echo","args":["hello","world"]}}`,
		`{"id":"two","method":"stopBinary"}`,
		``,
		`{"id":3,"method":"uninstall"}`,
		`not json`,
	}, "\n") + "\n"
	var output bytes.Buffer

	serveError := server.Serve(context.Background(), strings.NewReader(input), &output)
	require.NoError(testInstance, serveError)

	responses := decodeResponses(testInstance, output.Bytes())
	require.Len(testInstance, responses, 4)

	runResponse := responses["1"]
	require.Nil(testInstance, runResponse.Error)
	require.Equal(testInstance, "hello world\n", runResponse.Result["stdout"])
	require.Equal(testInstance, "", runResponse.Result["stderr"])
	require.Equal(testInstance, float64(0), runResponse.Result["exitCode"])
	require.Equal(testInstance, "/system/bin/echo hello world", runResponse.Result["command"])
	require.Equal(testInstance, "run-1", runResponse.Result["runId"])

	stopResponse := responses[`"two"`]
	require.Nil(testInstance, stopResponse.Error)
	require.Equal(testInstance, false, stopResponse.Result["stopped"])

	unknownResponse := responses["3"]
	require.NotNil(testInstance, unknownResponse.Error)
	require.Equal(testInstance, bridge.ErrorCodeNotImplemented, unknownResponse.Error.Code)

	malformedResponse := responses["null"]
	require.NotNil(testInstance, malformedResponse.Error)
	require.Equal(testInstance, bridge.ErrorCodeMalformedRequest, malformedResponse.Error.Code)

	require.Equal(testInstance, []execshell.RunRequest{{BinaryName: "echo", Arguments: []string{"hello", "world"}}}, controller.recordedRequests())
}

func TestServerRejectsLinesThatAreNotObjects(testInstance *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{name: "null_literal", line: `null`},
		{name: "array", line: `[{"id":1,"method":"stop"}]`},
		{name: "number", line: `42`},
		{name: "string", line: `"stop"`},
		{name: "plain_text", line: `stop please`},
		{name: "truncated_object", line: `{"id":1,"method":`},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			controller := &fakeProcessController{}
			server := newTestServer(testInstance, controller)
			var output bytes.Buffer

			require.NoError(testInstance, server.Serve(context.Background(), strings.NewReader(testCase.line+"\n"), &output))

			responses := decodeResponses(testInstance, output.Bytes())
			require.Len(testInstance, responses, 1)
			malformedResponse := responses["null"]
			require.NotNil(testInstance, malformedResponse.Error)
			require.Equal(testInstance, bridge.ErrorCodeMalformedRequest, malformedResponse.Error.Code)
			require.Empty(testInstance, controller.recordedRequests())
			require.Zero(testInstance, controller.stopRequests)
		})
	}
}

func TestServerStopOvertakesRunningCall(testInstance *testing.T) {
	controller := &fakeProcessController{
		runResult:  execshell.RunResult{ExitCode: 143, Stopped: true},
		runEntered: make(chan struct{}),
		releaseRun: make(chan struct{}),
		stopResult: execshell.StopResult{Stopped: true},
	}
	server := newTestServer(testInstance, controller)
	inputReader, inputWriter := io.Pipe()
	var output bytes.Buffer

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.Serve(context.Background(), inputReader, &output)
	}()

	_, writeError := io.WriteString(inputWriter, `{"id":1,"method":"run","arguments":{"binaryName":"sleep","args":["30"]}}`+"\n")
	require.NoError(testInstance, writeError)
	select {
	case <-controller.runEntered:
	case <-time.After(testServeTimeout):
		testInstance.Fatal("run call was not dispatched")
	}

	_, writeError = io.WriteString(inputWriter, `{"id":2,"method":"stop"}`+"\n")
	require.NoError(testInstance, writeError)
	require.NoError(testInstance, inputWriter.Close())

	select {
	case serveError := <-serveErrors:
		require.NoError(testInstance, serveError)
	case <-time.After(testServeTimeout):
		testInstance.Fatal("serve did not return after input closed")
	}

	responses := decodeResponses(testInstance, output.Bytes())
	require.Equal(testInstance, true, responses["2"].Result["stopped"])
	require.Equal(testInstance, true, responses["1"].Result["stopped"])
	require.Equal(testInstance, float64(143), responses["1"].Result["exitCode"])
}

func TestServerCancellationReachesInFlightCalls(testInstance *testing.T) {
	controller := &fakeProcessController{
		runEntered: make(chan struct{}),
		releaseRun: make(chan struct{}),
	}
	server := newTestServer(testInstance, controller)
	inputReader, inputWriter := io.Pipe()
	defer inputWriter.Close()
	executionContext, cancel := context.WithCancel(context.Background())
	var output bytes.Buffer

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.Serve(executionContext, inputReader, &output)
	}()

	_, writeError := io.WriteString(inputWriter, `{"id":1,"method":"run","arguments":{"binaryName":"sleep"}}`+"\n")
	require.NoError(testInstance, writeError)
	<-controller.runEntered
	cancel()

	select {
	case serveError := <-serveErrors:
		require.ErrorIs(testInstance, serveError, context.Canceled)
	case <-time.After(testServeTimeout):
		testInstance.Fatal("serve did not return after cancellation")
	}
	require.Contains(testInstance, decodeResponses(testInstance, output.Bytes()), "1")
}
