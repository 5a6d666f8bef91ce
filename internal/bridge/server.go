package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/utils"
)

// ErrorCodeMalformedRequest is reported for lines that are not valid request objects.
const ErrorCodeMalformedRequest = "BAD_REQUEST"

const (
	maximumRequestLineBytesConstant        = 1 << 20
	initialRequestBufferBytesConstant      = 64 * 1024
	malformedRequestTemplateConstant       = "malformed request: %v"
	readRequestsErrorTemplateConstant      = "reading requests: %w"
	writeResponseErrorTemplateConstant     = "writing response: %w"
	serverStartedMessageConstant           = "bridge serving requests"
	serverStoppedMessageConstant           = "bridge stopped"
	requestReceivedMessageConstant         = "request received"
	requestMalformedMessageConstant        = "request malformed"
	responseWriteFailedMessageConstant     = "unable to write response"
	logFieldRequestIDConstant              = "request_id"
	dispatcherNotConfiguredMessageConstant = "dispatcher not configured"
	requestNotObjectMessageConstant        = "request must be a JSON object"
	jsonObjectOpeningByteConstant          = '{'
)

// ErrDispatcherNotConfigured indicates that a server was constructed without a dispatcher.
var ErrDispatcherNotConfigured = errors.New(dispatcherNotConfiguredMessageConstant)

var errRequestNotObject = errors.New(requestNotObjectMessageConstant)

// Request is one JSON-lines request object.
type Request struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Method    string          `json:"method"`
	Arguments map[string]any  `json:"arguments,omitempty"`
}

// Response is one JSON-lines response object. Exactly one of Result and Error is set.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *MethodError    `json:"error,omitempty"`
}

// Server reads requests from a stream, dispatches them concurrently, and writes responses.
type Server struct {
	logger     *zap.Logger
	dispatcher *Dispatcher
}

// NewServer constructs a Server around dispatcher.
func NewServer(logger *zap.Logger, dispatcher *Dispatcher) (*Server, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger, dispatcher: dispatcher}, nil
}

type requestLine struct {
	payload []byte
	err     error
}

// Serve handles requests until the input ends or executionContext is cancelled.
// Calls still in flight are awaited before Serve returns; cancellation reaches
// them through their context, which stops any running process.
func (server *Server) Serve(executionContext context.Context, input io.Reader, output io.Writer) error {
	responseWriter := &responseEncoder{encoder: json.NewEncoder(utils.NewBufferedFlushingWriter(output))}

	server.logger.Info(serverStartedMessageConstant)
	defer server.logger.Info(serverStoppedMessageConstant)

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	readerDone := make(chan struct{})
	defer close(readerDone)
	lines := server.readLines(input, readerDone)

	for {
		select {
		case <-executionContext.Done():
			return executionContext.Err()
		case line, open := <-lines:
			if !open {
				return nil
			}
			if line.err != nil {
				return fmt.Errorf(readRequestsErrorTemplateConstant, line.err)
			}
			server.handleLine(executionContext, line.payload, responseWriter, &inFlight)
		}
	}
}

func (server *Server) readLines(input io.Reader, readerDone <-chan struct{}) <-chan requestLine {
	lines := make(chan requestLine)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, initialRequestBufferBytesConstant), maximumRequestLineBytesConstant)
		for scanner.Scan() {
			payload := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- requestLine{payload: payload}:
			case <-readerDone:
				return
			}
		}
		if scanError := scanner.Err(); scanError != nil {
			select {
			case lines <- requestLine{err: scanError}:
			case <-readerDone:
			}
		}
	}()
	return lines
}

func (server *Server) handleLine(executionContext context.Context, payload []byte, responseWriter *responseEncoder, inFlight *sync.WaitGroup) {
	trimmedPayload := bytes.TrimSpace(payload)
	if len(trimmedPayload) == 0 {
		return
	}

	var request Request
	if decodeError := decodeRequest(trimmedPayload, &request); decodeError != nil {
		server.logger.Warn(requestMalformedMessageConstant, zap.Error(decodeError))
		server.respond(responseWriter, Response{
			Error: &MethodError{Code: ErrorCodeMalformedRequest, Message: fmt.Sprintf(malformedRequestTemplateConstant, decodeError)},
		})
		return
	}

	server.logger.Debug(
		requestReceivedMessageConstant,
		zap.String(logFieldMethodConstant, request.Method),
		zap.ByteString(logFieldRequestIDConstant, request.ID),
	)

	inFlight.Add(1)
	go func() {
		defer inFlight.Done()
		result := server.dispatcher.Dispatch(executionContext, MethodCall{Method: request.Method, Arguments: request.Arguments})
		response := Response{ID: request.ID, Error: result.Failure}
		if result.Failure == nil {
			response.Result = result.Value
		}
		server.respond(responseWriter, response)
	}()
}

func (server *Server) respond(responseWriter *responseEncoder, response Response) {
	if writeError := responseWriter.write(response); writeError != nil {
		server.logger.Warn(responseWriteFailedMessageConstant, zap.Error(writeError))
	}
}

type responseEncoder struct {
	mutex   sync.Mutex
	encoder *json.Encoder
}

func (responseWriter *responseEncoder) write(response Response) error {
	responseWriter.mutex.Lock()
	defer responseWriter.mutex.Unlock()
	if encodeError := responseWriter.encoder.Encode(response); encodeError != nil {
		return fmt.Errorf(writeResponseErrorTemplateConstant, encodeError)
	}
	return nil
}

func decodeRequest(payload []byte, request *Request) error {
	if payload[0] != jsonObjectOpeningByteConstant {
		return errRequestNotObject
	}
	return json.Unmarshal(payload, request)
}
