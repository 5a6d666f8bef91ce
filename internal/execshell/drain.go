package execshell

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	lineTerminatorConstant        = '\n'
	carriageReturnConstant        = "\r"
	lineTerminatorStringConstant  = "\n"
	drainReaderBufferSizeConstant = 64 * 1024
)

// readOutcomeKind classifies a single read attempt performed by a drain task.
type readOutcomeKind int

const (
	readOutcomeLine readOutcomeKind = iota
	readOutcomeEndOfStream
	readOutcomeInterrupted
	readOutcomeFailure
)

// String renders the outcome kind for diagnostics.
func (kind readOutcomeKind) String() string {
	switch kind {
	case readOutcomeLine:
		return "line"
	case readOutcomeEndOfStream:
		return "end_of_stream"
	case readOutcomeInterrupted:
		return "interrupted"
	default:
		return "failure"
	}
}

type readOutcome struct {
	kind readOutcomeKind
	line string
	err  error
}

// lineReader yields one tagged outcome per call.
type lineReader struct {
	reader *bufio.Reader
}

func newLineReader(source io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReaderSize(source, drainReaderBufferSizeConstant)}
}

// next reads the following line. A trailing line without a terminator is still
// reported as a line; the end of stream is reported on the subsequent call.
func (reader *lineReader) next() readOutcome {
	rawLine, readError := reader.reader.ReadString(lineTerminatorConstant)
	if readError == nil || (len(rawLine) > 0 && errors.Is(readError, io.EOF)) {
		return readOutcome{kind: readOutcomeLine, line: trimLineTerminator(rawLine)}
	}

	switch {
	case errors.Is(readError, io.EOF):
		return readOutcome{kind: readOutcomeEndOfStream}
	case errors.Is(readError, os.ErrClosed), errors.Is(readError, io.ErrClosedPipe):
		return readOutcome{kind: readOutcomeInterrupted, err: readError}
	default:
		return readOutcome{kind: readOutcomeFailure, err: readError}
	}
}

func trimLineTerminator(rawLine string) string {
	trimmedLine := strings.TrimSuffix(rawLine, lineTerminatorStringConstant)
	return strings.TrimSuffix(trimmedLine, carriageReturnConstant)
}

// outputBuffer accumulates drained lines; safe for concurrent snapshotting.
type outputBuffer struct {
	mutex   sync.Mutex
	builder strings.Builder
}

func (buffer *outputBuffer) appendLine(line string) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	buffer.builder.WriteString(line)
	buffer.builder.WriteString(lineTerminatorStringConstant)
}

func (buffer *outputBuffer) String() string {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.builder.String()
}

// drainStream consumes source until any outcome other than a line and returns
// that terminal outcome. It never reports a failure to its caller's error path.
func drainStream(source io.Reader, destination *outputBuffer) readOutcome {
	reader := newLineReader(source)
	for {
		outcome := reader.next()
		if outcome.kind != readOutcomeLine {
			return outcome
		}
		destination.appendLine(outcome.line)
	}
}
