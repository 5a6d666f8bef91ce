package utils

import (
	"bufio"
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

// FlushingWriter serializes writes and flushes the destination after each one
// when the destination buffers its output.
type FlushingWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewFlushingWriter wraps writer. Writers that are already flushing are returned unchanged.
func NewFlushingWriter(writer io.Writer) *FlushingWriter {
	if existing, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return existing
	}
	return &FlushingWriter{writer: writer}
}

// NewBufferedFlushingWriter buffers writes to destination and flushes after each one.
func NewBufferedFlushingWriter(destination io.Writer) *FlushingWriter {
	return NewFlushingWriter(bufio.NewWriter(destination))
}

// Write delegates to the underlying writer and flushes it when possible.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, io.ErrClosedPipe
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	bytesWritten, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	if bufferedWriter, buffers := flushingWriter.writer.(flusher); buffers {
		if flushError := bufferedWriter.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}

	return bytesWritten, nil
}
