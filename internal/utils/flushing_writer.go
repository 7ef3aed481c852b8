package utils

import "io"

type flushableWriter interface {
	io.Writer
	Flush() error
}

type flushingWriter struct {
	destination io.Writer
}

// NewFlushingWriter returns a writer that flushes the destination after every write when it supports flushing.
func NewFlushingWriter(destination io.Writer) io.Writer {
	return &flushingWriter{destination: destination}
}

func (writer *flushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.destination.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	flushable, supportsFlush := writer.destination.(flushableWriter)
	if !supportsFlush {
		return bytesWritten, nil
	}

	return bytesWritten, flushable.Flush()
}
