// Package linemux frames messages as newline-terminated lines over an io.Reader/io.Writer pair.
package linemux

import "errors"

// ErrEmbeddedNewline is returned when an outbound message would split into several lines.
var ErrEmbeddedNewline = errors.New("linemux: message contains a newline")

// ErrWriteAborted is returned when a write was cut short by its context or deadline.
// The stream may hold a partial line afterwards, so the node refuses further writes.
var ErrWriteAborted = errors.New("linemux: write aborted")

// Message is a single received line, or the error that ended the stream.
type Message struct {
	Data []byte
	Err  error
}

// Metrics contains traffic counters
type Metrics struct {
	MessagesWritten uint64
	MessagesRead    uint64
	BytesWritten    uint64
	BytesRead       uint64
}

// Config holds configuration options for a Node
type Config struct {
	// MaxMessageSize sets the maximum allowed line length (default: 10MB)
	MaxMessageSize int

	// BufferSize is the channel capacity for received messages (default: 256)
	BufferSize int
}

// DefaultConfig returns the default Node configuration.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: 10 * 1024 * 1024,
		BufferSize:     256,
	}
}
