package repl

import "errors"

var (
	// ErrClosed is returned by operations on a client whose connection is gone.
	ErrClosed = errors.New("repl: client is closed")
	// ErrConnectionLost is the cause reported when the transport ends unexpectedly.
	ErrConnectionLost = errors.New("repl: connection lost")
	// ErrHandshakeTimeout is returned by Dial when no session arrives in time.
	ErrHandshakeTimeout = errors.New("repl: timed out waiting for session")
	// ErrDuplicateID is returned when an identifier is already registered.
	ErrDuplicateID = errors.New("repl: duplicate request id")
)
