// Package repl provides core types for the REPL client.
// This file contains the Client struct, connection states and notification payloads.
package repl

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/snowmerak/repl.go/lib/frame"
	"github.com/snowmerak/repl.go/lib/ident"
)

// State is the connection state. Frame handling is selected by it.
type State int32

const (
	StateNegotiating State = iota // waiting for new-session
	StateActive                   // session established, full dispatch
	StateClosed                   // connection gone
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "Negotiating"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ValueEvent is emitted when an evaluation produces a value.
type ValueEvent struct {
	ID        string
	SegmentID string
	Namespace string
	Value     any
	Raw       json.RawMessage
}

// OutputEvent is emitted for console output produced by an evaluation.
type OutputEvent struct {
	ID        string
	SegmentID string
	Text      string
}

// DoneEvent is emitted once per evaluation, when its terminal status arrives.
type DoneEvent struct {
	ID        string
	SegmentID string
}

// ErrorEvent carries an error reported by the remote evaluator. It is data, not a Go error.
type ErrorEvent struct {
	ID        string
	SegmentID string
	Error     string
}

// ServiceCallback receives every non-terminal frame answering a service request.
type ServiceCallback func(resp frame.Response)

// Client is a single REPL connection with its session and correlation tables.
type Client struct {
	options  *Options
	logger   zerolog.Logger
	observer Observer
	ids      ident.Source

	channel  Channel
	registry *registry

	state     atomic.Int32
	session   atomic.Value // string
	namespace atomic.Value // string

	connCtx    context.Context
	cancelConn context.CancelFunc
	wg         sync.WaitGroup

	// Closed when the session token has been captured
	readySignal chan struct{}

	// Closed when the connection is gone
	done     chan struct{}
	lostOnce sync.Once
	errMu    sync.Mutex
	err      error

	closed atomic.Bool

	// Set while the frame handler runs user code rather than waiting for input
	handling atomic.Bool
}
