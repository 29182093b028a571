package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/snowmerak/repl.go/lib/linemux"
	"github.com/snowmerak/repl.go/lib/process"
)

// Channel is an open, ordered, message-framed duplex connection.
type Channel interface {
	// Read starts delivery of inbound frames. The returned channel is closed when the
	// connection ends; an abnormal end is reported as a final message with Err set.
	Read(ctx context.Context) (<-chan *linemux.Message, error)
	// Write sends one complete frame.
	Write(ctx context.Context, data []byte) error
	// Close tears the connection down.
	Close() error
}

// Provider opens channels.
type Provider interface {
	Open(ctx context.Context) (Channel, error)
}

// ProviderFunc is a convenience type for converting functions to Provider
type ProviderFunc func(ctx context.Context) (Channel, error)

// Open implements Provider
func (f ProviderFunc) Open(ctx context.Context) (Channel, error) {
	return f(ctx)
}

// StreamProvider frames messages as lines over a caller supplied reader and writer.
// If either implements io.Closer it is closed with the channel.
type StreamProvider struct {
	Reader io.Reader
	Writer io.Writer
}

// Open implements Provider
func (s *StreamProvider) Open(ctx context.Context) (Channel, error) {
	if s.Reader == nil || s.Writer == nil {
		return nil, fmt.Errorf("stream provider needs both reader and writer")
	}
	return newStreamChannel(s.Reader, s.Writer, closeBoth(s.Reader, s.Writer)), nil
}

// ProcessProvider starts a bridge executable and speaks to it over stdio.
type ProcessProvider struct {
	Config process.Config
}

// Open implements Provider. The process outlives ctx and is stopped by Close.
func (p *ProcessProvider) Open(ctx context.Context) (Channel, error) {
	proc, err := process.Start(context.WithoutCancel(ctx), p.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to start bridge process: %w", err)
	}
	return newStreamChannel(proc.Stdout(), proc.Stdin(), proc.Close), nil
}

type streamChannel struct {
	node   *linemux.Node
	closer func() error

	once     sync.Once
	closeErr error
}

func newStreamChannel(r io.Reader, w io.Writer, closer func() error) *streamChannel {
	return &streamChannel{
		node:   linemux.NewNode(r, w),
		closer: closer,
	}
}

func (s *streamChannel) Read(ctx context.Context) (<-chan *linemux.Message, error) {
	return s.node.ReadMessage(ctx)
}

// Write sends one line. An aborted write may leave half a line on the stream, so the
// channel is closed and the frame loop reports the connection lost.
func (s *streamChannel) Write(ctx context.Context, data []byte) error {
	err := s.node.WriteMessage(ctx, data)
	if errors.Is(err, linemux.ErrWriteAborted) {
		s.Close()
	}
	return err
}

func (s *streamChannel) Close() error {
	s.once.Do(func() {
		s.node.Close()
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
	return s.closeErr
}

func closeBoth(r io.Reader, w io.Writer) func() error {
	return func() error {
		var errs []error
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c, ok := w.(io.Closer); ok && any(w) != any(r) {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
