// Package repl provides lifecycle management for REPL connections.
// This file contains functions for dialing, closing and reporting connection loss.
package repl

import (
	"context"
	"fmt"
	"time"
)

func newClient(opts *Options) *Client {
	c := &Client{
		options:     opts,
		logger:      *opts.Logger,
		observer:    opts.Observer,
		ids:         opts.IDs,
		registry:    newRegistry(),
		readySignal: make(chan struct{}),
		done:        make(chan struct{}),
	}
	c.state.Store(int32(StateNegotiating))
	c.session.Store("")
	c.namespace.Store(opts.InitialNamespace)
	return c
}

// Dial opens the transport, negotiates a session and returns the ready client.
// ctx bounds the dial and handshake only; the connection lives until Close or loss.
// If the channel ends before the session arrives, OnConnectionLost still fires once.
func Dial(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("repl: options have no provider")
	}
	o := *opts
	o.normalize()

	c := newClient(&o)

	channel, err := o.Provider.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("repl: failed to open channel: %w", err)
	}
	c.channel = channel

	c.connCtx, c.cancelConn = context.WithCancel(context.WithoutCancel(ctx))

	recv, err := channel.Read(c.connCtx)
	if err != nil {
		c.cancelConn()
		channel.Close()
		return nil, fmt.Errorf("repl: failed to start reading: %w", err)
	}

	// Start frame handling FIRST so the handshake reply cannot be missed
	c.wg.Add(1)
	go c.handleFrames(recv)

	if err := c.negotiate(ctx); err != nil {
		c.shutdown(err)
		return nil, err
	}

	c.logger.Info().Str("session", c.Session()).Msg("session established")
	return c, nil
}

// Close shuts the connection down. OnConnectionLost fires with ErrClosed unless the
// connection was already lost. Close may be called from an Observer or callback; it then
// returns without waiting, and the frame handler stops once the current frame is done.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("repl: client already closed")
	}
	return c.shutdown(ErrClosed)
}

func (c *Client) shutdown(cause error) error {
	c.closed.Store(true)
	c.connectionLost(cause)
	c.cancelConn()
	err := c.channel.Close()

	// Called from the frame handler itself; waiting for it would only run out the timeout.
	if c.handling.Load() {
		return err
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		c.logger.Warn().Msg("frame handler did not stop in time")
	}

	return err
}

// connectionLost moves the client to StateClosed and notifies the observer, exactly once.
func (c *Client) connectionLost(cause error) {
	fired := false
	c.lostOnce.Do(func() {
		fired = true
		c.state.Store(int32(StateClosed))
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()
		close(c.done)

		evals, services := c.registry.counts()
		c.logger.Warn().
			Err(cause).
			Str("session", c.Session()).
			Int("pending_evaluations", evals).
			Int("pending_services", services).
			Msg("connection lost")
	})

	// Outside the Once so the observer may call Close.
	if fired {
		c.observer.OnConnectionLost(cause)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Session returns the session token issued by the peer.
func (c *Client) Session() string {
	return c.session.Load().(string)
}

// CurrentNamespace returns the namespace reported by the most recent value frame.
func (c *Client) CurrentNamespace() string {
	return c.namespace.Load().(string)
}

// Pending returns the number of outstanding evaluation and service requests.
func (c *Client) Pending() (evaluations, services int) {
	return c.registry.counts()
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is alive.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}
