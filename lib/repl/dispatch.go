// Package repl provides frame processing functionality.
// This file contains the frame handling loop and the routing of classified frames.
package repl

import (
	"errors"
	"fmt"
	"time"

	"github.com/snowmerak/repl.go/lib/frame"
	"github.com/snowmerak/repl.go/lib/linemux"
)

// handleFrames is the only goroutine that reads frames. Frames are handled in arrival order.
func (c *Client) handleFrames(recv <-chan *linemux.Message) {
	defer c.wg.Done()

	var sweep <-chan time.Time
	if c.options.PendingTTL > 0 {
		ticker := time.NewTicker(c.options.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		c.handling.Store(false)
		select {
		case <-c.connCtx.Done():
			c.handling.Store(true)
			c.connectionLost(ErrClosed)
			return
		case msg, ok := <-recv:
			c.handling.Store(true)
			if !ok {
				c.connectionLost(ErrConnectionLost)
				return
			}
			if msg.Err != nil {
				c.connectionLost(fmt.Errorf("%w: %v", ErrConnectionLost, msg.Err))
				return
			}
			c.handleFrame(msg.Data)
		case now := <-sweep:
			c.expirePending(now)
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	switch c.State() {
	case StateNegotiating:
		c.handleNegotiationFrame(data)
	case StateActive:
		c.dispatch(data)
	}
}

// dispatch routes one frame: evaluation table first, then service table, else unroutable.
func (c *Client) dispatch(data []byte) {
	resp, err := frame.Decode(data)
	if err != nil {
		c.logger.Warn().Err(err).Bytes("frame", data).Msg("dropping undecodable frame")
		return
	}

	if segmentID, ok := c.registry.lookupEvaluation(resp.ID); ok {
		c.dispatchEvaluation(resp, segmentID)
		return
	}

	if callback, ok := c.registry.lookupService(resp.ID); ok {
		c.dispatchService(resp, callback)
		return
	}

	c.logger.Warn().Str("id", resp.ID).RawJSON("frame", resp.Raw).Msg("unroutable frame")
}

func (c *Client) dispatchEvaluation(resp frame.Response, segmentID string) {
	if err := resp.Validate(); err != nil {
		ev := c.logger.Error()
		if !errors.Is(err, frame.ErrAmbiguousFrame) {
			ev = c.logger.Warn()
		}
		ev.Err(err).
			Str("id", resp.ID).
			Str("segment", segmentID).
			RawJSON("frame", resp.Raw).
			Msg("protocol violation, frame dropped")
		// The terminal marker still ends the evaluation, or its entry would never leave.
		if resp.IsDone() && c.registry.removeEvaluation(resp.ID) {
			c.observer.OnDone(DoneEvent{ID: resp.ID, SegmentID: segmentID})
		}
		return
	}

	kind := resp.Kind()
	switch kind {
	case frame.KindValue:
		ns := resp.Namespace()
		c.namespace.Store(ns)
		c.observer.OnValue(ValueEvent{
			ID:        resp.ID,
			SegmentID: segmentID,
			Namespace: ns,
			Value:     resp.ValueAny(),
			Raw:       resp.Value,
		})

	case frame.KindOutput:
		c.observer.OnOutput(OutputEvent{ID: resp.ID, SegmentID: segmentID, Text: *resp.Out})

	case frame.KindDone:
		c.registry.removeEvaluation(resp.ID)
		c.observer.OnDone(DoneEvent{ID: resp.ID, SegmentID: segmentID})

	case frame.KindError:
		c.observer.OnError(ErrorEvent{ID: resp.ID, SegmentID: segmentID, Error: *resp.Err})

	case frame.KindDiagnostic:
		c.logger.Info().
			Str("id", resp.ID).
			Str("segment", segmentID).
			RawJSON("root_ex", resp.RootEx).
			Msg("diagnostic frame discarded")

	default:
		c.logger.Debug().
			Str("id", resp.ID).
			Str("kind", kind.String()).
			RawJSON("frame", resp.Raw).
			Msg("unclassified evaluation frame")
	}
}

func (c *Client) dispatchService(resp frame.Response, callback ServiceCallback) {
	if resp.IsDone() {
		c.registry.removeService(resp.ID)
		return
	}
	callback(resp)
}

func (c *Client) expirePending(now time.Time) {
	for _, e := range c.registry.expire(now, c.options.PendingTTL) {
		ev := c.logger.Warn().Str("id", e.id).Dur("age", e.age)
		if e.segmentID != "" {
			ev = ev.Str("segment", e.segmentID)
		}
		ev.Msg("expired pending request")
	}
}
