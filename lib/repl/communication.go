// Package repl provides the public request API.
// This file contains functions for submitting evaluations and service requests.
package repl

import (
	"context"
	"fmt"
	"time"

	"github.com/snowmerak/repl.go/lib/frame"
)

// SubmitEvaluation sends code for evaluation on behalf of segmentID and returns the request id.
// It does not wait: results arrive on the Observer, tagged with segmentID.
func (c *Client) SubmitEvaluation(ctx context.Context, code, segmentID string) (string, error) {
	if err := c.checkActive(); err != nil {
		return "", err
	}

	id, err := c.generateRequestID()
	if err != nil {
		return "", err
	}

	if err := c.registry.registerEvaluation(id, segmentID, time.Now()); err != nil {
		return "", err
	}

	if err := c.send(ctx, frame.Eval(code, id, c.Session())); err != nil {
		// The peer never saw it, so no terminal frame will come.
		c.registry.removeEvaluation(id)
		return "", err
	}

	c.logger.Debug().Str("id", id).Str("segment", segmentID).Msg("evaluation submitted")
	return id, nil
}

// SubmitServiceRequest sends a non-evaluation request. id and session are injected,
// replacing any caller values. callback runs for every answer frame except the terminal one.
func (c *Client) SubmitServiceRequest(ctx context.Context, fields frame.Request, callback ServiceCallback) (string, error) {
	if callback == nil {
		return "", fmt.Errorf("repl: service request needs a callback")
	}
	if err := c.checkActive(); err != nil {
		return "", err
	}

	id, err := c.generateRequestID()
	if err != nil {
		return "", err
	}

	if err := c.registry.registerService(id, callback, time.Now()); err != nil {
		return "", err
	}

	if err := c.send(ctx, fields.WithCorrelation(id, c.Session())); err != nil {
		c.registry.removeService(id)
		return "", err
	}

	c.logger.Debug().Str("id", id).Str("op", fields.Op()).Msg("service request submitted")
	return id, nil
}

// QueryCompletions asks for completions of symbol in ns. contextForm is the enclosing form,
// forwarded when non-empty. callback receives the candidate list of each answer.
func (c *Client) QueryCompletions(ctx context.Context, symbol, ns, contextForm string, callback func([]frame.Candidate)) (string, error) {
	if callback == nil {
		return "", fmt.Errorf("repl: completion query needs a callback")
	}
	return c.SubmitServiceRequest(ctx, frame.Complete(symbol, ns, contextForm), func(resp frame.Response) {
		candidates, err := frame.Candidates(resp)
		if err != nil {
			c.logger.Warn().Err(err).Str("id", resp.ID).Msg("bad completion payload")
			return
		}
		callback(candidates)
	})
}

// Describe asks the peer for its supported operations.
func (c *Client) Describe(ctx context.Context, callback ServiceCallback) (string, error) {
	return c.SubmitServiceRequest(ctx, frame.Describe(), callback)
}

// Interrupt asks the peer to stop the evaluation evalID. The evaluation still
// leaves the registry only when its own terminal frame arrives.
func (c *Client) Interrupt(ctx context.Context, evalID string, callback ServiceCallback) (string, error) {
	return c.SubmitServiceRequest(ctx, frame.Interrupt(evalID), callback)
}

// send marshals and writes one frame, applying WriteTimeout when ctx has no deadline.
func (c *Client) send(ctx context.Context, req frame.Request) error {
	data, err := req.Marshal()
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.WriteTimeout)
		defer cancel()
	}

	if err := c.channel.Write(ctx, data); err != nil {
		return fmt.Errorf("repl: failed to send %s: %w", req.Op(), err)
	}
	return nil
}

func (c *Client) checkActive() error {
	if c.closed.Load() || c.State() == StateClosed {
		return ErrClosed
	}
	return nil
}
