package repl

import (
	"context"
	"fmt"
	"time"

	"github.com/snowmerak/repl.go/lib/frame"
)

// negotiate sends the clone request and waits for the session token.
func (c *Client) negotiate(ctx context.Context) error {
	if err := c.send(ctx, frame.Clone()); err != nil {
		return fmt.Errorf("repl: failed to send clone: %w", err)
	}

	timer := time.NewTimer(c.options.HandshakeTimeout)
	defer timer.Stop()

	select {
	case <-c.readySignal:
		return nil
	case <-c.done:
		return fmt.Errorf("repl: connection ended during negotiation: %w", c.Err())
	case <-ctx.Done():
		return fmt.Errorf("repl: negotiation cancelled: %w", ctx.Err())
	case <-timer.C:
		return ErrHandshakeTimeout
	}
}

// handleNegotiationFrame looks only for new-session. Anything else is ignored.
func (c *Client) handleNegotiationFrame(data []byte) {
	resp, err := frame.Decode(data)
	if err != nil {
		c.logger.Debug().Err(err).Msg("ignoring undecodable frame before session")
		return
	}
	if resp.NewSession == "" {
		c.logger.Debug().Str("id", resp.ID).Msg("ignoring frame before session")
		return
	}

	c.session.Store(resp.NewSession)
	c.state.Store(int32(StateActive))
	close(c.readySignal)
}
