package repl

import (
	"context"
	"fmt"

	"github.com/snowmerak/repl.go/lib/frame"
)

// Decoder turns an answer frame into a typed response.
type Decoder[Resp any] func(frame.Response) (Resp, error)

// ServiceAdapter provides a typed way to submit service requests and receive decoded answers.
type ServiceAdapter[Resp any] struct {
	client *Client
	decode Decoder[Resp]
}

// NewServiceAdapter creates a new service adapter with a given client and decoder.
func NewServiceAdapter[Resp any](client *Client, decode Decoder[Resp]) *ServiceAdapter[Resp] {
	return &ServiceAdapter[Resp]{
		client: client,
		decode: decode,
	}
}

// Submit sends req and calls callback with each decoded answer frame.
// A frame that fails to decode is passed as a zero Resp with the error.
func (a *ServiceAdapter[Resp]) Submit(ctx context.Context, req frame.Request, callback func(Resp, error)) (string, error) {
	if callback == nil {
		return "", fmt.Errorf("serviceadapter: callback is nil")
	}

	return a.client.SubmitServiceRequest(ctx, req, func(resp frame.Response) {
		out, err := a.decode(resp)
		if err != nil {
			var zero Resp
			callback(zero, fmt.Errorf("serviceadapter: failed to decode %s answer for %s: %w", req.Op(), resp.ID, err))
			return
		}
		callback(out, nil)
	})
}
