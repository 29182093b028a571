// Package frame provides the wire shapes of the line-delimited JSON REPL protocol.
// This file contains the outbound request builders.
package frame

import (
	"encoding/json"
	"fmt"
)

// Operation codes understood by the remote REPL.
const (
	OpClone     = "clone"
	OpEval      = "eval"
	OpComplete  = "complete"
	OpDescribe  = "describe"
	OpInterrupt = "interrupt"
)

// Request is an outbound frame. Keys are protocol field names.
type Request map[string]any

// Clone builds the handshake request asking the peer for a new session.
func Clone() Request {
	return Request{"op": OpClone}
}

// Eval builds an evaluation request.
func Eval(code, id, session string) Request {
	return Request{
		"op":      OpEval,
		"code":    code,
		"id":      id,
		"session": session,
	}
}

// Complete builds an autocompletion query. The context form is only sent when non-empty.
func Complete(symbol, ns, contextForm string) Request {
	r := Request{
		"op":     OpComplete,
		"symbol": symbol,
		"ns":     ns,
	}
	if contextForm != "" {
		r["context"] = contextForm
	}
	return r
}

// Describe builds a request for the peer's supported operations and versions.
func Describe() Request {
	return Request{"op": OpDescribe}
}

// Interrupt builds a request asking the peer to interrupt the evaluation with the given id.
func Interrupt(evalID string) Request {
	return Request{
		"op":           OpInterrupt,
		"interrupt-id": evalID,
	}
}

// Op returns the operation code, or "" if none was set.
func (r Request) Op() string {
	op, _ := r["op"].(string)
	return op
}

// WithCorrelation returns a copy of r carrying the given id and session.
// The injected keys replace any caller supplied values.
func (r Request) WithCorrelation(id, session string) Request {
	out := make(Request, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	out["id"] = id
	out["session"] = session
	return out
}

// Marshal encodes the request as a single JSON object.
func (r Request) Marshal() ([]byte, error) {
	if r.Op() == "" {
		return nil, fmt.Errorf("frame: request has no op")
	}
	data, err := json.Marshal(map[string]any(r))
	if err != nil {
		return nil, fmt.Errorf("frame: failed to marshal %s request: %w", r.Op(), err)
	}
	return data, nil
}
