// Package repl provides JSON decoding adapters for typed service requests.
package repl

import (
	"encoding/json"

	"github.com/snowmerak/repl.go/lib/frame"
)

// NewJSONServiceAdapter creates a ServiceAdapter that unmarshals each whole answer frame into Resp.
// Resp is an ordinary Go type with json tags naming the protocol fields it cares about.
func NewJSONServiceAdapter[Resp any](client *Client) *ServiceAdapter[Resp] {
	return NewServiceAdapter(client, func(resp frame.Response) (Resp, error) {
		var out Resp
		err := json.Unmarshal(resp.Raw, &out)
		return out, err
	})
}
