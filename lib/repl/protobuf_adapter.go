package repl

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/snowmerak/repl.go/lib/frame"
)

// NewProtobufServiceAdapter creates a ServiceAdapter that decodes each answer frame with protojson.
// Resp must implement proto.Message (e.g., *structpb.Struct or a generated message).
// newRespInstance returns a new, non-nil instance of Resp for every frame.
// Protocol fields the message does not declare are discarded.
func NewProtobufServiceAdapter[Resp proto.Message](client *Client, newRespInstance func() Resp) *ServiceAdapter[Resp] {
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	return NewServiceAdapter(client, func(resp frame.Response) (Resp, error) {
		instance := newRespInstance()
		if err := opts.Unmarshal(resp.Raw, instance); err != nil {
			var zero Resp
			return zero, err
		}
		return instance, nil
	})
}
