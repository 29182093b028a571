package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// StatusDone is the terminal status marker. No frame follows it for the same id.
const StatusDone = "done"

var (
	// ErrAmbiguousFrame reports a frame carrying a namespace together with output, status or error.
	ErrAmbiguousFrame = errors.New("frame: namespace frame carries other evaluation fields")
	// ErrMissingID reports a non-handshake frame without a request id.
	ErrMissingID = errors.New("frame: missing id")
)

// Kind is the classification of an inbound frame.
type Kind uint8

const (
	KindUnknown    Kind = iota
	KindValue           // ns (+ value)
	KindOutput          // out
	KindDone            // status containing "done"
	KindError           // err
	KindDiagnostic      // root-ex
	KindStatus          // status without "done"
	KindHandshake       // new-session
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindOutput:
		return "output"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	case KindDiagnostic:
		return "diagnostic"
	case KindStatus:
		return "status"
	case KindHandshake:
		return "handshake"
	default:
		return "unknown"
	}
}

type wireResponse struct {
	ID         idString        `json:"id"`
	Session    string          `json:"session"`
	NewSession string          `json:"new-session"`
	NS         *string         `json:"ns"`
	Value      json.RawMessage `json:"value"`
	Out        *string         `json:"out"`
	Err        *string         `json:"err"`
	Status     statusList      `json:"status"`
	RootEx     json.RawMessage `json:"root-ex"`
}

// idString accepts a string or a numeric id. Numbers keep their literal text.
type idString string

func (i *idString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = idString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*i = idString(n.String())
	return nil
}

// statusList accepts a list of status strings or a single status string.
type statusList []string

func (s *statusList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = statusList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("status must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// Response is a decoded inbound frame. Every protocol field is optional.
type Response struct {
	ID         string
	Session    string
	NewSession string
	NS         *string
	Value      json.RawMessage
	Out        *string
	Err        *string
	Status     []string
	RootEx     json.RawMessage

	// Fields holds every top-level key of the frame, including the ones above.
	Fields map[string]json.RawMessage
	// Raw is the frame exactly as received.
	Raw []byte
}

// Decode parses a single JSON object frame.
func Decode(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return Response{}, fmt.Errorf("frame: failed to decode response: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Response{}, fmt.Errorf("frame: failed to decode response fields: %w", err)
	}

	return Response{
		ID:         string(w.ID),
		Session:    w.Session,
		NewSession: w.NewSession,
		NS:         w.NS,
		Value:      nonNull(w.Value),
		Out:        w.Out,
		Err:        w.Err,
		Status:     w.Status,
		RootEx:     nonBlank(w.RootEx),
		Fields:     fields,
		Raw:        append([]byte(nil), data...),
	}, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// nonBlank also drops empty strings and false, which the peer uses for "no diagnostic".
func nonBlank(raw json.RawMessage) json.RawMessage {
	switch string(raw) {
	case `""`, "false":
		return nil
	}
	return nonNull(raw)
}

// present reports whether a string field carries content. Empty strings count as absent.
func present(s *string) bool {
	return s != nil && *s != ""
}

// HasStatus reports whether the status list contains s.
func (r Response) HasStatus(s string) bool {
	return slices.Contains(r.Status, s)
}

// IsDone reports whether the frame is terminal for its id.
func (r Response) IsDone() bool {
	return r.HasStatus(StatusDone)
}

// Kind classifies the frame. The order of the checks is the dispatch precedence.
// Empty ns, out and err fields are treated as absent.
func (r Response) Kind() Kind {
	switch {
	case present(r.NS):
		return KindValue
	case present(r.Out):
		return KindOutput
	case r.IsDone():
		return KindDone
	case present(r.Err):
		return KindError
	case r.RootEx != nil:
		return KindDiagnostic
	case len(r.Status) > 0:
		return KindStatus
	case r.NewSession != "":
		return KindHandshake
	default:
		return KindUnknown
	}
}

// Validate checks the framing invariants that classification relies on.
func (r Response) Validate() error {
	if r.ID == "" && r.NewSession == "" {
		return ErrMissingID
	}
	if present(r.NS) && (present(r.Out) || present(r.Err) || len(r.Status) > 0) {
		return ErrAmbiguousFrame
	}
	return nil
}

// Namespace returns the reported namespace, or "" when absent.
func (r Response) Namespace() string {
	if r.NS == nil {
		return ""
	}
	return *r.NS
}

// DecodeValue unmarshals the value field into v.
func (r Response) DecodeValue(v any) error {
	if r.Value == nil {
		return fmt.Errorf("frame: response %s has no value", r.ID)
	}
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("frame: failed to decode value of %s: %w", r.ID, err)
	}
	return nil
}

// ValueAny returns the value field decoded into plain Go values, or nil.
func (r Response) ValueAny() any {
	var v any
	if r.Value == nil || json.Unmarshal(r.Value, &v) != nil {
		return nil
	}
	return v
}

// Struct returns the whole frame as a protobuf Struct.
func (r Response) Struct() (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(r.Raw, s); err != nil {
		return nil, fmt.Errorf("frame: failed to convert response %s: %w", r.ID, err)
	}
	return s, nil
}
