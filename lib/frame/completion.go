package frame

import (
	"encoding/json"
	"fmt"
)

// Candidate is a single completion suggestion.
// Peers answer either with bare strings or with objects carrying metadata.
type Candidate struct {
	Candidate string `json:"candidate"`
	NS        string `json:"ns,omitempty"`
	Type      string `json:"type,omitempty"`
}

// UnmarshalJSON accepts a bare string or a candidate object.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Candidate{Candidate: s}
		return nil
	}

	type plain Candidate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("frame: invalid completion candidate %s: %w", data, err)
	}
	*c = Candidate(p)
	return nil
}

// Candidates decodes the completion list carried by a response.
// Older peers put it in value, newer ones in completions.
func Candidates(r Response) ([]Candidate, error) {
	raw := r.Value
	if raw == nil {
		raw = nonNull(r.Fields["completions"])
	}
	if raw == nil {
		return nil, nil
	}

	var out []Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("frame: failed to decode completions of %s: %w", r.ID, err)
	}
	return out, nil
}

// Strings returns the candidate texts.
func Strings(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Candidate
	}
	return out
}
