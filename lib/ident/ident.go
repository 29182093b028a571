// Package ident produces the opaque request identifiers used to correlate responses.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// Source produces unique opaque identifiers on demand.
type Source interface {
	Next() (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (string, error)

// Next implements Source
func (f SourceFunc) Next() (string, error) {
	return f()
}

// UUID returns a Source of canonical time-ordered UUIDv7 strings.
func UUID() Source {
	return SourceFunc(GenerateUUID)
}

// Compact returns a Source of UUIDv7 strings with the dashes removed.
func Compact() Source {
	return SourceFunc(GenerateCompactUUID)
}

// GenerateUUID returns a canonical UUIDv7 string.
func GenerateUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// GenerateCompactUUID returns a UUIDv7 string without dashes.
func GenerateCompactUUID() (string, error) {
	s, err := GenerateUUID()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(s, "-", ""), nil
}
