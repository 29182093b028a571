// Package repl provides utility functions for the REPL client.
// This file contains request id generation.
package repl

import "fmt"

// generateRequestID returns an identifier not present in either correlation table
func (c *Client) generateRequestID() (string, error) {
	const maxAttempts = 100 // Prevent infinite loop with a misbehaving source

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := c.ids.Next()
		if err != nil {
			return "", fmt.Errorf("repl: failed to generate request id: %w", err)
		}
		if id == "" {
			continue
		}
		if !c.registry.contains(id) {
			return id, nil
		}
	}

	return "", fmt.Errorf("repl: no unused request id after %d attempts", maxAttempts)
}
