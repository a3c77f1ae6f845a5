package core

import "github.com/google/uuid"

// NewResourceID returns a fresh identifier for a GPU resource. Identifiers
// only serve to correlate log lines, they are never used as lookup keys.
func NewResourceID() uuid.UUID {
	return uuid.New()
}
