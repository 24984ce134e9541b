// Package idgen centralizes identifier generation so every component
// (executions, events, correlation ids) draws from the same scheme instead
// of ad hoc uuid.New() calls scattered across the codebase.
package idgen

import "github.com/google/uuid"

// ID is a UUIDv4 string. It is a plain string type, not a struct wrapper,
// so it serializes into JSON/JSONB/templates without custom marshalers.
type ID string

// String satisfies fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether id is the empty string.
func (id ID) IsZero() bool { return id == "" }

// New generates a fresh random ID.
func New() ID {
	return ID(uuid.NewString())
}

// NewExecutionID generates an identifier for a workflow execution.
func NewExecutionID() ID { return New() }

// NewEventID generates an identifier for an ingress/queue event.
func NewEventID() ID { return New() }

// Parse validates s as a UUID and returns it as an ID.
func Parse(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ID(s), nil
}
