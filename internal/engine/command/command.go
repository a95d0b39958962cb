// Package command defines the transient request shape the runtime validates
// against aggregate state, and the pure decision that handling produces.
//
// Commands are never persisted: a command either yields events or is
// rejected without any recorded side effect.
package command

import "strings"

// Type identifies the kind of command, e.g. "narrative.advance_beat".
type Type string

// IsValid reports whether the command type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Command is a request to change one aggregate's state.
type Command struct {
	// CommandID uniquely identifies this command instance; it becomes the
	// causation id of the first event the command produces.
	CommandID string
	// Type identifies the kind of command.
	Type Type
	// AggregateID identifies the target aggregate instance.
	AggregateID string
	// CorrelationID is generated once per external request and threaded
	// through every event the command produces.
	CorrelationID string
	// PayloadJSON holds command-specific parameters as JSON.
	PayloadJSON []byte
}
