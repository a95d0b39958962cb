// Package id provides short, URL-safe unique identifiers backed by nanoid.
//
// Identifiers are addressing values only. Replay re-applies persisted events
// with their original identifiers, so generation here is deliberately outside
// the deterministic clock/random seams; nothing in fold or decide logic may
// branch on an identifier's value.
package id

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for the random portion of an ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 16

// Well-known prefixes used across the runtime.
const (
	PrefixEvent       = "ev"
	PrefixCommand     = "cmd"
	PrefixCorrelation = "cor"
	PrefixRun         = "run"
)

// New returns a new unique ID of the form "<prefix>-<random>".
func New(prefix string) (string, error) {
	random, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	if prefix == "" {
		return random, nil
	}
	return prefix + "-" + random, nil
}

// MustNew is New for call sites where id generation cannot reasonably fail
// (nanoid only errors on invalid alphabet/length arguments).
func MustNew(prefix string) string {
	value, err := New(prefix)
	if err != nil {
		panic(err)
	}
	return value
}

// HasPrefix reports whether the ID carries the given well-known prefix.
func HasPrefix(value, prefix string) bool {
	return strings.HasPrefix(value, prefix+"-")
}
