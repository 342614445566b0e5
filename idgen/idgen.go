// Package idgen mints opaque identifiers for event listener registration.
// It is kept separate from internal/engine so the state machine itself
// never has to import a concrete ID scheme.
package idgen

import "github.com/google/uuid"

// Generator mints a fresh, unique string identifier on each call.
type Generator interface {
	Generate() string
}

// UUIDGenerator generates RFC 4122 UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator returns the default generator.
func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
