// Package sluggen provides slug generation functionality.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
)

// Lowercase alphanumerics with the ambiguous 0, o, 1, i, l removed, so
// generated slugs survive being read aloud or retyped.
const slugChars = "23456789abcdefghjkmnpqrstuvwxyz"

// Generator generates URL slugs.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// randomGenerator implements Generator over the unambiguous alphabet.
// It is safe for concurrent use.
type randomGenerator struct{}

// NewRandom returns a new random slug generator.
func NewRandom() Generator {
	return &randomGenerator{}
}

// Generate generates a random slug of the specified length.
func (g *randomGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = slugChars[int(b[i])%len(slugChars)]
	}

	return string(b), nil
}
