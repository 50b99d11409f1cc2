// ABOUTME: Conversation identifier generation using random version-4 UUIDs
// ABOUTME: Prefers crypto-backed uuid.NewRandom, falls back to math/rand/v2 when it fails

package ident

import (
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand/v2"

	"github.com/google/uuid"
)

// Generator produces conversation identifiers from a strong random source,
// falling back to a pseudo-random source when the strong one fails.
type Generator struct {
	strong io.Reader
}

// New creates a Generator reading from the given strong source.
// A nil reader means crypto/rand.
func New(strong io.Reader) *Generator {
	if strong == nil {
		strong = rand.Reader
	}
	return &Generator{strong: strong}
}

var defaultGenerator = New(nil)

// Generate returns a new version-4 UUID string using crypto/rand.
func Generate() string {
	return defaultGenerator.Generate()
}

// Generate returns a new version-4 UUID string. It never fails: if the strong
// source returns an error the identifier is built from math/rand/v2 instead.
func (g *Generator) Generate() string {
	id, err := uuid.NewRandomFromReader(g.strong)
	if err == nil {
		return id.String()
	}
	return weakV4()
}

// weakV4 formats 16 pseudo-random bytes as an RFC 4122 variant, version 4 UUID.
func weakV4() string {
	var b [16]byte
	for i := 0; i < len(b); i += 8 {
		v := mrand.Uint64()
		for j := 0; j < 8; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10xx

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
