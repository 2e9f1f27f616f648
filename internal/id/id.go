// Package id generates the identifiers used for entries and guest sessions.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EntryPrefix prefixes every feeding event ID.
const EntryPrefix = "ent"

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "ent-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewEntryID returns a fresh feeding event ID.
func NewEntryID() (string, error) {
	return Generate(EntryPrefix)
}

// NewGuestID returns a random guest session ID.
func NewGuestID() string {
	return uuid.NewString()
}

// ValidGuestID reports whether s is a well-formed guest session ID.
func ValidGuestID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
