// Package platform holds the process-level adapters the crawler core is
// written against: wall clock, lead identity digests and run IDs.
package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock reports wall time in UTC so stored timestamps and discovery day
// boundaries agree across hosts.
type Clock struct{}

// NewClock returns the system clock.
func NewClock() Clock { return Clock{} }

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Hasher digests lead identity keys into hex SHA-256 lead IDs.
type Hasher struct{}

// NewHasher returns a SHA-256 hasher.
func NewHasher() Hasher { return Hasher{} }

// Hash returns the lowercase hex digest of data.
func (Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunID returns a time-ordered UUIDv7 used to tag one process run.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}
