package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewRunID returns the identifier for a submitted run.
func NewRunID() string {
	return uuid.NewString()
}

// GenerateRandomHex returns n random bytes as 2n hex characters. Used for
// probe object names and test key material.
func GenerateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
