package model

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// FoldIdentifier normalizes emails and usernames for storage and lookup.
func FoldIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}
