package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewShareToken returns the opaque token embedded in a peer invitation
// link. Compact enough to paste into chat, random enough to not guess.
func NewShareToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
