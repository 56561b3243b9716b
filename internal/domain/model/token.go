package model

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"time"
)

// TokenGraceWindow is how long the previous counter token stays valid after
// a rotation. Rotating again within the window discards the oldest token:
// only one previous token is ever honored.
const TokenGraceWindow = 30 * time.Minute

// TokenSet is the anti-replay state printed on a merchant's counter QR code.
// It is a value type so validity stays a pure function, testable without
// storage.
type TokenSet struct {
	Current   string
	Previous  string     // empty until first rotation
	RotatedAt *time.Time // nil until first rotation
}

// NewTokenSet mints the initial counter token for a new program.
func NewTokenSet() TokenSet {
	return TokenSet{Current: newCounterToken()}
}

// Rotate moves the current token to previous, stamps the rotation time and
// generates a fresh current token. The whole swap happens on the value, so a
// single repository save keeps it atomic.
func (t TokenSet) Rotate(now time.Time) TokenSet {
	return TokenSet{
		Current:   newCounterToken(),
		Previous:  t.Current,
		RotatedAt: &now,
	}
}

// IsValid reports whether a scanned token is accepted: the current token at
// any time, or the previous token strictly within the grace window after
// rotation. An in-flight scan against a token valid a moment before rotation
// still succeeds.
func (t TokenSet) IsValid(provided string, now time.Time) bool {
	if provided == "" {
		return false
	}
	if provided == t.Current {
		return true
	}
	if t.Previous != "" && provided == t.Previous && t.RotatedAt != nil {
		return now.Sub(*t.RotatedAt) <= TokenGraceWindow
	}
	return false
}

// newCounterToken returns an opaque, URL-safe random token.
func newCounterToken() string {
	buf := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
