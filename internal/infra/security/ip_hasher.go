// File: internal/infra/security/ip_hasher.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
)

// IPHasher produces a stable, keyed digest of a requester IP for the audit
// ledger. Raw IPs are never persisted; only this hash is. Keyed HMAC rather
// than plain SHA-256 so the small IPv4 space cannot be brute-forced offline
// without the service secret.
type IPHasher struct {
	key []byte
}

// NewIPHasher constructs a hasher. Key must be at least 16 bytes.
func NewIPHasher(key string) (*IPHasher, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("ip hash key must be at least 16 bytes; got %d", len(key))
	}
	return &IPHasher{key: []byte(key)}, nil
}

// Hash returns the hex HMAC-SHA256 of the IP portion of addr. A host:port
// remote address is reduced to its host first so the ephemeral port does not
// split one client across hashes.
func (h *IPHasher) Hash(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}
