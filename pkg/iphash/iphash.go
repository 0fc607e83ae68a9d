// Package iphash derives a one-way hash of client IP addresses so that
// raw addresses never reach the event store.
package iphash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type Hasher struct {
	salt []byte
}

func New(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Hash returns the hex-encoded HMAC-SHA256 of the address under the
// configured salt. An empty address hashes to the empty string.
func (h *Hasher) Hash(ip string) string {
	if ip == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
