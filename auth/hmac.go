package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"sync"
)

// HMAC is a wrapper around the crypto/hmac package making it easier to use.
// It is safe for concurrent use.
type HMAC struct {
	mu   *sync.Mutex
	hmac hash.Hash
}

// NewHMAC creates and returns a new HMAC object.
func NewHMAC(key string) HMAC {
	return HMAC{
		mu:   &sync.Mutex{},
		hmac: hmac.New(sha256.New, []byte(key)),
	}
}

// Hash hashes an input string using HMAC with the secret key
// provided when the HMAC object was created.
func (h HMAC) Hash(input string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hmac.Reset()
	h.hmac.Write([]byte(input))
	b := h.hmac.Sum(nil)
	return base64.URLEncoding.EncodeToString(b)
}
