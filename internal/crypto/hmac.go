// Package crypto implements request authentication for the CLOB API from
// already-derived credentials. Credential derivation itself lives outside
// this module.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// HMACAuth signs CLOB (L2) API requests with a derived API credential set.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, base64-encoded
	Passphrase string // API passphrase
}

// FromCredentials builds an HMACAuth from externally supplied credentials.
func FromCredentials(c domain.Credentials) *HMACAuth {
	return &HMACAuth{Key: c.APIKey, Secret: c.Secret, Passphrase: c.Passphrase}
}

// L2Headers returns the HTTP headers for an L2 (CLOB) API request. The
// secret is base64-decoded before being used as the HMAC key.
//
// Returned header keys:
//   - POLY_ADDRESS
//   - POLY_API_KEY
//   - POLY_TIMESTAMP
//   - POLY_PASSPHRASE
//   - POLY_SIGNATURE
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is like L2Headers but lets the caller supply the Unix
// timestamp (useful for deterministic testing).
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// If decoding fails, fall back to raw bytes so the caller gets an
		// obviously-wrong signature rather than a panic.
		secretBytes = []byte(h.Secret)
	}

	message := ts + method + path + body
	sig := hmacSHA256Base64(secretBytes, message)

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	return fmt.Sprintf("HMACAuth(key=%s…, passphrase=set)", truncate(h.Key, 6))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns
// the result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
