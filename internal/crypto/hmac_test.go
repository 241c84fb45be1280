package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

func TestL2HeadersAtDeterministic(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))
	auth := &HMACAuth{Key: "api-key", Secret: secret, Passphrase: "phrase"}

	headers := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)

	assert.Equal(t, "0xabc", headers["POLY_ADDRESS"])
	assert.Equal(t, "api-key", headers["POLY_API_KEY"])
	assert.Equal(t, "1700000000", headers["POLY_TIMESTAMP"])
	assert.Equal(t, "phrase", headers["POLY_PASSPHRASE"])

	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write([]byte("1700000000POST/order" + `{"x":1}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, headers["POLY_SIGNATURE"])

	// Same inputs, same signature.
	again := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	assert.Equal(t, headers["POLY_SIGNATURE"], again["POLY_SIGNATURE"])

	// Any input change moves the signature.
	other := auth.L2HeadersAt("0xabc", "GET", "/order", `{"x":1}`, 1700000000)
	assert.NotEqual(t, headers["POLY_SIGNATURE"], other["POLY_SIGNATURE"])
}

func TestL2HeadersNonBase64SecretDoesNotPanic(t *testing.T) {
	auth := &HMACAuth{Key: "k", Secret: "!!not-base64!!", Passphrase: "p"}

	headers := auth.L2HeadersAt("0xabc", "GET", "/orders", "", 1700000000)
	require.NotEmpty(t, headers["POLY_SIGNATURE"])
}

func TestFromCredentials(t *testing.T) {
	auth := FromCredentials(domain.Credentials{APIKey: "k", Secret: "s", Passphrase: "p"})
	assert.Equal(t, "k", auth.Key)
	assert.Equal(t, "s", auth.Secret)
	assert.Equal(t, "p", auth.Passphrase)
}

func TestStringRedactsSecret(t *testing.T) {
	auth := &HMACAuth{Key: "abcdefghij", Secret: "topsecret", Passphrase: "phrase"}
	s := auth.String()
	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "phrase")
	assert.Contains(t, s, "abcdef")
}
