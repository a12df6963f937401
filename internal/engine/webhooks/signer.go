package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the HMAC-SHA256 signature of payload under secret,
// returned as lowercase hex. Receivers recompute this over the exact
// request body to authenticate deliveries.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signatureHex matches payload under secret. The
// comparison is constant time; malformed hex never verifies.
func Verify(secret string, payload []byte, signatureHex string) bool {
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hmac.Equal(provided, h.Sum(nil))
}
