package signature

import (
	"crypto/hmac"
	"time"
)

// DefaultTolerance is the maximum clock skew accepted between signer and
// verifier before a signature is rejected as stale.
const DefaultTolerance = 5 * time.Minute

// Verify checks whether the given signature matches the expected HMAC-SHA256
// signature for the payload, secret, and timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyWithTolerance is Verify plus a staleness check on the signed
// timestamp, bounding replay of captured requests.
func VerifyWithTolerance(payload []byte, secret string, timestamp int64, sig string, tolerance time.Duration) bool {
	skew := time.Since(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return false
	}
	return Verify(payload, secret, timestamp, sig)
}
