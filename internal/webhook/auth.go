package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// verifyHMACSignature checks header (GitHub's "sha256=<hex>" format)
// against an HMAC-SHA256 of body keyed by secret. The comparison itself
// is constant-time in the decoded signature length; an empty secret
// always fails closed.
func verifyHMACSignature(body []byte, header string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	given, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(given, expected) == 1
}

// verifyToken constant-time-compares a bearer-style token (GitLab's
// X-Gitlab-Token, or the operator-configured Bitbucket out-of-band
// token) against the repository's configured secret.
// Differing lengths fail immediately; GitLab tokens are plaintext, not
// HMAC digests, so there is no fixed-length digest to pad to.
func verifyToken(given string, secret []byte) bool {
	if len(secret) == 0 || len(given) != len(secret) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), secret) == 1
}
