package webhook

import (
	"net/http"

	"github.com/google/go-github/v57/github"
)

// VerifySignature reports whether header is a valid "<algorithm>=<hex>" HMAC
// of body under secret. sha1, sha256 and sha512 are accepted. An empty
// secret or a malformed header never verifies.
func VerifySignature(secret, body []byte, header string) bool {
	if len(secret) == 0 || header == "" {
		return false
	}
	return github.ValidateSignature(header, body, secret) == nil
}

// signatureHeader prefers the SHA-256 header GitHub sends alongside the
// legacy SHA-1 one.
func signatureHeader(r *http.Request) string {
	if sig := r.Header.Get(github.SHA256SignatureHeader); sig != "" {
		return sig
	}
	return r.Header.Get(github.SHA1SignatureHeader)
}
