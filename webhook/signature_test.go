package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(prefix string, newHash func() hash.Hash, secret, body []byte) string {
	mac := hmac.New(newHash, secret)
	mac.Write(body)
	return prefix + "=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAlgorithms(t *testing.T) {
	secret := []byte("It's a Secret to Everybody")
	body := []byte("Hello, World!")

	assert.True(t, VerifySignature(secret, body, sign("sha1", sha1.New, secret, body)))
	assert.True(t, VerifySignature(secret, body, sign("sha256", sha256.New, secret, body)))
	assert.True(t, VerifySignature(secret, body, sign("sha512", sha512.New, secret, body)))
	assert.True(t, VerifySignature(secret, body,
		"sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17"))
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	secret := []byte("secret")
	body := []byte(`{"zen":"Keep it logically awesome."}`)
	valid := sign("sha256", sha256.New, secret, body)

	cases := map[string]struct {
		secret []byte
		body   []byte
		header string
	}{
		"empty header":      {secret, body, ""},
		"missing separator": {secret, body, "sha256"},
		"unknown algorithm": {secret, body, "md5=" + valid[len("sha256="):]},
		"non hex digest":    {secret, body, "sha256=zzzz"},
		"wrong secret":      {[]byte("other"), body, valid},
		"tampered body":     {secret, []byte(`{"zen":"changed"}`), valid},
		"empty secret":      {nil, body, sign("sha256", sha256.New, nil, body)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, VerifySignature(tc.secret, tc.body, tc.header))
		})
	}
}
