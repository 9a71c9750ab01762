// Package tokens generates and digests the opaque secrets the core hands out:
// refresh tokens, device codes and the short human-entry user codes.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digest returns a deterministic keyed digest (HMAC-SHA256, hex) of a secret.
// Only the digest is persisted; lookups hash the presented secret with the
// same key. The key lives in configuration, never next to the digests.
func Digest(key []byte, secret string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// userCodeCharset excludes visually ambiguous characters (0/O, 1/I/L, U/V).
const userCodeCharset = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

// userCodeGroups is the XXXX-XXXX shape: two groups of four.
const (
	userCodeGroupLen = 4
	userCodeGroups   = 2
)

// NewUserCode genera un user code con forma XXXX-XXXX.
func NewUserCode() (string, error) {
	raw := make([]byte, userCodeGroupLen*userCodeGroups)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, r := range raw {
		if i > 0 && i%userCodeGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(userCodeCharset[int(r)%len(userCodeCharset)])
	}
	return b.String(), nil
}

// NormalizeUserCode canonicalizes human input: trims, uppercases and restores
// the XXXX-XXXX hyphen so "abcd2345" and "ABCD-2345" resolve the same code.
func NormalizeUserCode(s string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if len(cleaned) != userCodeGroupLen*userCodeGroups {
		return "", fmt.Errorf("user code must have %d characters", userCodeGroupLen*userCodeGroups)
	}
	for _, c := range cleaned {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("user code contains invalid character %q", c)
		}
	}
	return cleaned[:userCodeGroupLen] + "-" + cleaned[userCodeGroupLen:], nil
}
