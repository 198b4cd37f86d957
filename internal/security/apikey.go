package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Gateway key format: a literal prefix followed by a random base58 body.
// The alphabet excludes the visually ambiguous characters 0, O, I and l.
const (
	KeyPrefix    = "cen_"
	keyBodyLen   = 32
	KeyTotalLen  = len(KeyPrefix) + keyBodyLen
	keyAlphabet  = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	maskGlyph    = "•"
	maskGlyphLen = 14
)

// GenerateAPIKey returns a new random gateway key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keyBodyLen)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: generate api key: %w", errRead)
	}
	body := make([]byte, keyBodyLen)
	for i, b := range buf {
		body[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return KeyPrefix + string(body), nil
}

// HashAPIKey returns the lowercase SHA-256 hex digest of the key. The digest
// is the only representation ever persisted.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ExtractPrefix returns the first 8 characters of the key (prefix literal
// plus the first 4 body characters), used as a non-secret display aid.
func ExtractPrefix(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[:8]
}

// LastFour returns the trailing 4 characters of the key.
func LastFour(key string) string {
	if len(key) < 4 {
		return key
	}
	return key[len(key)-4:]
}

// MaskAPIKey renders a key for display: the prefix, a fixed run of masking
// glyphs, and the last four characters when known. The full secret is never
// reconstructable from the output.
func MaskAPIKey(prefix, lastFour string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < maskGlyphLen; i++ {
		b.WriteString(maskGlyph)
	}
	b.WriteString(lastFour)
	return b.String()
}

// ValidateAPIKey reports whether the candidate has the exact expected shape.
// It fails closed on empty input, wrong length, missing prefix, or any
// character outside the allowed alphabet.
func ValidateAPIKey(key string) bool {
	if len(key) != KeyTotalLen {
		return false
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		return false
	}
	for _, r := range key[len(KeyPrefix):] {
		if !strings.ContainsRune(keyAlphabet, r) {
			return false
		}
	}
	return true
}

// VerifyAPIKey reports whether the candidate hashes to the stored digest.
// The comparison is constant time over the full digest.
func VerifyAPIKey(candidate, storedHash string) bool {
	digest := HashAPIKey(strings.TrimSpace(candidate))
	return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(storedHash))) == 1
}
