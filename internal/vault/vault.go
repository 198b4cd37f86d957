package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrDecryption is returned for any decrypt failure: tampered ciphertext,
// wrong tenant scope, or malformed input. Callers must treat it as
// "credential unavailable" rather than a fatal condition.
var ErrDecryption = errors.New("vault: decryption failed")

const derivedKeyLen = 32

// Vault encrypts and decrypts upstream provider credentials. Keys are
// derived per tenant from a shared master key, so ciphertext produced for
// one tenant cannot be opened under another tenant's scope.
type Vault struct {
	masterKey []byte
}

// New constructs a Vault from the configured master key. The key may be a
// hex string or raw bytes; either way at least 32 bytes of material are
// required.
func New(masterKey string) (*Vault, error) {
	trimmed := strings.TrimSpace(masterKey)
	if trimmed == "" {
		return nil, fmt.Errorf("vault: master key is empty")
	}
	if decoded, errDecode := hex.DecodeString(trimmed); errDecode == nil && len(decoded) >= derivedKeyLen {
		return &Vault{masterKey: decoded}, nil
	}
	if len(trimmed) < derivedKeyLen {
		return nil, fmt.Errorf("vault: master key must be at least %d bytes", derivedKeyLen)
	}
	return &Vault{masterKey: []byte(trimmed)}, nil
}

// deriveKey produces the AES key for a tenant via HKDF-SHA256.
func (v *Vault) deriveKey(tenantID string) ([]byte, error) {
	info := []byte("cencori:provider-key:" + strings.TrimSpace(tenantID))
	reader := hkdf.New(sha256.New, v.masterKey, nil, info)
	key := make([]byte, derivedKeyLen)
	if _, errRead := io.ReadFull(reader, key); errRead != nil {
		return nil, fmt.Errorf("vault: derive key: %w", errRead)
	}
	return key, nil
}

// Encrypt seals the plaintext under the tenant's derived key with AES-GCM
// and returns nonce||ciphertext, base64 encoded.
func (v *Vault) Encrypt(plaintext, tenantID string) (string, error) {
	if v == nil || len(v.masterKey) == 0 {
		return "", fmt.Errorf("vault: not initialized")
	}
	key, errDerive := v.deriveKey(tenantID)
	if errDerive != nil {
		return "", errDerive
	}
	block, errCipher := aes.NewCipher(key)
	if errCipher != nil {
		return "", fmt.Errorf("vault: new cipher: %w", errCipher)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("vault: new gcm: %w", errGCM)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, errRead := rand.Read(nonce); errRead != nil {
		return "", fmt.Errorf("vault: nonce: %w", errRead)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt is the exact inverse of Encrypt. Any integrity or scope failure
// yields ErrDecryption.
func (v *Vault) Decrypt(ciphertext, tenantID string) (string, error) {
	if v == nil || len(v.masterKey) == 0 {
		return "", fmt.Errorf("vault: not initialized")
	}
	raw, errDecode := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if errDecode != nil {
		return "", ErrDecryption
	}
	key, errDerive := v.deriveKey(tenantID)
	if errDerive != nil {
		return "", errDerive
	}
	block, errCipher := aes.NewCipher(key)
	if errCipher != nil {
		return "", fmt.Errorf("vault: new cipher: %w", errCipher)
	}
	gcm, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("vault: new gcm: %w", errGCM)
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrDecryption
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, errOpen := gcm.Open(nil, nonce, sealed, nil)
	if errOpen != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
