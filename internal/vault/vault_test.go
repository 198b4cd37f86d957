package vault

import (
	"errors"
	"strings"
	"testing"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, errNew := New(testMasterKey)
	if errNew != nil {
		t.Fatalf("new vault: %v", errNew)
	}
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)
	ciphertext, errEncrypt := v.Encrypt("sk-upstream-secret", "org-a")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if strings.Contains(ciphertext, "sk-upstream-secret") {
		t.Fatal("ciphertext leaks plaintext")
	}
	plaintext, errDecrypt := v.Decrypt(ciphertext, "org-a")
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if plaintext != "sk-upstream-secret" {
		t.Fatalf("expected round trip, got %q", plaintext)
	}
}

func TestVault_WrongTenantFails(t *testing.T) {
	v := newTestVault(t)
	ciphertext, errEncrypt := v.Encrypt("sk-upstream-secret", "org-a")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if _, errDecrypt := v.Decrypt(ciphertext, "org-b"); !errors.Is(errDecrypt, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for wrong tenant, got %v", errDecrypt)
	}
}

func TestVault_TamperedCiphertextFails(t *testing.T) {
	v := newTestVault(t)
	ciphertext, errEncrypt := v.Encrypt("sk-upstream-secret", "org-a")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	tampered := ciphertext[:len(ciphertext)-2] + "AA"
	if tampered == ciphertext {
		tampered = ciphertext[:len(ciphertext)-2] + "BB"
	}
	if _, errDecrypt := v.Decrypt(tampered, "org-a"); !errors.Is(errDecrypt, ErrDecryption) {
		t.Fatalf("expected ErrDecryption for tampered input, got %v", errDecrypt)
	}
}

func TestVault_MalformedInputFails(t *testing.T) {
	v := newTestVault(t)
	for _, candidate := range []string{"", "not base64!!", "AAAA"} {
		if _, errDecrypt := v.Decrypt(candidate, "org-a"); !errors.Is(errDecrypt, ErrDecryption) {
			t.Fatalf("expected ErrDecryption for %q, got %v", candidate, errDecrypt)
		}
	}
}

func TestNew_RejectsShortKey(t *testing.T) {
	if _, errNew := New("too-short"); errNew == nil {
		t.Fatal("expected error for short master key")
	}
	if _, errNew := New("   "); errNew == nil {
		t.Fatal("expected error for empty master key")
	}
}

func TestVault_DistinctCiphertexts(t *testing.T) {
	v := newTestVault(t)
	first, _ := v.Encrypt("secret", "org-a")
	second, _ := v.Encrypt("secret", "org-a")
	if first == second {
		t.Fatal("expected fresh nonce per encryption")
	}
}
