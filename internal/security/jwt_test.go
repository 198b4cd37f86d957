package security

import (
	"strings"
	"testing"
	"time"
)

func TestSignAndParseAdminToken(t *testing.T) {
	token, errSign := SignAdminToken("test-secret", 42, "root", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	claims, errParse := ParseAdminToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.AdminID != 42 {
		t.Fatalf("expected admin id 42, got %d", claims.AdminID)
	}
	if claims.Username != "root" {
		t.Fatalf("expected username root, got %q", claims.Username)
	}
}

func TestParseAdminToken_WrongSecret(t *testing.T) {
	token, errSign := SignAdminToken("test-secret", 1, "root", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errParse := ParseAdminToken("other-secret", token); errParse == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestParseAdminToken_Expired(t *testing.T) {
	token, errSign := SignAdminToken("test-secret", 1, "root", -time.Minute)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errParse := ParseAdminToken("test-secret", token); errParse == nil {
		t.Fatal("expected parse failure for expired token")
	}
}

func TestSignAdminToken_EmptySecret(t *testing.T) {
	if _, errSign := SignAdminToken("", 1, "root", time.Hour); errSign == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if strings.Contains(hash, "hunter2") {
		t.Fatal("hash must not contain the plaintext")
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "hunter3") {
		t.Fatal("expected wrong password to fail")
	}
}
