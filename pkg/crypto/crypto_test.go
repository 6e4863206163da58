package crypto

import (
	"bytes"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	if len(salt) != SaltSize {
		t.Fatalf("salt length %d, want %d", len(salt), SaltSize)
	}

	hash := HashPassword("secret123", salt)
	if !VerifyPassword("secret123", salt, hash) {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword("secret124", salt, hash) {
		t.Fatal("wrong password accepted")
	}

	other, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	if bytes.Equal(salt, other) {
		t.Fatal("two salts identical")
	}
	if VerifyPassword("secret123", other, hash) {
		t.Fatal("hash verified under the wrong salt")
	}
}
