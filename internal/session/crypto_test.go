// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"errors"
	"strings"
	"testing"
)

func TestCredentialEncryptorRoundTrip(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	enc, err := NewCredentialEncryptor(key)
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	plaintext := "eyJhbGciOiJIUzI1NiJ9.secret-session-token"
	sealed, err := enc.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("sealed output equals plaintext")
	}
	if strings.Contains(sealed, "secret-session-token") {
		t.Fatal("sealed output leaks plaintext")
	}

	opened, err := enc.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != plaintext {
		t.Errorf("round trip mismatch: got %q", opened)
	}
}

func TestCredentialEncryptorSealIsNondeterministic(t *testing.T) {
	key, _ := GenerateMasterKey()
	enc, err := NewCredentialEncryptor(key)
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	a, _ := enc.Seal("token")
	b, _ := enc.Seal("token")
	if a == b {
		t.Error("two seals of the same plaintext produced identical ciphertext")
	}
}

func TestCredentialEncryptorWrongKeyFails(t *testing.T) {
	keyA, _ := GenerateMasterKey()
	keyB, _ := GenerateMasterKey()
	encA, _ := NewCredentialEncryptor(keyA)
	encB, _ := NewCredentialEncryptor(keyB)

	sealed, err := encA.Seal("token")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := encB.Open(sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestCredentialEncryptorMalformedInput(t *testing.T) {
	key, _ := GenerateMasterKey()
	enc, _ := NewCredentialEncryptor(key)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"too short", "c2hvcnQ="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := enc.Open(tt.input); !errors.Is(err, ErrBadCiphertext) {
				t.Errorf("expected ErrBadCiphertext, got %v", err)
			}
		})
	}
}

func TestNewCredentialEncryptorValidation(t *testing.T) {
	t.Run("empty key disables encryption", func(t *testing.T) {
		enc, err := NewCredentialEncryptor("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if enc != nil {
			t.Fatal("expected nil encryptor for empty key")
		}
		out, err := enc.Seal("passthrough")
		if err != nil || out != "passthrough" {
			t.Errorf("nil encryptor must pass through, got %q err=%v", out, err)
		}
	})

	t.Run("invalid base64 rejected", func(t *testing.T) {
		if _, err := NewCredentialEncryptor("%%%"); err == nil {
			t.Error("expected error for invalid base64 key")
		}
	})

	t.Run("short key rejected", func(t *testing.T) {
		if _, err := NewCredentialEncryptor("c2hvcnQ="); err == nil {
			t.Error("expected error for short key")
		}
	})
}
