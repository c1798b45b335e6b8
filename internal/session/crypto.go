// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Credential encryption errors.
var (
	// ErrDecryptFailed indicates the stored ciphertext could not be opened,
	// typically after a master key change.
	ErrDecryptFailed = errors.New("credential decryption failed")

	// ErrBadCiphertext indicates the stored blob is malformed.
	ErrBadCiphertext = errors.New("invalid credential ciphertext")
)

const encryptionContext = "iva-console-credential-at-rest"

// CredentialEncryptor provides AES-GCM encryption for the credential cache.
// A nil encryptor disables encryption: values pass through unchanged.
type CredentialEncryptor struct {
	aead cipher.AEAD
}

// NewCredentialEncryptor derives an AES-256-GCM key from the base64-encoded
// master key using HKDF-SHA256. Returns (nil, nil) for an empty key, which
// disables encryption at rest.
func NewCredentialEncryptor(masterKeyB64 string) (*CredentialEncryptor, error) {
	if masterKeyB64 == "" {
		return nil, nil
	}

	masterKey, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(masterKey) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(encryptionContext)), key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &CredentialEncryptor{aead: aead}, nil
}

// Seal encrypts a credential, prepending the nonce, and returns base64.
func (e *CredentialEncryptor) Seal(plaintext string) (string, error) {
	if e == nil || e.aead == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a base64 blob produced by Seal.
func (e *CredentialEncryptor) Open(ciphertext string) (string, error) {
	if e == nil || e.aead == nil || ciphertext == "" {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrBadCiphertext)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrBadCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptFailed, err.Error())
	}
	return string(plaintext), nil
}

// GenerateMasterKey generates a 256-bit master key as base64, suitable for
// the session.master_key config field.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
