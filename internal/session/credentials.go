// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredential indicates the store holds no session credential. The
// request pipeline treats this as "send unauthenticated", never as a failure.
var ErrNoCredential = errors.New("no session credential stored")

// CredentialSource is the read-only surface the request pipeline uses. The
// pipeline never writes credentials.
type CredentialSource interface {
	// Token returns the current session credential. ErrNoCredential when
	// absent.
	Token(ctx context.Context) (string, error)
}

// CredentialStore extends CredentialSource with the mutations the login flow
// and the teardown sequence need.
type CredentialStore interface {
	CredentialSource

	// Store replaces the current credential.
	Store(ctx context.Context, token string) error

	// Wipe removes every local session artifact.
	Wipe(ctx context.Context) error
}

// MemoryCredentialStore is a process-local CredentialStore. Suitable for
// tests and for deployments that do not want the credential surviving a
// daemon restart.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

// Token implements CredentialSource.
func (s *MemoryCredentialStore) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Store implements CredentialStore.
func (s *MemoryCredentialStore) Store(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Wipe implements CredentialStore.
func (s *MemoryCredentialStore) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}
