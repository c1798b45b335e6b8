// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const credentialKey = "credential:session"

// BadgerCredentialStore persists the session credential in BadgerDB so the
// operator survives a daemon restart without re-authenticating. Values are
// encrypted at rest when an encryptor is configured.
type BadgerCredentialStore struct {
	db        *badger.DB
	encryptor *CredentialEncryptor
}

// NewBadgerCredentialStore creates a BadgerDB-backed credential store.
// encryptor may be nil (plaintext at rest).
func NewBadgerCredentialStore(db *badger.DB, encryptor *CredentialEncryptor) *BadgerCredentialStore {
	return &BadgerCredentialStore{db: db, encryptor: encryptor}
}

// OpenCredentialDB opens the BadgerDB instance backing the credential store.
// The caller owns closing it.
func OpenCredentialDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open credential store at %s: %w", path, err)
	}
	return db, nil
}

// Token implements CredentialSource.
func (s *BadgerCredentialStore) Token(ctx context.Context) (string, error) {
	var sealed string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoCredential
		}
		if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}
		return item.Value(func(val []byte) error {
			sealed = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	token, err := s.encryptor.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("unseal credential: %w", err)
	}
	return token, nil
}

// Store implements CredentialStore.
func (s *BadgerCredentialStore) Store(ctx context.Context, token string) error {
	sealed, err := s.encryptor.Seal(token)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(credentialKey), []byte(sealed))
	})
}

// Wipe implements CredentialStore. Missing keys are not an error: wipe must
// succeed on an already-clean store.
func (s *BadgerCredentialStore) Wipe(ctx context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(credentialKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete credential: %w", err)
		}
		return nil
	})
}
