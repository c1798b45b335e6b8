// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenCredentialDB(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerCredentialStoreRoundTrip(t *testing.T) {
	store := NewBadgerCredentialStore(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := store.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential on empty store, got %v", err)
	}

	if err := store.Store(ctx, "tok-abc"); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "tok-abc" {
		t.Errorf("expected tok-abc, got %q", got)
	}

	// Overwrite replaces the previous credential.
	if err := store.Store(ctx, "tok-def"); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, _ = store.Token(ctx)
	if got != "tok-def" {
		t.Errorf("expected tok-def after overwrite, got %q", got)
	}
}

func TestBadgerCredentialStoreWipe(t *testing.T) {
	store := NewBadgerCredentialStore(openTestDB(t), nil)
	ctx := context.Background()

	// Wipe of an empty store must succeed.
	if err := store.Wipe(ctx); err != nil {
		t.Fatalf("wipe empty store: %v", err)
	}

	if err := store.Store(ctx, "tok-abc"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Wipe(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if _, err := store.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential after wipe, got %v", err)
	}
}

func TestBadgerCredentialStoreEncryptedAtRest(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	enc, err := NewCredentialEncryptor(key)
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	db := openTestDB(t)
	store := NewBadgerCredentialStore(db, enc)
	ctx := context.Background()

	if err := store.Store(ctx, "tok-secret"); err != nil {
		t.Fatalf("store: %v", err)
	}

	// Raw value on disk must not contain the plaintext token.
	var raw string
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(credentialKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = string(val)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("read raw value: %v", err)
	}
	if raw == "tok-secret" {
		t.Error("credential stored in plaintext despite encryptor")
	}

	got, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "tok-secret" {
		t.Errorf("expected tok-secret, got %q", got)
	}
}
