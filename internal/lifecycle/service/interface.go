// Package service provides the cryptographic building blocks of the seal: key share
// splitting, root key verification, KMS wrapping, and in-memory key custody.
package service

import (
	"context"
)

// KeyShareSplitter splits a root key into shares and reconstructs it from them.
type KeyShareSplitter interface {
	// Split divides secret into shares parts, any threshold of which reconstruct it.
	Split(secret []byte, shares, threshold int) ([][]byte, error)

	// Combine reconstructs the secret from at least threshold shares.
	Combine(shares [][]byte) ([]byte, error)
}

// KeyChecker produces and verifies a one-way check value for the root key.
type KeyChecker interface {
	// Hash returns the check value stored in the seal configuration.
	Hash(rootKey []byte) (string, error)

	// Verify reports whether rootKey matches the stored check value.
	Verify(rootKey []byte, check string) (bool, error)
}

// KMSKeeper encrypts and decrypts with a key held by an external KMS.
// *secrets.Keeper satisfies this interface.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens KMS keepers by URI.
type KMSService interface {
	// OpenKeeper opens a keeper for the configured KMS provider.
	// Returns an error if the URI is invalid or the provider is unreachable.
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}
