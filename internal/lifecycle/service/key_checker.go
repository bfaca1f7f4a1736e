package service

import (
	"fmt"

	"github.com/allisson/go-pwdhash"
)

type argon2KeyChecker struct {
	hasher *pwdhash.PasswordHasher
}

// NewKeyChecker creates a KeyChecker that stores an Argon2id hash of the root key.
func NewKeyChecker() (KeyChecker, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, fmt.Errorf("failed to create key hasher: %w", err)
	}
	return &argon2KeyChecker{hasher: hasher}, nil
}

func (a *argon2KeyChecker) Hash(rootKey []byte) (string, error) {
	return a.hasher.Hash(rootKey)
}

func (a *argon2KeyChecker) Verify(rootKey []byte, check string) (bool, error) {
	return a.hasher.Verify(rootKey, check)
}
