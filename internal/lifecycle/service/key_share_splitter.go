package service

import (
	"errors"

	"github.com/hashicorp/vault/shamir"
)

type shamirSplitter struct{}

// NewShamirSplitter creates a KeyShareSplitter using Shamir's secret sharing over GF(2^8).
// A threshold of one is only valid with a single share, which is the secret itself.
func NewShamirSplitter() KeyShareSplitter {
	return &shamirSplitter{}
}

func (s *shamirSplitter) Split(secret []byte, shares, threshold int) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("cannot split an empty secret")
	}
	if threshold == 1 {
		if shares != 1 {
			return nil, errors.New("threshold of 1 requires exactly 1 share")
		}
		return [][]byte{append([]byte(nil), secret...)}, nil
	}
	return shamir.Split(secret, shares, threshold)
}

func (s *shamirSplitter) Combine(shares [][]byte) ([]byte, error) {
	switch len(shares) {
	case 0:
		return nil, errors.New("no shares to combine")
	case 1:
		return append([]byte(nil), shares[0]...), nil
	}
	return shamir.Combine(shares)
}
