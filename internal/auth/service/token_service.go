package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
)

// tokenService implements TokenService using SHA-256 for token hashing.
type tokenService struct{}

// GenerateToken creates a new base64 URL-encoded random token and its SHA-256 hash.
func (t *tokenService) GenerateToken() (plainToken string, tokenHash string, err error) {
	randomBytes := make([]byte, authDomain.TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random token")
	}

	plainToken = base64.URLEncoding.EncodeToString(randomBytes)
	return plainToken, t.HashToken(plainToken), nil
}

// HashToken returns the hex-encoded SHA-256 hash of plainToken.
func (t *tokenService) HashToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(hash[:])
}

// NewTokenService creates a new TokenService instance using SHA-256 for token hashing.
func NewTokenService() TokenService {
	return &tokenService{}
}
