package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
)

// MemoryTokenRepository keeps tokens in process memory indexed by ID and hash.
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*authDomain.Token
	byHash map[string]uuid.UUID
}

// Create stores a copy of the token.
func (m *MemoryTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[token.ID] = token.Clone()
	m.byHash[token.TokenHash] = token.ID
	return nil
}

// Get returns a copy of the token with the given ID.
func (m *MemoryTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*authDomain.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.byID[tokenID]
	if !ok {
		return nil, authDomain.ErrTokenNotFound
	}
	return token.Clone(), nil
}

// GetByTokenHash returns a copy of the token with the given hash.
func (m *MemoryTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, authDomain.ErrTokenNotFound
	}
	return m.byID[id].Clone(), nil
}

// Delete removes the token with the given ID.
func (m *MemoryTokenRepository) Delete(ctx context.Context, tokenID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.byID[tokenID]
	if !ok {
		return authDomain.ErrTokenNotFound
	}
	delete(m.byHash, token.TokenHash)
	delete(m.byID, tokenID)
	return nil
}

// ListExpired returns copies of the tokens that expired before expiredBefore, oldest expiry first.
func (m *MemoryTokenRepository) ListExpired(
	ctx context.Context,
	expiredBefore time.Time,
) ([]*authDomain.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]*authDomain.Token, 0)
	for _, token := range m.byID {
		if token.ExpiresAt != nil && token.ExpiresAt.Before(expiredBefore) {
			tokens = append(tokens, token.Clone())
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ExpiresAt.Before(*tokens[j].ExpiresAt) })
	return tokens, nil
}

// NewMemoryTokenRepository creates an empty in-memory Token repository.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		byID:   make(map[uuid.UUID]*authDomain.Token),
		byHash: make(map[string]uuid.UUID),
	}
}
