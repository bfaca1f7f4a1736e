package repository

import (
	"context"
	"sync"

	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

// MemorySealConfigRepository keeps the seal configuration in process memory.
type MemorySealConfigRepository struct {
	mu         sync.RWMutex
	sealConfig *lifecycleDomain.SealConfig
}

func (m *MemorySealConfigRepository) Create(ctx context.Context, sealConfig *lifecycleDomain.SealConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealConfig != nil {
		return lifecycleDomain.ErrAlreadyInitialized
	}
	m.sealConfig = cloneSealConfig(sealConfig)
	return nil
}

func (m *MemorySealConfigRepository) Get(ctx context.Context) (*lifecycleDomain.SealConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.sealConfig == nil {
		return nil, lifecycleDomain.ErrSealConfigNotFound
	}
	return cloneSealConfig(m.sealConfig), nil
}

// NewMemorySealConfigRepository creates an empty in-memory SealConfig repository.
func NewMemorySealConfigRepository() *MemorySealConfigRepository {
	return &MemorySealConfigRepository{}
}

func cloneSealConfig(sealConfig *lifecycleDomain.SealConfig) *lifecycleDomain.SealConfig {
	clone := *sealConfig
	if sealConfig.WrappedRootKey != nil {
		clone.WrappedRootKey = append([]byte(nil), sealConfig.WrappedRootKey...)
	}
	return &clone
}
