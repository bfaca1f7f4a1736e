package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	authDomain "github.com/allisson/covert/internal/auth/domain"
)

// MemoryAuditLogRepository keeps audit logs in process memory in insertion order.
type MemoryAuditLogRepository struct {
	mu   sync.RWMutex
	logs []*authDomain.AuditLog
}

// Create appends a copy of the audit log.
func (m *MemoryAuditLogRepository) Create(ctx context.Context, auditLog *authDomain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cloned := *auditLog
	cloned.Signature = slices.Clone(auditLog.Signature)
	m.logs = append(m.logs, &cloned)
	return nil
}

// List returns audit logs newest first with pagination and optional inclusive time filters.
func (m *MemoryAuditLogRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*authDomain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*authDomain.AuditLog, 0)
	for i := len(m.logs) - 1; i >= 0; i-- {
		log := m.logs[i]
		if createdAtFrom != nil && log.CreatedAt.Before(*createdAtFrom) {
			continue
		}
		if createdAtTo != nil && log.CreatedAt.After(*createdAtTo) {
			continue
		}
		cloned := *log
		matched = append(matched, &cloned)
	}

	if offset >= len(matched) {
		return make([]*authDomain.AuditLog, 0), nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

// DeleteOlderThan removes, or with dryRun counts, audit logs created before olderThan.
func (m *MemoryAuditLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]*authDomain.AuditLog, 0, len(m.logs))
	var count int64
	for _, log := range m.logs {
		if log.CreatedAt.Before(olderThan) {
			count++
			continue
		}
		kept = append(kept, log)
	}

	if !dryRun {
		m.logs = kept
	}
	return count, nil
}

// NewMemoryAuditLogRepository creates an empty in-memory AuditLog repository.
func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{}
}
