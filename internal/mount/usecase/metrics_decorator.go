package usecase

import (
	"context"
	"time"

	"github.com/allisson/covert/internal/metrics"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// mountUseCaseWithMetrics decorates MountUseCase with metrics instrumentation.
type mountUseCaseWithMetrics struct {
	next    MountUseCase
	metrics metrics.BusinessMetrics
}

// NewMountUseCaseWithMetrics wraps a MountUseCase with metrics recording.
func NewMountUseCaseWithMetrics(useCase MountUseCase, m metrics.BusinessMetrics) MountUseCase {
	return &mountUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (m *mountUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.metrics.RecordOperation(ctx, "mount", operation, status)
	m.metrics.RecordDuration(ctx, "mount", operation, time.Since(start), status)
}

func (m *mountUseCaseWithMetrics) List(ctx context.Context) ([]*mountDomain.Mount, error) {
	start := time.Now()
	mounts, err := m.next.List(ctx)
	m.record(ctx, "mount_list", start, err)
	return mounts, err
}

func (m *mountUseCaseWithMetrics) Get(ctx context.Context, path string) (*mountDomain.Mount, error) {
	start := time.Now()
	mount, err := m.next.Get(ctx, path)
	m.record(ctx, "mount_get", start, err)
	return mount, err
}

func (m *mountUseCaseWithMetrics) Create(
	ctx context.Context,
	input *mountDomain.CreateMountInput,
) (*mountDomain.Mount, error) {
	start := time.Now()
	mount, err := m.next.Create(ctx, input)
	m.record(ctx, "mount_create", start, err)
	return mount, err
}

func (m *mountUseCaseWithMetrics) Tune(
	ctx context.Context,
	input *mountDomain.TuneMountInput,
) (*mountDomain.Mount, error) {
	start := time.Now()
	mount, err := m.next.Tune(ctx, input)
	m.record(ctx, "mount_tune", start, err)
	return mount, err
}

func (m *mountUseCaseWithMetrics) Disable(ctx context.Context, path string) (*mountDomain.Mount, error) {
	start := time.Now()
	mount, err := m.next.Disable(ctx, path)
	m.record(ctx, "mount_disable", start, err)
	return mount, err
}
