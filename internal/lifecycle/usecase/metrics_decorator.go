package usecase

import (
	"context"
	"time"

	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	"github.com/allisson/covert/internal/metrics"
)

// lifecycleUseCaseWithMetrics decorates LifecycleUseCase with metrics instrumentation.
// State and WithRootKey run on every request and are not recorded.
type lifecycleUseCaseWithMetrics struct {
	next    LifecycleUseCase
	metrics metrics.BusinessMetrics
}

// NewLifecycleUseCaseWithMetrics wraps a LifecycleUseCase with metrics recording.
func NewLifecycleUseCaseWithMetrics(useCase LifecycleUseCase, m metrics.BusinessMetrics) LifecycleUseCase {
	return &lifecycleUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (l *lifecycleUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "lifecycle", operation, status)
	l.metrics.RecordDuration(ctx, "lifecycle", operation, time.Since(start), status)

	switch l.next.State() {
	case lifecycleDomain.StateSealed:
		l.metrics.RecordSealed(ctx, true)
	case lifecycleDomain.StateUnsealed:
		l.metrics.RecordSealed(ctx, false)
	}
}

func (l *lifecycleUseCaseWithMetrics) Init(
	ctx context.Context,
	input *lifecycleDomain.InitInput,
) (*lifecycleDomain.InitOutput, error) {
	start := time.Now()
	output, err := l.next.Init(ctx, input)
	l.record(ctx, "init", start, err)
	return output, err
}

func (l *lifecycleUseCaseWithMetrics) Unseal(
	ctx context.Context,
	input *lifecycleDomain.UnsealInput,
) (*lifecycleDomain.UnsealOutput, error) {
	start := time.Now()
	output, err := l.next.Unseal(ctx, input)
	l.record(ctx, "unseal", start, err)
	return output, err
}

func (l *lifecycleUseCaseWithMetrics) Seal(ctx context.Context) error {
	start := time.Now()
	err := l.next.Seal(ctx)
	l.record(ctx, "seal", start, err)
	return err
}

func (l *lifecycleUseCaseWithMetrics) Status(ctx context.Context) (*lifecycleDomain.StatusOutput, error) {
	return l.next.Status(ctx)
}

func (l *lifecycleUseCaseWithMetrics) State() lifecycleDomain.State {
	return l.next.State()
}

func (l *lifecycleUseCaseWithMetrics) WithRootKey(fn func(rootKey []byte) error) error {
	return l.next.WithRootKey(fn)
}

func (l *lifecycleUseCaseWithMetrics) Load(ctx context.Context) error {
	start := time.Now()
	err := l.next.Load(ctx)
	l.record(ctx, "load", start, err)
	return err
}

func (l *lifecycleUseCaseWithMetrics) AutoUnseal(ctx context.Context) error {
	start := time.Now()
	err := l.next.AutoUnseal(ctx)
	l.record(ctx, "auto_unseal", start, err)
	return err
}
