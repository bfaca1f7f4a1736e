package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	"github.com/allisson/covert/internal/metrics"
)

func recordAuth(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.RecordOperation(ctx, "auth", operation, status)
	m.RecordDuration(ctx, "auth", operation, time.Since(start), status)
}

// tokenUseCaseWithMetrics decorates TokenUseCase with metrics instrumentation.
type tokenUseCaseWithMetrics struct {
	next    TokenUseCase
	metrics metrics.BusinessMetrics
}

// NewTokenUseCaseWithMetrics wraps a TokenUseCase with metrics recording.
func NewTokenUseCaseWithMetrics(useCase TokenUseCase, m metrics.BusinessMetrics) TokenUseCase {
	return &tokenUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Issue records metrics for token issuance.
func (t *tokenUseCaseWithMetrics) Issue(
	ctx context.Context,
	input *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	start := time.Now()
	output, err := t.next.Issue(ctx, input)
	recordAuth(ctx, t.metrics, "token_issue", start, err)
	return output, err
}

// Authenticate records metrics for token authentication.
func (t *tokenUseCaseWithMetrics) Authenticate(ctx context.Context, plainToken string) (*authDomain.Token, error) {
	start := time.Now()
	token, err := t.next.Authenticate(ctx, plainToken)
	recordAuth(ctx, t.metrics, "token_authenticate", start, err)
	return token, err
}

func (t *tokenUseCaseWithMetrics) Lookup(ctx context.Context, plainToken string) (*authDomain.Token, error) {
	start := time.Now()
	token, err := t.next.Lookup(ctx, plainToken)
	recordAuth(ctx, t.metrics, "token_lookup", start, err)
	return token, err
}

func (t *tokenUseCaseWithMetrics) Delete(ctx context.Context, tokenID uuid.UUID) error {
	start := time.Now()
	err := t.next.Delete(ctx, tokenID)
	recordAuth(ctx, t.metrics, "token_delete", start, err)
	return err
}

func (t *tokenUseCaseWithMetrics) ListExpired(ctx context.Context, days int) ([]*authDomain.Token, error) {
	start := time.Now()
	tokens, err := t.next.ListExpired(ctx, days)
	recordAuth(ctx, t.metrics, "token_list_expired", start, err)
	return tokens, err
}

// auditLogUseCaseWithMetrics decorates AuditLogUseCase with metrics instrumentation.
type auditLogUseCaseWithMetrics struct {
	next    AuditLogUseCase
	metrics metrics.BusinessMetrics
}

// NewAuditLogUseCaseWithMetrics wraps an AuditLogUseCase with metrics recording.
func NewAuditLogUseCaseWithMetrics(useCase AuditLogUseCase, m metrics.BusinessMetrics) AuditLogUseCase {
	return &auditLogUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for audit log creation.
func (a *auditLogUseCaseWithMetrics) Create(ctx context.Context, auditLog *authDomain.AuditLog) error {
	start := time.Now()
	err := a.next.Create(ctx, auditLog)
	recordAuth(ctx, a.metrics, "audit_log_create", start, err)
	return err
}

// List records metrics for audit log listing.
func (a *auditLogUseCaseWithMetrics) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*authDomain.AuditLog, error) {
	start := time.Now()
	logs, err := a.next.List(ctx, offset, limit, createdAtFrom, createdAtTo)
	recordAuth(ctx, a.metrics, "audit_log_list", start, err)
	return logs, err
}

// DeleteOlderThan records metrics for audit log retention.
func (a *auditLogUseCaseWithMetrics) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := a.next.DeleteOlderThan(ctx, days, dryRun)
	recordAuth(ctx, a.metrics, "audit_log_delete", start, err)
	return count, err
}

// VerifyBatch records metrics for audit log verification.
func (a *auditLogUseCaseWithMetrics) VerifyBatch(
	ctx context.Context,
	start, end time.Time,
) (*authDomain.VerificationReport, error) {
	begin := time.Now()
	report, err := a.next.VerifyBatch(ctx, start, end)
	recordAuth(ctx, a.metrics, "audit_log_verify", begin, err)
	return report, err
}
