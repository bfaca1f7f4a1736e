package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	authService "github.com/allisson/covert/internal/auth/service"
	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

const verifyBatchSize = 500

// auditLogUseCase implements AuditLogUseCase.
type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
	keyProvider  RootKeyProvider
	signer       authService.AuditSigner
}

// Create records an audit log entry. The entry is stored unsigned when the root key is
// not available, which only happens if the service was sealed mid-request. Any other
// signing failure is returned and nothing is stored.
func (a *auditLogUseCase) Create(ctx context.Context, auditLog *authDomain.AuditLog) error {
	auditLog.ID = uuid.Must(uuid.NewV7())
	auditLog.CreatedAt = time.Now().UTC()
	auditLog.Signature = nil
	auditLog.IsSigned = false

	err := a.keyProvider.WithRootKey(func(rootKey []byte) error {
		signature, err := a.signer.Sign(rootKey, auditLog)
		if err != nil {
			return err
		}
		auditLog.Signature = signature
		auditLog.IsSigned = true
		return nil
	})
	if err != nil && !apperrors.Is(err, lifecycleDomain.ErrSealed) {
		return apperrors.Internal(err, "failed to sign audit log")
	}

	if err := a.auditLogRepo.Create(ctx, auditLog); err != nil {
		return apperrors.Internal(err, "failed to create audit log")
	}

	return nil
}

// List retrieves audit logs newest first with pagination and optional time filters.
func (a *auditLogUseCase) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*authDomain.AuditLog, error) {
	auditLogs, err := a.auditLogRepo.List(ctx, offset, limit, createdAtFrom, createdAtTo)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list audit logs")
	}
	return auditLogs, nil
}

// DeleteOlderThan removes audit logs older than days.
func (a *auditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "days must not be negative, got %d", days)
	}

	olderThan := time.Now().UTC().AddDate(0, 0, -days)
	count, err := a.auditLogRepo.DeleteOlderThan(ctx, olderThan, dryRun)
	if err != nil {
		return 0, apperrors.Internal(err, "failed to delete audit logs")
	}
	return count, nil
}

// VerifyBatch pages through the range and checks every signed log.
func (a *auditLogUseCase) VerifyBatch(
	ctx context.Context,
	start, end time.Time,
) (*authDomain.VerificationReport, error) {
	report := &authDomain.VerificationReport{
		InvalidLogs: make([]uuid.UUID, 0),
		StartTime:   start,
		EndTime:     end,
	}

	err := a.keyProvider.WithRootKey(func(rootKey []byte) error {
		for offset := 0; ; offset += verifyBatchSize {
			logs, err := a.auditLogRepo.List(ctx, offset, verifyBatchSize, &start, &end)
			if err != nil {
				return apperrors.Internal(err, "failed to list audit logs")
			}

			for _, log := range logs {
				report.TotalChecked++
				if !log.HasValidSignature() {
					report.UnsignedCount++
					continue
				}

				report.SignedCount++
				if err := a.signer.Verify(rootKey, log); err != nil {
					report.InvalidCount++
					report.InvalidLogs = append(report.InvalidLogs, log.ID)
					continue
				}
				report.ValidCount++
			}

			if len(logs) < verifyBatchSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// NewAuditLogUseCase creates a new AuditLogUseCase with the provided dependencies.
func NewAuditLogUseCase(
	auditLogRepo AuditLogRepository,
	keyProvider RootKeyProvider,
	signer authService.AuditSigner,
) AuditLogUseCase {
	return &auditLogUseCase{
		auditLogRepo: auditLogRepo,
		keyProvider:  keyProvider,
		signer:       signer,
	}
}
