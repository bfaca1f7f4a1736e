package system

import (
	"context"
	"log/slog"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
	"github.com/allisson/covert/internal/system/dto"
)

// RevokeToken revokes every lease the token owns and then removes the token. An unknown
// token is a no-op. When the sweep fails the token is kept so the revoke can be retried.
func (h *Handlers) RevokeToken(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.RevokeTokenParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	token, err := h.tokens.Lookup(ctx, params.Token)
	if err != nil {
		if apperrors.Is(err, authDomain.ErrTokenNotFound) {
			return dto.RevokeTokenResponse{}, nil
		}
		return nil, err
	}

	revoked, err := h.leases.RevokeByToken(ctx, token.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "lease sweep for token revocation failed",
			slog.String("token_id", token.ID.String()),
			slog.Int("revoked", revoked),
			slog.Any("error", err),
		)
		return nil, err
	}

	if err := h.tokens.Delete(ctx, token.ID); err != nil && !apperrors.Is(err, authDomain.ErrTokenNotFound) {
		return nil, err
	}

	return dto.RevokeTokenResponse{RevokedLeases: revoked}, nil
}
