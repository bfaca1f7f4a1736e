package system

import (
	"context"
	"log/slog"

	"github.com/allisson/covert/internal/system/dto"
)

// ListMounts lists every mount, including disabled ones.
func (h *Handlers) ListMounts(ctx context.Context, _ *HandlerRequest) (any, error) {
	mounts, err := h.mounts.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.MapMountsToListResponse(mounts), nil
}

// CreateMount mounts a secret engine at the path parameter.
func (h *Handlers) CreateMount(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.CreateMountParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	mount, err := h.mounts.Create(ctx, params.ToDomain(req.Param("path")))
	if err != nil {
		return nil, err
	}

	return dto.MapMountToResponse(mount), nil
}

// UpdateMount tunes the mount at the path parameter.
func (h *Handlers) UpdateMount(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.UpdateMountParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	mount, err := h.mounts.Tune(ctx, params.ToDomain(req.Param("path")))
	if err != nil {
		return nil, err
	}

	return dto.MapMountToResponse(mount), nil
}

// DisableMount disables the mount and revokes every lease under its path. It succeeds only
// once the sweep completed; a failed sweep leaves the mount disabled with the remaining
// leases visible through lookup.
func (h *Handlers) DisableMount(ctx context.Context, req *HandlerRequest) (any, error) {
	mount, err := h.mounts.Disable(ctx, req.Param("path"))
	if err != nil {
		return nil, err
	}

	revoked, err := h.leases.RevokeByMountPrefix(ctx, mount.Path)
	if err != nil {
		h.logger.ErrorContext(ctx, "lease sweep after mount disable failed",
			slog.String("mount_path", mount.Path),
			slog.Int("revoked", revoked),
			slog.Any("error", err),
		)
		return nil, err
	}

	return dto.DisableMountResponse{
		Mount:         dto.MapMountToResponse(mount),
		RevokedLeases: revoked,
	}, nil
}
