package system

import (
	"context"

	"github.com/allisson/covert/internal/system/dto"
)

// Init initializes the service and returns the unseal key shares and the root token.
func (h *Handlers) Init(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.InitParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	output, err := h.lifecycle.Init(ctx, params.ToDomain())
	if err != nil {
		return nil, err
	}

	return dto.MapInitToResponse(output), nil
}

// Unseal submits one key share.
func (h *Handlers) Unseal(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.UnsealParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	output, err := h.lifecycle.Unseal(ctx, params.ToDomain())
	if err != nil {
		return nil, err
	}

	return dto.MapUnsealToResponse(output), nil
}

// Seal discards the root key.
func (h *Handlers) Seal(ctx context.Context, _ *HandlerRequest) (any, error) {
	if err := h.lifecycle.Seal(ctx); err != nil {
		return nil, err
	}
	return dto.SealResponse{Sealed: true}, nil
}

// Status reports the lifecycle state.
func (h *Handlers) Status(ctx context.Context, _ *HandlerRequest) (any, error) {
	output, err := h.lifecycle.Status(ctx)
	if err != nil {
		return nil, err
	}
	return dto.MapStatusToResponse(output), nil
}
