package system

import (
	"context"

	"github.com/allisson/covert/internal/system/dto"
)

// RevokeLease revokes one lease through its engine.
func (h *Handlers) RevokeLease(ctx context.Context, req *HandlerRequest) (any, error) {
	leaseID := req.Param("lease_id")
	if err := h.leases.Revoke(ctx, leaseID); err != nil {
		return nil, err
	}
	return dto.RevokeLeaseResponse{LeaseID: leaseID}, nil
}

// RenewLease extends a renewable lease.
func (h *Handlers) RenewLease(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.RenewLeaseParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	lease, err := h.leases.Renew(ctx, req.Param("lease_id"), params.IncrementDuration())
	if err != nil {
		return nil, err
	}

	return dto.MapLeaseToResponse(lease), nil
}

// LookupLease returns one lease.
func (h *Handlers) LookupLease(ctx context.Context, req *HandlerRequest) (any, error) {
	lease, err := h.leases.Lookup(ctx, req.Param("lease_id"))
	if err != nil {
		return nil, err
	}
	return dto.MapLeaseToResponse(lease), nil
}

// RevokeLeasesByMount revokes every lease under the prefix parameter.
func (h *Handlers) RevokeLeasesByMount(ctx context.Context, req *HandlerRequest) (any, error) {
	prefix := req.Param("prefix")
	revoked, err := h.leases.RevokeByMountPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return dto.RevokeMountLeasesResponse{Prefix: prefix, RevokedLeases: revoked}, nil
}

// ListLeases lists the leases under the prefix parameter.
func (h *Handlers) ListLeases(ctx context.Context, req *HandlerRequest) (any, error) {
	leases, err := h.leases.ListByMountPrefix(ctx, req.Param("prefix"))
	if err != nil {
		return nil, err
	}
	return dto.MapLeasesToListResponse(leases), nil
}
