package system

import (
	"context"
	"strconv"

	"github.com/allisson/covert/internal/system/dto"
)

// CreatePolicy creates or replaces a policy.
func (h *Handlers) CreatePolicy(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.CreatePolicyParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	policy, err := h.policies.Upsert(ctx, params.ToDomain())
	if err != nil {
		return nil, err
	}

	return dto.MapPolicyToResponse(policy), nil
}

// ListPolicies lists policy names, or full policies with ?detail=true.
func (h *Handlers) ListPolicies(ctx context.Context, req *HandlerRequest) (any, error) {
	policies, err := h.policies.List(ctx)
	if err != nil {
		return nil, err
	}

	if detail, _ := strconv.ParseBool(req.Query.Get("detail")); detail {
		return dto.MapPoliciesToDocumentsResponse(policies), nil
	}
	return dto.MapPoliciesToListResponse(policies), nil
}

// DeletePolicy removes the policy named by the path parameter. Tokens and entities keep
// their references.
func (h *Handlers) DeletePolicy(ctx context.Context, req *HandlerRequest) (any, error) {
	name := req.Param("name")
	if err := h.policies.Delete(ctx, name); err != nil {
		return nil, err
	}
	return dto.DeletePolicyResponse{Name: name}, nil
}
