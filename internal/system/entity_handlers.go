package system

import (
	"context"

	"github.com/allisson/covert/internal/system/dto"
)

// CreateEntity creates an entity.
func (h *Handlers) CreateEntity(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.CreateEntityParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	entity, err := h.identity.Create(ctx, params.Name)
	if err != nil {
		return nil, err
	}

	return dto.CreateEntityResponse{Entity: dto.MapEntityToResponse(entity)}, nil
}

// AttachEntityPolicy attaches policy names to an entity and returns the resulting set.
func (h *Handlers) AttachEntityPolicy(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.AttachEntityPolicyParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	policyNames, err := h.identity.AttachPolicies(ctx, params.Name, params.PolicyNames)
	if err != nil {
		return nil, err
	}

	return dto.AttachEntityPolicyResponse{PolicyNames: policyNames}, nil
}

// RemoveEntityPolicy detaches a policy from the entity named by the path parameter.
func (h *Handlers) RemoveEntityPolicy(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.RemoveEntityPolicyParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	policyName, err := h.identity.RemovePolicy(ctx, req.Param("name"), params.PolicyName)
	if err != nil {
		return nil, err
	}

	return dto.RemoveEntityPolicyResponse{PolicyName: policyName}, nil
}

// AttachEntityAlias binds aliases to an entity and returns the resulting list.
func (h *Handlers) AttachEntityAlias(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.AttachEntityAliasParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	aliases, err := h.identity.AttachAliases(ctx, params.Name, params.Aliases)
	if err != nil {
		return nil, err
	}

	return dto.AttachEntityAliasResponse{Aliases: aliases}, nil
}

// RemoveEntityAlias unbinds an alias from the entity named by the path parameter.
func (h *Handlers) RemoveEntityAlias(ctx context.Context, req *HandlerRequest) (any, error) {
	var params dto.RemoveEntityAliasParams
	if err := bind(req.Body, &params); err != nil {
		return nil, err
	}

	alias, err := h.identity.RemoveAlias(ctx, req.Param("name"), params.Alias)
	if err != nil {
		return nil, err
	}

	return dto.RemoveEntityAliasResponse{Alias: alias}, nil
}
