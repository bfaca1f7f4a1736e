package dto

import (
	"time"

	identityDomain "github.com/allisson/covert/internal/identity/domain"
	leaseDomain "github.com/allisson/covert/internal/lease/domain"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// InitResponse contains the unseal key shares and the root token.
// SECURITY: both are only returned once and must be saved securely.
type InitResponse struct {
	Keys      []string `json:"keys"`
	RootToken string   `json:"root_token"` //nolint:gosec // returned once on initialization
}

// MapInitToResponse converts the lifecycle output to an API response.
func MapInitToResponse(output *lifecycleDomain.InitOutput) InitResponse {
	return InitResponse{Keys: output.Keys, RootToken: output.RootToken}
}

// UnsealResponse reports the unseal progress.
type UnsealResponse struct {
	Sealed    bool `json:"sealed"`
	Threshold int  `json:"threshold"`
	Shares    int  `json:"shares"`
	Progress  int  `json:"progress"`
}

// MapUnsealToResponse converts the lifecycle output to an API response.
func MapUnsealToResponse(output *lifecycleDomain.UnsealOutput) UnsealResponse {
	return UnsealResponse{
		Sealed:    output.Sealed,
		Threshold: output.Threshold,
		Shares:    output.Shares,
		Progress:  output.Progress,
	}
}

// SealResponse confirms the service is sealed.
type SealResponse struct {
	Sealed bool `json:"sealed"`
}

// StatusResponse reports the lifecycle state and unseal progress.
type StatusResponse struct {
	State       string `json:"state"`
	Initialized bool   `json:"initialized"`
	Sealed      bool   `json:"sealed"`
	Threshold   int    `json:"threshold"`
	Shares      int    `json:"shares"`
	Progress    int    `json:"progress"`
}

// MapStatusToResponse converts the lifecycle status to an API response.
func MapStatusToResponse(output *lifecycleDomain.StatusOutput) StatusResponse {
	return StatusResponse{
		State:       string(output.State),
		Initialized: output.Initialized,
		Sealed:      output.Sealed,
		Threshold:   output.Threshold,
		Shares:      output.Shares,
		Progress:    output.Progress,
	}
}

// MountConfigResponse holds mount settings. TTLs are in seconds.
type MountConfigResponse struct {
	DefaultLeaseTTL int64             `json:"default_lease_ttl"`
	MaxLeaseTTL     int64             `json:"max_lease_ttl"`
	Options         map[string]string `json:"options,omitempty"`
}

// MountResponse represents a mount in API responses.
type MountResponse struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Config      MountConfigResponse `json:"config"`
	Enabled     bool                `json:"enabled"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// MapMountToResponse converts a domain mount to an API response.
func MapMountToResponse(mount *mountDomain.Mount) MountResponse {
	return MountResponse{
		ID:          mount.ID.String(),
		Path:        mount.Path,
		Type:        mount.Type,
		Description: mount.Description,
		Config: MountConfigResponse{
			DefaultLeaseTTL: int64(mount.Config.DefaultLeaseTTL / time.Second),
			MaxLeaseTTL:     int64(mount.Config.MaxLeaseTTL / time.Second),
			Options:         mount.Config.Options,
		},
		Enabled:   mount.Enabled,
		CreatedAt: mount.CreatedAt,
		UpdatedAt: mount.UpdatedAt,
	}
}

// ListMountsResponse lists every mount, disabled ones included.
type ListMountsResponse struct {
	Mounts []MountResponse `json:"mounts"`
}

// MapMountsToListResponse converts domain mounts to a list API response.
func MapMountsToListResponse(mounts []*mountDomain.Mount) ListMountsResponse {
	responses := make([]MountResponse, 0, len(mounts))
	for _, mount := range mounts {
		responses = append(responses, MapMountToResponse(mount))
	}
	return ListMountsResponse{Mounts: responses}
}

// DisableMountResponse reports the disabled mount and how many leases the sweep revoked.
type DisableMountResponse struct {
	Mount         MountResponse `json:"mount"`
	RevokedLeases int           `json:"revoked_leases"`
}

// PolicyResponse represents a policy in API responses.
type PolicyResponse struct {
	Name      string                    `json:"name"`
	Rules     []policyDomain.PolicyRule `json:"rules"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// MapPolicyToResponse converts a domain policy to an API response.
func MapPolicyToResponse(policy *policyDomain.Policy) PolicyResponse {
	return PolicyResponse{
		Name:      policy.Name,
		Rules:     policy.Rules,
		CreatedAt: policy.CreatedAt,
		UpdatedAt: policy.UpdatedAt,
	}
}

// ListPoliciesResponse lists policy names.
type ListPoliciesResponse struct {
	Policies []string `json:"policies"`
}

// ListPolicyDocumentsResponse lists full policies.
type ListPolicyDocumentsResponse struct {
	Policies []PolicyResponse `json:"policies"`
}

// MapPoliciesToListResponse converts domain policies to a list of names.
func MapPoliciesToListResponse(policies []*policyDomain.Policy) ListPoliciesResponse {
	names := make([]string, 0, len(policies))
	for _, policy := range policies {
		names = append(names, policy.Name)
	}
	return ListPoliciesResponse{Policies: names}
}

// MapPoliciesToDocumentsResponse converts domain policies to a list of full documents.
func MapPoliciesToDocumentsResponse(policies []*policyDomain.Policy) ListPolicyDocumentsResponse {
	responses := make([]PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		responses = append(responses, MapPolicyToResponse(policy))
	}
	return ListPolicyDocumentsResponse{Policies: responses}
}

// DeletePolicyResponse echoes the deleted policy name.
type DeletePolicyResponse struct {
	Name string `json:"name"`
}

// RevokeTokenResponse reports how many leases were revoked with the token.
type RevokeTokenResponse struct {
	RevokedLeases int `json:"revoked_leases"`
}

// LeaseResponse represents a lease in API responses. TTLs are in seconds.
type LeaseResponse struct {
	ID              string            `json:"id"`
	MountPath       string            `json:"mount_path"`
	TokenID         string            `json:"token_id,omitempty"`
	EntityID        string            `json:"entity_id,omitempty"`
	TTL             int64             `json:"ttl"`
	MaxTTL          int64             `json:"max_ttl"`
	Renewable       bool              `json:"renewable"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	IssuedAt        time.Time         `json:"issued_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	LastRenewedAt   *time.Time        `json:"last_renewed_at,omitempty"`
	RevokeAttempts  int               `json:"revoke_attempts"`
	LastRevokeError string            `json:"last_revoke_error,omitempty"`
}

// MapLeaseToResponse converts a domain lease to an API response.
func MapLeaseToResponse(lease *leaseDomain.Lease) LeaseResponse {
	response := LeaseResponse{
		ID:              lease.ID,
		MountPath:       lease.MountPath,
		TTL:             int64(lease.TTL / time.Second),
		MaxTTL:          int64(lease.MaxTTL / time.Second),
		Renewable:       lease.Renewable,
		Metadata:        lease.Metadata,
		IssuedAt:        lease.IssuedAt,
		ExpiresAt:       lease.ExpiresAt,
		LastRenewedAt:   lease.LastRenewedAt,
		RevokeAttempts:  lease.RevokeAttempts,
		LastRevokeError: lease.LastRevokeError,
	}
	if lease.TokenID != nil {
		response.TokenID = lease.TokenID.String()
	}
	if lease.EntityID != nil {
		response.EntityID = lease.EntityID.String()
	}
	return response
}

// ListLeasesResponse lists leases under a mount prefix.
type ListLeasesResponse struct {
	Leases []LeaseResponse `json:"leases"`
}

// MapLeasesToListResponse converts domain leases to a list API response.
func MapLeasesToListResponse(leases []*leaseDomain.Lease) ListLeasesResponse {
	responses := make([]LeaseResponse, 0, len(leases))
	for _, lease := range leases {
		responses = append(responses, MapLeaseToResponse(lease))
	}
	return ListLeasesResponse{Leases: responses}
}

// RevokeLeaseResponse echoes the revoked lease id.
type RevokeLeaseResponse struct {
	LeaseID string `json:"lease_id"`
}

// RevokeMountLeasesResponse reports how many leases under prefix were revoked.
type RevokeMountLeasesResponse struct {
	Prefix        string `json:"prefix"`
	RevokedLeases int    `json:"revoked_leases"`
}

// EntityResponse represents an entity in API responses.
type EntityResponse struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Policies  []string                     `json:"policies"`
	Aliases   []identityDomain.EntityAlias `json:"aliases"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

// MapEntityToResponse converts a domain entity to an API response.
func MapEntityToResponse(entity *identityDomain.Entity) EntityResponse {
	cloned := entity.Clone()
	return EntityResponse{
		ID:        cloned.ID.String(),
		Name:      cloned.Name,
		Policies:  cloned.Policies,
		Aliases:   cloned.Aliases,
		CreatedAt: cloned.CreatedAt,
		UpdatedAt: cloned.UpdatedAt,
	}
}

// CreateEntityResponse contains the created entity.
type CreateEntityResponse struct {
	Entity EntityResponse `json:"entity"`
}

// AttachEntityPolicyResponse contains the resulting policy set.
type AttachEntityPolicyResponse struct {
	PolicyNames []string `json:"policy_names"`
}

// AttachEntityAliasResponse contains the resulting alias list.
type AttachEntityAliasResponse struct {
	Aliases []identityDomain.EntityAlias `json:"aliases"`
}

// RemoveEntityPolicyResponse echoes the removed policy name.
type RemoveEntityPolicyResponse struct {
	PolicyName string `json:"policy_name"`
}

// RemoveEntityAliasResponse echoes the removed alias.
type RemoveEntityAliasResponse struct {
	Alias identityDomain.EntityAlias `json:"alias"`
}
