// Package dto provides the request parameters and responses of the control-plane routes.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	identityDomain "github.com/allisson/covert/internal/identity/domain"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
	customValidation "github.com/allisson/covert/internal/validation"
)

// InitParams contains the parameters for initializing the service. Zero values select the
// configured defaults.
type InitParams struct {
	SecretShares    int `json:"secret_shares"`
	SecretThreshold int `json:"secret_threshold"`
}

// Validate checks if the init parameters are in range.
func (p *InitParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.SecretShares, validation.Min(0), validation.Max(lifecycleDomain.MaxSecretShares)),
		validation.Field(&p.SecretThreshold, validation.Min(0), validation.Max(lifecycleDomain.MaxSecretShares)),
	)
}

// ToDomain converts the parameters to the lifecycle input.
func (p *InitParams) ToDomain() *lifecycleDomain.InitInput {
	return &lifecycleDomain.InitInput{
		SecretShares:    p.SecretShares,
		SecretThreshold: p.SecretThreshold,
	}
}

// UnsealParams submits one key share, or discards the collected shares when Reset is set.
type UnsealParams struct {
	Key   string `json:"key"`
	Reset bool   `json:"reset"`
}

// Validate checks that a key is given unless the request is a reset.
func (p *UnsealParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Key,
			validation.When(!p.Reset, validation.Required, customValidation.NotBlank, customValidation.KeyShare),
		),
	)
}

// ToDomain converts the parameters to the lifecycle input.
func (p *UnsealParams) ToDomain() *lifecycleDomain.UnsealInput {
	return &lifecycleDomain.UnsealInput{Key: p.Key, Reset: p.Reset}
}

// MountConfigParams holds mount settings. TTLs are in seconds.
type MountConfigParams struct {
	DefaultLeaseTTL int64             `json:"default_lease_ttl"`
	MaxLeaseTTL     int64             `json:"max_lease_ttl"`
	Options         map[string]string `json:"options"`
}

// CreateMountParams contains the parameters for mounting a secret engine. The mount path
// comes from the route.
type CreateMountParams struct {
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Config      MountConfigParams `json:"config"`
}

// Validate checks if the create mount parameters are valid.
func (p *CreateMountParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Type,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 64),
		),
		validation.Field(&p.Description, validation.Length(0, 1024)),
		validation.Field(&p.Config),
	)
}

// Validate checks the TTLs are not negative.
func (p MountConfigParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DefaultLeaseTTL, validation.Min(int64(0))),
		validation.Field(&p.MaxLeaseTTL, validation.Min(int64(0))),
	)
}

// ToDomain converts the parameters to the mount input for path.
func (p *CreateMountParams) ToDomain(path string) *mountDomain.CreateMountInput {
	return &mountDomain.CreateMountInput{
		Path:        path,
		Type:        p.Type,
		Description: p.Description,
		Config: mountDomain.MountConfig{
			DefaultLeaseTTL: time.Duration(p.Config.DefaultLeaseTTL) * time.Second,
			MaxLeaseTTL:     time.Duration(p.Config.MaxLeaseTTL) * time.Second,
			Options:         p.Config.Options,
		},
	}
}

// UpdateMountParams tunes an existing mount. Omitted fields are left unchanged.
type UpdateMountParams struct {
	Description     *string           `json:"description"`
	DefaultLeaseTTL *int64            `json:"default_lease_ttl"`
	MaxLeaseTTL     *int64            `json:"max_lease_ttl"`
	Options         map[string]string `json:"options"`
}

// Validate checks if the update mount parameters are valid.
func (p *UpdateMountParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Description, validation.Length(0, 1024)),
		validation.Field(&p.DefaultLeaseTTL, validation.Min(int64(0))),
		validation.Field(&p.MaxLeaseTTL, validation.Min(int64(0))),
	)
}

// ToDomain converts the parameters to the tune input for path.
func (p *UpdateMountParams) ToDomain(path string) *mountDomain.TuneMountInput {
	input := &mountDomain.TuneMountInput{
		Path:        path,
		Description: p.Description,
		Options:     p.Options,
	}
	if p.DefaultLeaseTTL != nil {
		ttl := time.Duration(*p.DefaultLeaseTTL) * time.Second
		input.DefaultLeaseTTL = &ttl
	}
	if p.MaxLeaseTTL != nil {
		ttl := time.Duration(*p.MaxLeaseTTL) * time.Second
		input.MaxLeaseTTL = &ttl
	}
	return input
}

// CreatePolicyParams creates a policy or replaces the rules of an existing one.
type CreatePolicyParams struct {
	Name  string                    `json:"name"`
	Rules []policyDomain.PolicyRule `json:"rules"`
}

// Validate checks if the policy parameters are valid.
func (p *CreatePolicyParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&p.Rules,
			validation.Required,
			validation.Each(validation.By(validatePolicyRule)),
		),
	)
}

// ToDomain converts the parameters to the policy input.
func (p *CreatePolicyParams) ToDomain() *policyDomain.UpsertPolicyInput {
	return &policyDomain.UpsertPolicyInput{Name: p.Name, Rules: p.Rules}
}

func validatePolicyRule(value any) error {
	rule, ok := value.(policyDomain.PolicyRule)
	if !ok {
		return validation.NewError("validation_policy_rule_type", "must be a policy rule")
	}

	return validation.ValidateStruct(&rule,
		validation.Field(&rule.Path,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 500),
		),
		validation.Field(&rule.Capabilities,
			validation.Required,
			validation.Each(validation.By(validateCapability)),
		),
	)
}

func validateCapability(value any) error {
	capability, ok := value.(policyDomain.Capability)
	if !ok || !policyDomain.IsValidCapability(capability) {
		return validation.NewError("validation_capability", "must be one of create, read, update, delete, list")
	}
	return nil
}

// RevokeTokenParams names the plain token to revoke.
type RevokeTokenParams struct {
	Token string `json:"token"`
}

// Validate checks if the revoke token parameters are valid.
func (p *RevokeTokenParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Token, validation.Required, customValidation.NotBlank),
	)
}

// RenewLeaseParams holds the requested extension in seconds. Zero renews by the lease TTL.
type RenewLeaseParams struct {
	Increment int64 `json:"increment"`
}

// Validate checks if the renew parameters are valid.
func (p *RenewLeaseParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Increment, validation.Min(int64(0))),
	)
}

// IncrementDuration returns the increment as a duration.
func (p *RenewLeaseParams) IncrementDuration() time.Duration {
	return time.Duration(p.Increment) * time.Second
}

// CreateEntityParams contains the parameters for creating an entity.
type CreateEntityParams struct {
	Name string `json:"name"`
}

// Validate checks if the create entity parameters are valid.
func (p *CreateEntityParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
	)
}

// AttachEntityPolicyParams attaches policy names to the named entity.
type AttachEntityPolicyParams struct {
	Name        string   `json:"name"`
	PolicyNames []string `json:"policy_names"`
}

// Validate checks if the attach policy parameters are valid.
func (p *AttachEntityPolicyParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, customValidation.NotBlank),
		validation.Field(&p.PolicyNames,
			validation.Required,
			validation.Each(validation.Required, customValidation.NotBlank),
		),
	)
}

// AttachEntityAliasParams attaches aliases to the named entity.
type AttachEntityAliasParams struct {
	Name    string                       `json:"name"`
	Aliases []identityDomain.EntityAlias `json:"aliases"`
}

// Validate checks if the attach alias parameters are valid.
func (p *AttachEntityAliasParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, customValidation.NotBlank),
		validation.Field(&p.Aliases,
			validation.Required,
			validation.Each(validation.By(validateAlias)),
		),
	)
}

// RemoveEntityPolicyParams names the policy to detach. The entity comes from the route.
type RemoveEntityPolicyParams struct {
	PolicyName string `json:"policy_name"`
}

// Validate checks if the remove policy parameters are valid.
func (p *RemoveEntityPolicyParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.PolicyName, validation.Required, customValidation.NotBlank),
	)
}

// RemoveEntityAliasParams names the alias to detach. The entity comes from the route.
type RemoveEntityAliasParams struct {
	Alias identityDomain.EntityAlias `json:"alias"`
}

// Validate checks if the remove alias parameters are valid.
func (p *RemoveEntityAliasParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Alias, validation.By(validateAlias)),
	)
}

func validateAlias(value any) error {
	alias, ok := value.(identityDomain.EntityAlias)
	if !ok {
		return validation.NewError("validation_alias_type", "must be an alias")
	}

	return validation.ValidateStruct(&alias,
		validation.Field(&alias.Name, validation.Required, customValidation.NotBlank),
		validation.Field(&alias.MountPath, validation.Required, customValidation.NotBlank),
	)
}
