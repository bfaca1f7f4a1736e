package system

import (
	"bytes"
	"encoding/json"
	"log/slog"

	authUseCase "github.com/allisson/covert/internal/auth/usecase"
	apperrors "github.com/allisson/covert/internal/errors"
	identityUseCase "github.com/allisson/covert/internal/identity/usecase"
	leaseUseCase "github.com/allisson/covert/internal/lease/usecase"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleUseCase "github.com/allisson/covert/internal/lifecycle/usecase"
	mountUseCase "github.com/allisson/covert/internal/mount/usecase"
	policyUseCase "github.com/allisson/covert/internal/policy/usecase"
	"github.com/allisson/covert/internal/validation"
)

// Handlers holds the stores the system backend operates on.
type Handlers struct {
	lifecycle lifecycleUseCase.LifecycleUseCase
	mounts    mountUseCase.MountUseCase
	policies  policyUseCase.PolicyUseCase
	identity  identityUseCase.IdentityUseCase
	tokens    authUseCase.TokenUseCase
	leases    leaseUseCase.LeaseUseCase
	logger    *slog.Logger
}

// NewHandlers creates the system backend handlers.
func NewHandlers(
	lifecycle lifecycleUseCase.LifecycleUseCase,
	mounts mountUseCase.MountUseCase,
	policies policyUseCase.PolicyUseCase,
	identity identityUseCase.IdentityUseCase,
	tokens authUseCase.TokenUseCase,
	leases leaseUseCase.LeaseUseCase,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		lifecycle: lifecycle,
		mounts:    mounts,
		policies:  policies,
		identity:  identity,
		tokens:    tokens,
		leases:    leases,
		logger:    logger,
	}
}

// Routes returns the route table of the system backend.
func (h *Handlers) Routes() []Route {
	uninitialized := []lifecycleDomain.State{lifecycleDomain.StateUninitialized}
	sealed := []lifecycleDomain.State{lifecycleDomain.StateSealed}
	unsealed := []lifecycleDomain.State{lifecycleDomain.StateUnsealed}

	return []Route{
		{Path: "/init", Operation: CreateOperation, States: uninitialized, Policy: Unauthenticated, Handler: h.Init},
		{Path: "/init", Operation: UpdateOperation, States: uninitialized, Policy: Unauthenticated, Handler: h.Init},
		{Path: "/seal", Operation: CreateOperation, States: unsealed, Policy: Unauthenticated, Handler: h.Seal},
		{Path: "/seal", Operation: UpdateOperation, States: unsealed, Policy: Unauthenticated, Handler: h.Seal},
		{Path: "/unseal", Operation: CreateOperation, States: sealed, Policy: Unauthenticated, Handler: h.Unseal},
		{Path: "/unseal", Operation: UpdateOperation, States: sealed, Policy: Unauthenticated, Handler: h.Unseal},
		{
			Path:      "/status",
			Operation: ReadOperation,
			States:    lifecycleDomain.AllStates,
			Policy:    Unauthenticated,
			Handler:   h.Status,
		},

		{Path: "/mounts", Operation: ReadOperation, Handler: h.ListMounts},
		{Path: "/mounts/*path", Operation: CreateOperation, Handler: h.CreateMount},
		{Path: "/mounts/*path", Operation: UpdateOperation, Handler: h.UpdateMount},
		{Path: "/mounts/*path", Operation: DeleteOperation, Handler: h.DisableMount},

		{Path: "/policies", Operation: CreateOperation, Handler: h.CreatePolicy},
		{Path: "/policies", Operation: UpdateOperation, Handler: h.CreatePolicy},
		{Path: "/policies", Operation: ReadOperation, Handler: h.ListPolicies},
		{Path: "/policies/*name", Operation: DeleteOperation, Handler: h.DeletePolicy},

		{Path: "/token/revoke", Operation: RevokeOperation, Handler: h.RevokeToken},

		{Path: "/leases/revoke/*lease_id", Operation: UpdateOperation, Handler: h.RevokeLease},
		{Path: "/leases/renew/*lease_id", Operation: UpdateOperation, Handler: h.RenewLease},
		{Path: "/leases/lookup/*lease_id", Operation: ReadOperation, Handler: h.LookupLease},
		{Path: "/leases/revoke-mount/*prefix", Operation: UpdateOperation, Handler: h.RevokeLeasesByMount},
		{Path: "/leases/lookup-mount/*prefix", Operation: ReadOperation, Handler: h.ListLeases},

		{Path: "/entity", Operation: CreateOperation, Handler: h.CreateEntity},
		{Path: "/entity/policy", Operation: UpdateOperation, Handler: h.AttachEntityPolicy},
		{Path: "/entity/policy/*name", Operation: UpdateOperation, Handler: h.RemoveEntityPolicy},
		{Path: "/entity/alias", Operation: UpdateOperation, Handler: h.AttachEntityAlias},
		{Path: "/entity/alias/*name", Operation: UpdateOperation, Handler: h.RemoveEntityAlias},
	}
}

// validatable is implemented by every request parameter type.
type validatable interface {
	Validate() error
}

// bind decodes the JSON body into params and validates it. An empty body decodes to the
// zero value.
func bind(body []byte, params validatable) error {
	if len(bytes.TrimSpace(body)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(params); err != nil {
			return apperrors.Wrap(ErrMalformedRequest, err.Error())
		}
	}

	if err := params.Validate(); err != nil {
		return validation.WrapValidationError(err)
	}
	return nil
}
