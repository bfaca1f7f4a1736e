// Package domain defines the lifecycle state machine of the service and the seal
// configuration written at initialization.
package domain

import (
	"time"

	validation "github.com/jellydator/validation"
)

// State is the lifecycle state of the service. Exactly one state holds at any time.
type State string

const (
	// StateUninitialized means no seal configuration exists yet.
	StateUninitialized State = "uninitialized"
	// StateSealed means the service is initialized but the root key is not in memory.
	StateSealed State = "sealed"
	// StateUnsealed means the root key is in memory and the service serves requests.
	StateUnsealed State = "unsealed"
)

// AllStates lists every lifecycle state.
var AllStates = []State{StateUninitialized, StateSealed, StateUnsealed}

// RootKeyLength is the size in bytes of the generated root key.
const RootKeyLength = 32

// MaxSecretShares is the largest number of key shares a split supports.
const MaxSecretShares = 255

// SealConfig is persisted by Init and is the only lifecycle record in storage.
// KeyCheck is an Argon2id hash of the root key used to verify a reconstructed key.
// WrappedRootKey holds the root key encrypted by the configured KMS key, if any.
type SealConfig struct {
	SecretShares    int
	SecretThreshold int
	KeyCheck        string
	WrappedRootKey  []byte
	KMSKeyURI       string
	CreatedAt       time.Time
}

// InitInput carries the requested share layout. Zero values select the configured defaults.
type InitInput struct {
	SecretShares    int
	SecretThreshold int
}

// Validate checks the share layout: 1 <= threshold <= shares <= 255, and a threshold
// of one only with a single share.
func (i *InitInput) Validate() error {
	err := validation.ValidateStruct(i,
		validation.Field(&i.SecretShares, validation.Required, validation.Min(1), validation.Max(MaxSecretShares)),
		validation.Field(&i.SecretThreshold,
			validation.Required,
			validation.Min(1),
			validation.Max(i.SecretShares).Error("must not exceed secret_shares"),
		),
	)
	if err != nil {
		return err
	}
	if i.SecretThreshold == 1 && i.SecretShares != 1 {
		return validation.Errors{"secret_threshold": validation.NewError(
			"validation_threshold_one",
			"a threshold of 1 requires exactly 1 share",
		)}
	}
	return nil
}

// InitOutput carries the key shares and the root token. Both are returned once.
type InitOutput struct {
	Keys      []string
	RootToken string
}

// UnsealInput carries one key share, or a request to discard the collected shares.
type UnsealInput struct {
	Key   string
	Reset bool
}

// UnsealOutput reports the unseal progress after a share was submitted.
type UnsealOutput struct {
	Sealed    bool
	Threshold int
	Shares    int
	Progress  int
}

// StatusOutput reports the lifecycle state without changing it.
type StatusOutput struct {
	State       State
	Initialized bool
	Sealed      bool
	Threshold   int
	Shares      int
	Progress    int
}
