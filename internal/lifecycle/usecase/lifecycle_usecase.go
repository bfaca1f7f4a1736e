package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleService "github.com/allisson/covert/internal/lifecycle/service"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
	"github.com/allisson/covert/internal/validation"
)

// Options holds the lifecycle settings taken from configuration.
type Options struct {
	DefaultShares    int
	DefaultThreshold int
	RootTokenTTL     time.Duration
	KMSKeyURI        string
}

// lifecycleUseCase keeps the state behind a single mutex. Store and KMS calls happen
// outside the mutex; Init reserves the transition with the initializing flag.
type lifecycleUseCase struct {
	mu           sync.Mutex
	state        lifecycleDomain.State
	initializing bool
	sealConfig   *lifecycleDomain.SealConfig
	shares       []*memguard.Enclave
	rootKey      *lifecycleService.KeyHolder

	sealConfigRepo SealConfigRepository
	tokenIssuer    TokenIssuer
	splitter       lifecycleService.KeyShareSplitter
	keyChecker     lifecycleService.KeyChecker
	kmsService     lifecycleService.KMSService
	options        Options
	logger         *slog.Logger
}

// Init generates the root key and moves the service from uninitialized to sealed.
func (l *lifecycleUseCase) Init(
	ctx context.Context,
	input *lifecycleDomain.InitInput,
) (*lifecycleDomain.InitOutput, error) {
	l.mu.Lock()
	if l.state != lifecycleDomain.StateUninitialized || l.initializing {
		l.mu.Unlock()
		return nil, lifecycleDomain.ErrAlreadyInitialized
	}
	l.initializing = true
	l.mu.Unlock()

	sealConfig, output, err := l.initialize(ctx, input)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.initializing = false
	if err != nil {
		return nil, err
	}
	l.state = lifecycleDomain.StateSealed
	l.sealConfig = sealConfig

	l.logger.Info("service initialized",
		slog.Int("secret_shares", sealConfig.SecretShares),
		slog.Int("secret_threshold", sealConfig.SecretThreshold),
		slog.Bool("kms_wrapped", len(sealConfig.WrappedRootKey) > 0),
	)

	return output, nil
}

func (l *lifecycleUseCase) initialize(
	ctx context.Context,
	input *lifecycleDomain.InitInput,
) (*lifecycleDomain.SealConfig, *lifecycleDomain.InitOutput, error) {
	params := *input
	if params.SecretShares == 0 && params.SecretThreshold == 0 {
		params.SecretShares = l.options.DefaultShares
		params.SecretThreshold = l.options.DefaultThreshold
	}
	if err := params.Validate(); err != nil {
		return nil, nil, validation.WrapValidationError(err)
	}

	rootKey := make([]byte, lifecycleDomain.RootKeyLength)
	if _, err := rand.Read(rootKey); err != nil {
		return nil, nil, apperrors.Internal(err, "failed to generate root key")
	}
	defer clear(rootKey)

	shares, err := l.splitter.Split(rootKey, params.SecretShares, params.SecretThreshold)
	if err != nil {
		return nil, nil, apperrors.Internal(err, "failed to split root key")
	}

	keyCheck, err := l.keyChecker.Hash(rootKey)
	if err != nil {
		return nil, nil, apperrors.Internal(err, "failed to hash root key")
	}

	sealConfig := &lifecycleDomain.SealConfig{
		SecretShares:    params.SecretShares,
		SecretThreshold: params.SecretThreshold,
		KeyCheck:        keyCheck,
		KMSKeyURI:       l.options.KMSKeyURI,
		CreatedAt:       time.Now().UTC(),
	}

	if l.options.KMSKeyURI != "" {
		wrapped, err := l.wrapRootKey(ctx, rootKey)
		if err != nil {
			return nil, nil, err
		}
		sealConfig.WrappedRootKey = wrapped
	}

	issued, err := l.tokenIssuer.Issue(ctx, &authDomain.IssueTokenInput{
		Policies: []string{policyDomain.RootPolicyName},
		TTL:      l.options.RootTokenTTL,
	})
	if err != nil {
		return nil, nil, apperrors.Internal(err, "failed to issue root token")
	}

	if err := l.sealConfigRepo.Create(ctx, sealConfig); err != nil {
		if delErr := l.tokenIssuer.Delete(ctx, issued.Token.ID); delErr != nil {
			l.logger.Error("failed to withdraw root token", slog.Any("error", delErr))
		}
		if apperrors.Is(err, lifecycleDomain.ErrAlreadyInitialized) {
			return nil, nil, err
		}
		return nil, nil, apperrors.Internal(err, "failed to store seal configuration")
	}

	keys := make([]string, len(shares))
	for i, share := range shares {
		keys[i] = hex.EncodeToString(share)
		clear(share)
	}

	return sealConfig, &lifecycleDomain.InitOutput{Keys: keys, RootToken: issued.PlainToken}, nil
}

func (l *lifecycleUseCase) wrapRootKey(ctx context.Context, rootKey []byte) ([]byte, error) {
	keeper, err := l.kmsService.OpenKeeper(ctx, l.options.KMSKeyURI)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to open kms keeper")
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			l.logger.Error("failed to close kms keeper", slog.Any("error", closeErr))
		}
	}()

	wrapped, err := keeper.Encrypt(ctx, rootKey)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to wrap root key")
	}
	return wrapped, nil
}

// Unseal records one share and unseals once the threshold is reached.
func (l *lifecycleUseCase) Unseal(
	ctx context.Context,
	input *lifecycleDomain.UnsealInput,
) (*lifecycleDomain.UnsealOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireSealed(); err != nil {
		return nil, err
	}

	if input.Reset {
		l.shares = nil
		return l.progress(), nil
	}

	share, err := decodeKeyShare(input.Key)
	if err != nil {
		return nil, err
	}

	duplicate, err := l.hasShare(share)
	if err != nil {
		clear(share)
		return nil, apperrors.Internal(err, "failed to compare key shares")
	}
	if duplicate {
		clear(share)
		return l.progress(), nil
	}

	l.shares = append(l.shares, memguard.NewEnclave(share))
	if len(l.shares) < l.sealConfig.SecretThreshold {
		return l.progress(), nil
	}

	rootKey, err := l.combineShares()
	l.shares = nil
	if err != nil {
		return nil, err
	}

	ok, err := l.keyChecker.Verify(rootKey, l.sealConfig.KeyCheck)
	if err != nil {
		clear(rootKey)
		return nil, apperrors.Internal(err, "failed to verify root key")
	}
	if !ok {
		clear(rootKey)
		return nil, lifecycleDomain.ErrInvalidUnsealKey
	}

	l.rootKey.Store(rootKey)
	l.state = lifecycleDomain.StateUnsealed
	l.logger.Info("service unsealed")

	return l.progress(), nil
}

func (l *lifecycleUseCase) requireSealed() error {
	switch l.state {
	case lifecycleDomain.StateUninitialized:
		return lifecycleDomain.ErrNotInitialized
	case lifecycleDomain.StateUnsealed:
		return lifecycleDomain.ErrNotSealed
	}
	return nil
}

func (l *lifecycleUseCase) hasShare(share []byte) (bool, error) {
	for _, enclave := range l.shares {
		buf, err := enclave.Open()
		if err != nil {
			return false, err
		}
		equal := buf.EqualTo(share)
		buf.Destroy()
		if equal {
			return true, nil
		}
	}
	return false, nil
}

func (l *lifecycleUseCase) combineShares() ([]byte, error) {
	parts := make([][]byte, 0, len(l.shares))
	defer func() {
		for _, part := range parts {
			clear(part)
		}
	}()

	for _, enclave := range l.shares {
		buf, err := enclave.Open()
		if err != nil {
			return nil, apperrors.Internal(err, "failed to open key share")
		}
		parts = append(parts, append([]byte(nil), buf.Bytes()...))
		buf.Destroy()
	}

	rootKey, err := l.splitter.Combine(parts)
	if err != nil {
		return nil, lifecycleDomain.ErrInvalidUnsealKey
	}
	return rootKey, nil
}

func (l *lifecycleUseCase) progress() *lifecycleDomain.UnsealOutput {
	output := &lifecycleDomain.UnsealOutput{
		Sealed:   l.state != lifecycleDomain.StateUnsealed,
		Progress: len(l.shares),
	}
	if l.sealConfig != nil {
		output.Threshold = l.sealConfig.SecretThreshold
		output.Shares = l.sealConfig.SecretShares
	}
	return output
}

// decodeKeyShare accepts hex, falling back to standard base64.
func decodeKeyShare(key string) ([]byte, error) {
	if key == "" {
		return nil, lifecycleDomain.ErrMalformedKeyShare
	}
	if share, err := hex.DecodeString(key); err == nil {
		return share, nil
	}
	if share, err := base64.StdEncoding.DecodeString(key); err == nil && len(share) > 0 {
		return share, nil
	}
	return nil, lifecycleDomain.ErrMalformedKeyShare
}

// Seal moves the service from unsealed to sealed.
func (l *lifecycleUseCase) Seal(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case lifecycleDomain.StateUninitialized:
		return lifecycleDomain.ErrNotInitialized
	case lifecycleDomain.StateSealed:
		return lifecycleDomain.ErrSealed
	}

	l.rootKey.Destroy()
	l.shares = nil
	l.state = lifecycleDomain.StateSealed
	l.logger.Info("service sealed")

	return nil
}

// Status reports the state without changing it.
func (l *lifecycleUseCase) Status(ctx context.Context) (*lifecycleDomain.StatusOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	progress := l.progress()
	return &lifecycleDomain.StatusOutput{
		State:       l.state,
		Initialized: l.state != lifecycleDomain.StateUninitialized,
		Sealed:      l.state != lifecycleDomain.StateUnsealed,
		Threshold:   progress.Threshold,
		Shares:      progress.Shares,
		Progress:    progress.Progress,
	}, nil
}

// State returns the current lifecycle state.
func (l *lifecycleUseCase) State() lifecycleDomain.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// WithRootKey runs fn with the root key held in locked memory.
func (l *lifecycleUseCase) WithRootKey(fn func(rootKey []byte) error) error {
	err := l.rootKey.With(fn)
	if apperrors.Is(err, lifecycleService.ErrKeyNotHeld) {
		return lifecycleDomain.ErrSealed
	}
	return err
}

// Load sets the startup state from storage.
func (l *lifecycleUseCase) Load(ctx context.Context) error {
	sealConfig, err := l.sealConfigRepo.Get(ctx)
	if err != nil && !apperrors.Is(err, lifecycleDomain.ErrSealConfigNotFound) {
		return apperrors.Internal(err, "failed to load seal configuration")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rootKey.Destroy()
	l.shares = nil
	l.sealConfig = sealConfig
	l.state = lifecycleDomain.StateUninitialized
	if sealConfig != nil {
		l.state = lifecycleDomain.StateSealed
	}

	return nil
}

// AutoUnseal decrypts the wrapped root key with the KMS and unseals with it.
func (l *lifecycleUseCase) AutoUnseal(ctx context.Context) error {
	l.mu.Lock()
	if err := l.requireSealed(); err != nil {
		l.mu.Unlock()
		return err
	}
	sealConfig := l.sealConfig
	l.mu.Unlock()

	keyURI := sealConfig.KMSKeyURI
	if keyURI == "" {
		keyURI = l.options.KMSKeyURI
	}
	if len(sealConfig.WrappedRootKey) == 0 || keyURI == "" {
		return lifecycleDomain.ErrAutoUnsealUnavailable
	}

	keeper, err := l.kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return apperrors.Internal(err, "failed to open kms keeper")
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			l.logger.Error("failed to close kms keeper", slog.Any("error", closeErr))
		}
	}()

	rootKey, err := keeper.Decrypt(ctx, sealConfig.WrappedRootKey)
	if err != nil {
		return apperrors.Internal(err, "failed to unwrap root key")
	}

	ok, err := l.keyChecker.Verify(rootKey, sealConfig.KeyCheck)
	if err != nil {
		clear(rootKey)
		return apperrors.Internal(err, "failed to verify root key")
	}
	if !ok {
		clear(rootKey)
		return lifecycleDomain.ErrInvalidUnsealKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireSealed(); err != nil {
		clear(rootKey)
		return err
	}

	l.rootKey.Store(rootKey)
	l.shares = nil
	l.state = lifecycleDomain.StateUnsealed
	l.logger.Info("service unsealed by kms")

	return nil
}

// NewLifecycleUseCase creates a LifecycleUseCase in the uninitialized state. Call Load
// to pick up an existing seal configuration.
func NewLifecycleUseCase(
	sealConfigRepo SealConfigRepository,
	tokenIssuer TokenIssuer,
	splitter lifecycleService.KeyShareSplitter,
	keyChecker lifecycleService.KeyChecker,
	kmsService lifecycleService.KMSService,
	options Options,
	logger *slog.Logger,
) LifecycleUseCase {
	return &lifecycleUseCase{
		state:          lifecycleDomain.StateUninitialized,
		rootKey:        lifecycleService.NewKeyHolder(),
		sealConfigRepo: sealConfigRepo,
		tokenIssuer:    tokenIssuer,
		splitter:       splitter,
		keyChecker:     keyChecker,
		kmsService:     kmsService,
		options:        options,
		logger:         logger,
	}
}
