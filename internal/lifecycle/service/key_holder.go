package service

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrKeyNotHeld is returned by KeyHolder.With when no key is stored.
var ErrKeyNotHeld = errors.New("no key held")

// KeyHolder keeps one key encrypted in a memguard enclave. The plaintext only exists
// in locked memory for the duration of a With callback.
type KeyHolder struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewKeyHolder creates an empty KeyHolder.
func NewKeyHolder() *KeyHolder {
	return &KeyHolder{}
}

// Store seals key into the enclave, replacing any held key. key is wiped.
func (k *KeyHolder) Store(key []byte) {
	enclave := memguard.NewEnclave(key)

	k.mu.Lock()
	k.enclave = enclave
	k.mu.Unlock()
}

// Held reports whether a key is stored.
func (k *KeyHolder) Held() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.enclave != nil
}

// With opens the enclave and passes the plaintext key to fn. The slice must not be
// retained after fn returns.
func (k *KeyHolder) With(fn func(key []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.enclave == nil {
		return ErrKeyNotHeld
	}

	buf, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Destroy drops the held key.
func (k *KeyHolder) Destroy() {
	k.mu.Lock()
	k.enclave = nil
	k.mu.Unlock()
}
