// ABOUTME: Persists the current account and device id in the OS keyring
// ABOUTME: Falls back to an encrypted file keyring when configured

package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"github.com/google/uuid"
)

const (
	serviceName   = "forceapp"
	currentKey    = "current-account"
	deviceIDKey   = "device-id"
	currentLabel  = "forceapp current user"
	deviceIDLabel = "forceapp device id"
)

// Store persists the current account.
type Store interface {
	Load() (*Account, error) // ErrNoAccount when nothing is stored
	Save(a *Account) error
	Clear() error
	DeviceID() (string, error)
}

// KeyringConfig selects the keyring backend.
type KeyringConfig struct {
	Backend  string // empty = platform default order
	Dir      string // file backend directory
	Password string // file backend passphrase
}

// KeyringStore is a Store backed by github.com/99designs/keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the configured keyring backend.
func OpenKeyring(cfg KeyringConfig) (*KeyringStore, error) {
	kc := keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		FileDir:                  cfg.Dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Password),
	}

	if cfg.Backend != "" {
		backend, err := parseBackend(cfg.Backend)
		if err != nil {
			return nil, err
		}
		kc.AllowedBackends = []keyring.BackendType{backend}
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Load() (*Account, error) {
	item, err := s.ring.Get(currentKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}

	var a Account
	if err := json.Unmarshal(item.Data, &a); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &a, nil
}

func (s *KeyringStore) Save(a *Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: currentKey, Data: data, Label: currentLabel}); err != nil {
		return fmt.Errorf("write account: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	err := s.ring.Remove(currentKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove account: %w", err)
	}
	return nil
}

// DeviceID returns a stable per-installation id, creating it on first use.
func (s *KeyringStore) DeviceID() (string, error) {
	item, err := s.ring.Get(deviceIDKey)
	if err == nil && len(item.Data) > 0 {
		return string(item.Data), nil
	}
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := s.ring.Set(keyring.Item{Key: deviceIDKey, Data: []byte(id), Label: deviceIDLabel}); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}

func parseBackend(name string) (keyring.BackendType, error) {
	switch strings.ToLower(name) {
	case "keychain":
		return keyring.KeychainBackend, nil
	case "secret-service", "secretservice":
		return keyring.SecretServiceBackend, nil
	case "wincred":
		return keyring.WinCredBackend, nil
	case "kwallet":
		return keyring.KWalletBackend, nil
	case "pass":
		return keyring.PassBackend, nil
	case "file":
		return keyring.FileBackend, nil
	default:
		return keyring.InvalidBackend, fmt.Errorf("unknown keyring backend %q", name)
	}
}
