// Package credentials stores the DreamHost API key in the OS keychain.
package credentials

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// ServiceName is the keychain service entries are stored under.
const ServiceName = "dhdnssync"

// DefaultAccount is the keychain user for the DreamHost API key.
const DefaultAccount = "dreamhost"

// ErrNotFound is returned when no key is stored for the account.
var ErrNotFound = errors.New("api key not found in keyring")

// Store reads and writes API keys.
type Store interface {
	Set(account, key string) error
	Get(account string) (string, error)
	Delete(account string) error
}

// KeyringStore is a Store backed by the OS keychain.
type KeyringStore struct {
	serviceName string
}

// NewKeyringStore returns a keychain store for serviceName, or ServiceName
// when empty.
func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

// DefaultStore returns the standard store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

func (k *KeyringStore) Set(account, key string) error {
	return keyring.Set(k.serviceName, normalize(account), key)
}

func (k *KeyringStore) Get(account string) (string, error) {
	key, err := keyring.Get(k.serviceName, normalize(account))
	if err == nil {
		return key, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", err
}

func (k *KeyringStore) Delete(account string) error {
	err := keyring.Delete(k.serviceName, normalize(account))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Lookup returns the key stored for account, or an empty string when none
// is stored. Other keychain errors are returned as-is.
func Lookup(s Store, account string) (string, error) {
	key, err := s.Get(account)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return key, err
}

func normalize(account string) string {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		return DefaultAccount
	}
	return account
}
