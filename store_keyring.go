package authclient

import (
	"errors"

	"github.com/99designs/keyring"
	goerrors "github.com/goliatone/go-errors"
)

// KeyringStore is a SessionStore over the OS keychain/credential manager.
// Used by desktop and CLI compositions where markers must survive restarts
// without touching disk in plaintext.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens the OS keyring under the given service namespace.
func NewKeyringStore(serviceName string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open OS keyring")
	}

	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStoreFrom wraps an already-opened keyring (tests use
// keyring.NewArrayKeyring).
func NewKeyringStoreFrom(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrMarkerNotFound
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "keyring get failed")
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "keyring set failed")
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "keyring delete failed")
	}
	return nil
}

func (s *KeyringStore) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "keyring keys failed")
	}
	return keys, nil
}

var _ SessionStore = (*KeyringStore)(nil)
