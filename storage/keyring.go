package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/zalando/go-keyring"
)

// keyringProbeItem is looked up by Available; it is never written.
const keyringProbeItem = "keymaster.probe"

// KeyringStore implements a secret store on the platform credential store
// (macOS Keychain, Secret Service on Linux, Windows Credential Manager).
// The service name is servicePrefix + itemID and the account is the
// keyring user, so items show up in credential browsers under the
// application's name.
type KeyringStore struct {
	servicePrefix string
	log           *slog.Logger
}

// NewKeyringStore creates a store on the OS keyring.
func NewKeyringStore(servicePrefix string, log *slog.Logger) *KeyringStore {
	if log == nil {
		log = slog.Default()
	}
	return &KeyringStore{
		servicePrefix: servicePrefix,
		log:           log,
	}
}

// Get returns the stored item. The keyring API hands back a string, so
// one immutable copy of the payload stays on the heap until collected.
func (s *KeyringStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	start := time.Now()
	service := s.service(itemID)

	value, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, interfaces.ErrItemNotFound
	}
	if err != nil {
		s.log.Error("Failed to read from keyring",
			slog.String("service", service),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Debug("Fetched item from keyring",
		slog.String("service", service),
		slog.Duration("duration", time.Since(start)))
	return []byte(value), nil
}

// Put creates or replaces the keyring entry.
func (s *KeyringStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	service := s.service(itemID)

	if err := keyring.Set(service, account, string(data)); err != nil {
		s.log.Error("Failed to write to keyring",
			slog.String("service", service),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the keyring entry.
func (s *KeyringStore) Delete(ctx context.Context, itemID, account string) error {
	service := s.service(itemID)

	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return interfaces.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Available checks that the keyring answers a lookup.
func (s *KeyringStore) Available(ctx context.Context) bool {
	_, err := keyring.Get(s.service(keyringProbeItem), "probe")
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	s.log.Debug("Keyring unavailable", "err", err)
	return false
}

// Name returns a unique identifier for this store.
func (s *KeyringStore) Name() string {
	return "keyring-" + s.servicePrefix
}

// LocationURI returns the URI that identifies this store.
func (s *KeyringStore) LocationURI() string {
	return "keyring://" + s.servicePrefix
}

func (s *KeyringStore) service(itemID string) string {
	return s.servicePrefix + itemID
}
