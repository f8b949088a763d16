package persona

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/ruteri/keymaster/kms"
	"github.com/ruteri/keymaster/primitives"
	"github.com/ruteri/keymaster/secret"
)

var (
	// ErrFailedToDecodeKey is returned when a stored payload is not valid base64.
	ErrFailedToDecodeKey = errors.New("persona: failed to decode key")

	// ErrInvalidKey is returned when a decoded payload has the wrong size for its key type.
	ErrInvalidKey = errors.New("persona: invalid key")

	// ErrInvalidName is returned for an empty persona name.
	ErrInvalidName = errors.New("persona: invalid unique name")
)

// KeyStoreConfig configures a KeyStore.
type KeyStoreConfig struct {
	// ApplicationIdentity prefixes every item id, e.g. "com.example.app".
	ApplicationIdentity string
	// Store persists the keys.
	Store interfaces.SecretStore
	// Suite is used to generate and restore master keys. Defaults to primitives.Default().
	Suite primitives.Suite
	// Log defaults to slog.Default().
	Log *slog.Logger
}

// KeyStore binds persona names to lazily created keys persisted in a secret
// store. Get-or-create and forget are serialized per persona within one
// KeyStore; processes sharing a store are not coordinated.
type KeyStore struct {
	appIdentity string
	store       interfaces.SecretStore
	suite       primitives.Suite
	log         *slog.Logger
	locks       *keyedMutex
}

// NewKeyStore creates a key store for one application identity.
func NewKeyStore(cfg KeyStoreConfig) (*KeyStore, error) {
	if err := interfaces.ValidateApplicationIdentity(cfg.ApplicationIdentity); err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, errors.New("secret store is required")
	}
	if cfg.Suite == nil {
		cfg.Suite = primitives.Default()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &KeyStore{
		appIdentity: cfg.ApplicationIdentity,
		store:       cfg.Store,
		suite:       cfg.Suite,
		log:         cfg.Log,
		locks:       newKeyedMutex(),
	}, nil
}

// ApplicationIdentity returns the item id prefix of this store.
func (ks *KeyStore) ApplicationIdentity() string {
	return ks.appIdentity
}

// Persona returns a handle for uniqueName. Handles are stateless: keys are
// created on first access and outlive the handle.
func (ks *KeyStore) Persona(uniqueName string) (*Persona, error) {
	if uniqueName == "" {
		return nil, ErrInvalidName
	}
	return &Persona{ks: ks, uniqueName: uniqueName}, nil
}

// Persona is a named identity owning one key per interfaces.KeyType.
type Persona struct {
	ks         *KeyStore
	uniqueName string
}

// UniqueName returns the persona's name, used as the store account.
func (p *Persona) UniqueName() string {
	return p.uniqueName
}

// MasterKey returns the persona's master key, creating it on first use.
func (p *Persona) MasterKey(ctx context.Context) (*kms.MasterKey, error) {
	suite := p.ks.suite
	return getOrCreate(ctx, p, interfaces.MasterKeyType,
		func() (*kms.MasterKey, error) { return kms.GenerateMasterKey(suite), nil },
		func(data []byte) (*kms.MasterKey, error) { return kms.RestoreMasterKey(suite, data) },
	)
}

// SecretBoxKey returns the persona's secretbox key, creating it on first use.
func (p *Persona) SecretBoxKey(ctx context.Context) (*kms.SecretBoxKey, error) {
	return getOrCreate(ctx, p, interfaces.SecretBoxKeyType,
		func() (*kms.SecretBoxKey, error) { return kms.GenerateSecretBoxKey(), nil },
		kms.RestoreSecretBoxKey,
	)
}

// GenericHashKey returns the persona's keyed-hash key, creating it on first use.
func (p *Persona) GenericHashKey(ctx context.Context) (*kms.GenericHashKey, error) {
	return getOrCreate(ctx, p, interfaces.GenericHashKeyType,
		func() (*kms.GenericHashKey, error) { return kms.GenerateGenericHashKey(kms.DefaultGenericHashKeySize) },
		kms.RestoreGenericHashKey,
	)
}

// Forget deletes every key of the persona. Missing items are skipped; any
// other store error stops the deletion and is returned. A later access
// creates new, unrelated keys.
func (p *Persona) Forget(ctx context.Context) error {
	unlock := p.lock()
	defer unlock()

	for _, kt := range interfaces.AllKeyTypes {
		itemID := interfaces.ItemID(p.ks.appIdentity, kt)
		err := p.ks.store.Delete(ctx, itemID, p.uniqueName)
		switch {
		case err == nil:
			p.ks.log.Info("Deleted persona key",
				slog.String("persona", p.uniqueName),
				slog.String("key_type", kt.String()))
		case errors.Is(err, interfaces.ErrItemNotFound):
			p.ks.log.Debug("Persona key already absent",
				slog.String("persona", p.uniqueName),
				slog.String("key_type", kt.String()))
		default:
			p.ks.log.Error("Failed to delete persona key",
				slog.String("persona", p.uniqueName),
				slog.String("key_type", kt.String()),
				"err", err)
			return fmt.Errorf("failed to delete %s: %w", kt, err)
		}
	}
	return nil
}

func (p *Persona) lock() func() {
	return p.ks.locks.Lock(p.ks.appIdentity + "\x00" + p.uniqueName)
}

// getOrCreate implements the Absent -> Present transition for one key type:
// a stored key is decoded and returned, a missing one is created, persisted
// and returned. Store errors other than ErrItemNotFound propagate.
func getOrCreate[K kms.Key](ctx context.Context, p *Persona, kt interfaces.KeyType, create func() (K, error), decode func([]byte) (K, error)) (K, error) {
	var zero K
	start := time.Now()
	itemID := interfaces.ItemID(p.ks.appIdentity, kt)

	unlock := p.lock()
	defer unlock()

	stored, err := p.ks.store.Get(ctx, itemID, p.uniqueName)
	switch {
	case err == nil:
		key, err := decodeStored(stored, decode)
		if err != nil {
			p.ks.log.Error("Failed to load persona key",
				slog.String("persona", p.uniqueName),
				slog.String("key_type", kt.String()),
				"err", err)
			return zero, err
		}
		p.ks.log.Debug("Loaded persona key",
			slog.String("persona", p.uniqueName),
			slog.String("key_type", kt.String()),
			slog.Duration("duration", time.Since(start)))
		return key, nil

	case errors.Is(err, interfaces.ErrItemNotFound):
		// Absent: create below.

	default:
		return zero, fmt.Errorf("failed to read %s: %w", kt, err)
	}

	key, err := create()
	if err != nil {
		return zero, fmt.Errorf("failed to create %s: %w", kt, err)
	}

	if err := persist(ctx, p.ks.store, itemID, p.uniqueName, key); err != nil {
		key.Destroy()
		return zero, fmt.Errorf("failed to store %s: %w", kt, err)
	}

	p.ks.log.Info("Created persona key",
		slog.String("persona", p.uniqueName),
		slog.String("key_type", kt.String()),
		slog.Duration("duration", time.Since(start)))
	return key, nil
}

// decodeStored turns a base64 payload into a key. All intermediate copies
// of the secret are zeroed.
func decodeStored[K kms.Key](stored []byte, decode func([]byte) (K, error)) (K, error) {
	var zero K
	defer secret.Zero(stored)

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(stored)))
	defer secret.Zero(raw)

	n, err := base64.StdEncoding.Decode(raw, stored)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrFailedToDecodeKey, err)
	}

	key, err := decode(raw[:n])
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return key, nil
}

// persist writes base64(key) to the store, zeroing the plaintext copies.
func persist(ctx context.Context, store interfaces.SecretStore, itemID, account string, key kms.Key) error {
	raw, err := key.CopyBytes()
	if err != nil {
		return err
	}
	defer secret.Zero(raw)

	payload := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	defer secret.Zero(payload)
	base64.StdEncoding.Encode(payload, raw)

	return store.Put(ctx, itemID, account, payload)
}
