package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/keymaster/interfaces"
)

// MultiStore implements interfaces.SecretStore over several stores with
// fallback. Reads return the first hit; writes and deletes go to every
// available store.
//
// An item is reported missing only when every store answered that it is
// missing. A store that is down or failing turns a miss into
// ErrStoreUnavailable, so callers never mistake an unreachable key for an
// absent one and create a replacement.
type MultiStore struct {
	stores []interfaces.SecretStore
	log    *slog.Logger
}

// NewMultiStore creates a multi-store with fallback.
func NewMultiStore(stores []interfaces.SecretStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStore{
		stores: stores,
		log:    logger,
	}
}

// Get returns the item from the first available store holding it.
func (m *MultiStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable",
				slog.String("store_name", store.Name()),
				slog.String("item_id", itemID))
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrStoreUnavailable))
			continue
		}

		data, err := store.Get(ctx, itemID, account)
		if err == nil {
			m.log.Debug("Fetched item",
				slog.String("store_name", store.Name()),
				slog.String("item_id", itemID),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}
		if errors.Is(err, interfaces.ErrItemNotFound) {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		m.log.Debug("Failed to fetch from store",
			slog.String("store_name", store.Name()),
			slog.String("item_id", itemID),
			"err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrItemNotFound
	}

	m.log.Error("No store could serve item",
		slog.String("item_id", itemID),
		slog.Int("failed_stores", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("%w: %w", interfaces.ErrStoreUnavailable, errors.Join(errs...))
}

// Put writes the item to all available stores and succeeds if at least one
// write did.
func (m *MultiStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	start := time.Now()
	var written int
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store_name", store.Name()))
			continue
		}

		if err := store.Put(ctx, itemID, account, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Warn("Failed to store to store",
				slog.String("store_name", store.Name()),
				slog.String("item_id", itemID),
				"err", err)
			continue
		}
		written++
	}

	if written == 0 {
		m.log.Error("All stores failed to store item",
			slog.String("item_id", itemID),
			slog.Int("failed_stores", len(errs)),
			slog.Duration("duration", time.Since(start)))
		errs = append(errs, interfaces.ErrStoreUnavailable)
		return fmt.Errorf("all stores failed to store %s: %w", itemID, errors.Join(errs...))
	}

	m.log.Info("Stored item",
		slog.String("item_id", itemID),
		slog.Int("stores", written),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes the item from every available store. It returns
// ErrItemNotFound only if every store reported the item missing.
func (m *MultiStore) Delete(ctx context.Context, itemID, account string) error {
	var deleted int
	var errs []error

	for _, store := range m.stores {
		if !store.Available(ctx) {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrStoreUnavailable))
			continue
		}

		err := store.Delete(ctx, itemID, account)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, interfaces.ErrItemNotFound):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete %s: %w", itemID, errors.Join(errs...))
	}
	if deleted == 0 {
		return interfaces.ErrItemNotFound
	}
	return nil
}

// Available checks if any store is available
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this store
func (m *MultiStore) Name() string {
	return "multi-store"
}

// LocationURI combines the location URIs of all stores.
func (m *MultiStore) LocationURI() string {
	var locations []string
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
