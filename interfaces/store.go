package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrItemNotFound is returned when the requested item does not exist in the
	// secret store. It is an expected condition, not a failure.
	ErrItemNotFound = errors.New("item not found")

	// ErrStoreUnavailable is returned when a secret store is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrStoreUnavailable = errors.New("secret store unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)

// SecretStore durably keeps small secrets addressed by an item id and an
// account discriminator, the way platform credential stores do.
type SecretStore interface {
	// Get returns the stored bytes, or ErrItemNotFound.
	Get(ctx context.Context, itemID, account string) ([]byte, error)

	// Put creates or replaces the item.
	Put(ctx context.Context, itemID, account string, data []byte) error

	// Delete removes the item, or returns ErrItemNotFound if it does not exist.
	Delete(ctx context.Context, itemID, account string) error

	// Available checks if the store is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this store.
	LocationURI() string
}

// SecretStoreFactory creates secret stores.
type SecretStoreFactory interface {
	// StoreFor creates a store from a location.
	// Supports memory://, file://, keyring://, vault://, s3://
	StoreFor(location StoreLocation) (SecretStore, error)

	// MultiStoreFor creates an aggregated store.
	MultiStoreFor(locations []StoreLocation) (SecretStore, error)
}

// StoreLocation represents URI for a secret store.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	User   *url.Userinfo
}

// NewStoreLocation creates a store location from a URI string with validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "memory", "file", "keyring", "vault", "s3":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI with any password redacted.
func (loc StoreLocation) String() string {
	if loc.User == nil {
		return loc.Raw
	}
	parsed, err := url.Parse(loc.Raw)
	if err != nil {
		return loc.Scheme + "://***"
	}
	return parsed.Redacted()
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}
