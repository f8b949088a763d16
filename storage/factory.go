package storage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/hashicorp/vault/api"
	"github.com/ruteri/keymaster/interfaces"
)

var _ interfaces.SecretStoreFactory = (*StoreFactory)(nil)

// StoreFactory creates secret stores from location URIs and manages
// multi-store configurations with fallback.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance that can create secret stores.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreFactory{log: logger}
}

// StoreFor creates a secret store from a location.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - memory:// - Process memory, lost on exit
//   - file:// - Local filesystem, optionally age-encrypted
//   - keyring:// - OS credential store
//   - vault:// - HashiCorp Vault KV v2
//   - s3:// - Amazon S3 or compatible object storage
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.SecretStore, error) {
	switch location.Scheme {
	case "memory":
		return NewMemoryStore(sf.log), nil
	case "file":
		return sf.createFileStore(location)
	case "keyring":
		return sf.createKeyringStore(location)
	case "vault":
		return sf.createVaultStore(location)
	case "s3":
		return sf.createS3Store(location)
	default:
		return nil, fmt.Errorf("%w: unsupported store scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// MultiStoreFor creates a multi-store from a list of locations. Every
// location must produce a store: silently dropping one would let a missing
// key be recreated elsewhere.
func (sf *StoreFactory) MultiStoreFor(locations []interfaces.StoreLocation) (interfaces.SecretStore, error) {
	if len(locations) == 0 {
		return nil, fmt.Errorf("no store locations given")
	}

	stores := make([]interfaces.SecretStore, 0, len(locations))
	for _, location := range locations {
		store, err := sf.StoreFor(location)
		if err != nil {
			sf.log.Error("Failed to create secret store",
				"err", err,
				slog.String("location", location.String()))
			return nil, fmt.Errorf("failed to create store for %s: %w", location, err)
		}
		stores = append(stores, store)
	}

	if len(stores) == 1 {
		return stores[0], nil
	}
	return NewMultiStore(stores, sf.log), nil
}

// StoresFromURIs parses location URIs and builds the aggregated store.
func (sf *StoreFactory) StoresFromURIs(uris []string) (interfaces.SecretStore, error) {
	locations := make([]interfaces.StoreLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStoreLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return sf.MultiStoreFor(locations)
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path?age-identity=/path/to/identity.txt
// or file://./relative/path
func (sf *StoreFactory) createFileStore(location interfaces.StoreLocation) (interfaces.SecretStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	var identity *age.X25519Identity
	if identityPath := location.GetParam("age-identity"); identityPath != "" {
		var err error
		identity, err = LoadAgeIdentity(identityPath)
		if err != nil {
			return nil, err
		}
	}

	return NewFileStore(path, identity, sf.log)
}

// createKeyringStore creates an OS keyring store.
// URI format: keyring://service-prefix
func (sf *StoreFactory) createKeyringStore(location interfaces.StoreLocation) (interfaces.SecretStore, error) {
	sf.log.Debug("Creating keyring store", slog.String("uri", location.String()))

	prefix := location.Host + location.Path
	return NewKeyringStore(prefix, sf.log), nil
}

// createVaultStore creates a Vault KV v2 store.
// URI format: vault://host:port/mount/path?tls=true&token-env=VAULT_TOKEN&ca-cert=/path/ca.pem
// The token is read from the named environment variable, never from the URI.
func (sf *StoreFactory) createVaultStore(location interfaces.StoreLocation) (interfaces.SecretStore, error) {
	sf.log.Debug("Creating Vault store", slog.String("uri", location.String()))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault host", interfaces.ErrInvalidLocationURI)
	}

	segments := strings.SplitN(strings.Trim(location.Path, "/"), "/", 2)
	mountPath := segments[0]
	var dataPath string
	if len(segments) > 1 {
		dataPath = segments[1]
	}

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	tokenEnv := location.GetParam("token-env")
	if tokenEnv == "" {
		tokenEnv = "VAULT_TOKEN"
	}

	cfg := VaultStoreConfig{
		Address:   scheme + "://" + location.Host,
		MountPath: mountPath,
		DataPath:  dataPath,
		Token:     os.Getenv(tokenEnv),
	}
	if caCert := location.GetParam("ca-cert"); caCert != "" {
		cfg.TLS = &api.TLSConfig{CACert: caCert}
	}

	return NewVaultStore(cfg, sf.log)
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix?region=us-west-2&endpoint=custom.s3.com
// Without embedded credentials the AWS default credential chain applies.
func (sf *StoreFactory) createS3Store(location interfaces.StoreLocation) (interfaces.SecretStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("uri", location.String()))

	cfg := S3StoreConfig{
		Bucket:   location.Host,
		Prefix:   strings.TrimPrefix(location.Path, "/"),
		Region:   location.GetParam("region"),
		Endpoint: location.GetParam("endpoint"),
	}
	if location.User != nil {
		cfg.AccessKey = location.User.Username()
		cfg.SecretKey, _ = location.User.Password()
		sf.log.Debug("Using embedded S3 credentials")
	}

	return NewS3Store(cfg, sf.log)
}
