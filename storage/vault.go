package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/keymaster/interfaces"
)

// VaultStore implements a secret store on a HashiCorp Vault KV v2 mount.
// Items are kept at <mount>/data/<dataPath>/<itemID>/<account> with path
// elements URL-escaped; the payload is base64 in the "content" field.
type VaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// VaultStoreConfig configures a VaultStore.
type VaultStoreConfig struct {
	// Address of the Vault server, e.g. https://vault.example.com:8200
	Address string
	// MountPath of the KV v2 engine, e.g. "secret"
	MountPath string
	// DataPath within the mount, e.g. "keymaster"
	DataPath string
	// Token authenticates requests. Empty keeps the client's default (VAULT_TOKEN).
	Token string
	// TLS is optional CA and client certificate configuration.
	TLS *api.TLSConfig
	// Timeout of each HTTP request. Defaults to 30s.
	Timeout time.Duration
}

// NewVaultStore creates a Vault-backed store.
func NewVaultStore(cfg VaultStoreConfig, log *slog.Logger) (*VaultStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.Timeout = cfg.Timeout
	if cfg.TLS != nil {
		if err := config.ConfigureTLS(cfg.TLS); err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	dataPath := strings.Trim(cfg.DataPath, "/")
	if mountPath == "" {
		return nil, fmt.Errorf("%w: missing Vault mount path", interfaces.ErrInvalidLocationURI)
	}

	return &VaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(cfg.Address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Get reads the latest version of an item.
func (s *VaultStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	start := time.Now()
	path := s.kvPath("data", itemID, account)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		s.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	// Soft-deleted versions come back with nil data.
	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		return nil, interfaces.ErrItemNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}
	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}

	s.log.Debug("Fetched item from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return payload, nil
}

// Put writes a new version of an item.
func (s *VaultStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	start := time.Now()
	path := s.kvPath("data", itemID, account)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
		},
	}

	if _, err := s.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		s.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	s.log.Info("Stored item in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Delete removes every version of an item. Vault's delete succeeds on
// missing paths, so the metadata is read first to report ErrItemNotFound.
func (s *VaultStore) Delete(ctx context.Context, itemID, account string) error {
	path := s.kvPath("metadata", itemID, account)

	meta, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if meta == nil {
		return interfaces.ErrItemNotFound
	}

	if _, err := s.client.Logical().DeleteWithContext(ctx, path); err != nil {
		s.log.Error("Failed to delete from Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Available checks that Vault is initialized and unsealed.
func (s *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := s.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		s.log.Debug("Vault health check failed", "err", err)
		return false
	}
	if !health.Initialized || health.Sealed {
		s.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mountPath, s.dataPath)
}

// LocationURI returns the URI that identifies this store.
func (s *VaultStore) LocationURI() string {
	return s.locationURI
}

// kvPath builds a KV v2 API path; kind is "data" or "metadata".
func (s *VaultStore) kvPath(kind, itemID, account string) string {
	parts := []string{s.mountPath, kind}
	if s.dataPath != "" {
		parts = append(parts, s.dataPath)
	}
	parts = append(parts, escapePathElement(itemID), escapePathElement(account))
	return strings.Join(parts, "/")
}
