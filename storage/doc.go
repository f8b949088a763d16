// Package storage provides secret stores for persona keys with pluggable
// backends.
//
// Every store implements interfaces.SecretStore: small payloads addressed by
// an item id and an account, with ErrItemNotFound reported for missing items.
//
//   - MemoryStore for tests and ephemeral use
//   - FileStore on the local file system, optionally sealed with age
//   - KeyringStore on the OS credential store
//   - VaultStore on a HashiCorp Vault KV v2 mount
//   - S3Store on Amazon S3 or a compatible service
//   - MultiStore aggregating several of the above with fallback
//
// # Store URI Format
//
// Stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://
//   - file:///var/lib/keymaster?age-identity=/etc/keymaster/identity.txt
//   - keyring://com.example.app.
//   - vault://vault.example.com:8200/secret/keymaster?tls=true&token-env=VAULT_TOKEN
//   - s3://bucket-name/prefix?region=us-west-2
//
// # Multi-Store
//
// MultiStore reads from the first available store holding the item and
// writes to every available store. A miss is reported only when all stores
// answered; if any store was down the caller gets ErrStoreUnavailable, so a
// key that merely cannot be reached is never replaced by a fresh one.
//
// # Security
//
// FileStore writes owner-only files through an atomic rename. With an age
// identity configured the payload is encrypted to the identity's recipient.
// S3 objects are private and server-side encrypted. Vault tokens are read
// from an environment variable, never from the URI.
package storage
