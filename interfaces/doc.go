// Package interfaces defines core interfaces and types shared by the key
// hierarchy and its storage, separating interface definitions from
// implementations.
//
// # Storage Interfaces
//
// SecretStore: Durable (itemID, account) -> bytes store used to persist persona
// keys. Implementations live in the storage package (memory, file, OS keyring,
// Vault, S3, multi-store).
//
// SecretStoreFactory: Creates secret stores from location URIs and aggregates
// several into a multi-store with fallback.
//
// # Key Types
//
// KeyType: Closed set of persona key kinds ("MasterKey", "SecretBox.SecretKey",
// "GenericHash.Key"). The names are part of the persisted item id
// "<applicationIdentity>/<KeyType>" and are an on-disk contract.
//
// # Errors
//
// ErrItemNotFound distinguishes a missing item, which callers handle, from
// every other store failure, which they propagate.
package interfaces
