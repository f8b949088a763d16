// Package persona binds named identities to lazily created keys kept in a
// secret store.
//
// A KeyStore is scoped to one application identity. For every persona it
// manages one key per interfaces.KeyType, persisted under the item id
// "<applicationIdentity>/<KeyType>" with the persona's unique name as the
// account. The stored payload is the standard base64 encoding of the raw key
// bytes.
//
// Keys are created on first access and reused afterwards:
//
//	ks, _ := persona.NewKeyStore(persona.KeyStoreConfig{
//		ApplicationIdentity: "com.example.app",
//		Store:               storage.NewMemoryStore(log),
//	})
//	alice, _ := ks.Persona("alice")
//	box, err := alice.SecretBoxKey(ctx)
//
// Forget deletes every key of a persona; the next access creates new,
// unrelated keys.
//
// Access to one persona is serialized within a KeyStore. Separate processes
// sharing a store are not coordinated: two of them creating the same key at
// once each persist their own, and the last write wins.
package persona
