// Package kms implements the master key / derived key hierarchy.
//
// A [MasterKey] holds one root secret. [MasterKey.Derive] deterministically
// produces bounded-size subkeys addressed by a 64-bit subkey id and a
// fixed-length [Context]:
//
//	derived = suite.Derive(masterKey, subKeyID, context, size)
//
// The output is a pure function of the four inputs, and changing any one of
// them yields an unrelated key. This lets one master key serve many unrelated
// purposes: give each purpose its own context, and each key within a purpose
// its own subkey id.
//
// The lengths involved (master key, context, subkey bounds) belong to the
// [primitives.Suite] the master key was created with and are never assumed
// here.
//
// # Key kinds
//
// Every key kind wraps a [secret.Buffer] and exposes only the operations
// valid for its role:
//
//   - [MasterKey] -- generate, restore, derive
//   - [DerivedKey] -- produced only by Derive
//   - [SecretBoxKey] -- XSalsa20-Poly1305 Seal/Open
//   - [GenericHashKey] -- keyed BLAKE2b Sum
//
// # Master Key Protection
//
// [SplitMasterKey] splits a master key with Shamir's Secret Sharing so that
// no single custodian holds it. [ShamirRecovery] collects shares, optionally
// requiring an Ed25519 signature from a registered admin on each, and
// rebuilds the master key in secure memory once the threshold is reached.
//
// # Usage Example
//
//	suite := primitives.Default()
//	masterKey := kms.GenerateMasterKey(suite)
//	defer masterKey.Destroy()
//
//	ctx, err := kms.NewContextFromString(suite, "mailbox1")
//	if err != nil {
//	    log.Fatalf("Invalid context: %v", err)
//	}
//
//	boxKey, err := masterKey.DeriveSecretBoxKey(1, ctx)
//	if err != nil {
//	    log.Fatalf("Failed to derive key: %v", err)
//	}
//	defer boxKey.Destroy()
//
//	sealed, err := boxKey.Seal([]byte("hello"))
package kms
