package primitives

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// SecretBoxKeySize is the key length of nacl/secretbox. Every suite must
	// be able to derive keys of this size.
	SecretBoxKeySize = 32

	// GenericHashKeySize is the default keyed-BLAKE2b key length. Every suite
	// must be able to derive keys of this size.
	GenericHashKeySize = 32
)

// Suite is the set of key-derivation primitives the key hierarchy is built
// on. The lengths it reports are configuration of the primitive and must not
// be assumed by callers.
type Suite interface {
	// Name identifies the suite in configuration.
	Name() string

	// MasterKeyLen is the length of a root key.
	MasterKeyLen() int
	// ContextLen is the exact length of a derivation context.
	ContextLen() int
	// MinSubkeyLen and MaxSubkeyLen bound the length of derived keys.
	MinSubkeyLen() int
	MaxSubkeyLen() int

	// Keygen fills out (MasterKeyLen bytes) with a fresh root key.
	Keygen(out []byte)

	// Derive fills out with the subkey identified by subKeyID and ctx.
	// len(out) is the requested length and is part of the derivation input.
	// Callers validate all lengths beforehand.
	Derive(out, masterKey []byte, subKeyID uint64, ctx []byte)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Suite{}
)

// Register makes a suite available to Lookup. It panics if the name is
// taken or the suite cannot derive secretbox and generic hash keys.
func Register(suite Suite) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := suite.Name()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("primitives: suite %q registered twice", name))
	}
	for _, size := range []int{SecretBoxKeySize, GenericHashKeySize} {
		if size < suite.MinSubkeyLen() || size > suite.MaxSubkeyLen() {
			panic(fmt.Sprintf("primitives: suite %q cannot derive %d-byte keys", name, size))
		}
	}
	if suite.MasterKeyLen() <= 0 || suite.ContextLen() <= 0 {
		panic(fmt.Sprintf("primitives: suite %q has invalid key or context length", name))
	}
	registry[name] = suite
}

// Lookup returns the registered suite with the given name.
func Lookup(name string) (Suite, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	suite, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown kdf suite %q (available: %v)", name, namesLocked())
	}
	return suite, nil
}

// Names lists the registered suites in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the BLAKE2b suite.
func Default() Suite {
	return blake2bSuite{}
}

func init() {
	Register(blake2bSuite{})
	Register(blake3Suite{})
	Register(hkdfSuite{})
}
