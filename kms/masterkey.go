package kms

import (
	"fmt"

	"github.com/ruteri/keymaster/primitives"
	"github.com/ruteri/keymaster/secret"
)

// Key is the set of operations shared by every key kind.
type Key interface {
	Size() int
	CopyBytes() ([]byte, error)
	Destroy()
}

// MasterKey is the root of a derivation tree. All subkeys are derived
// deterministically from it with the primitives of its suite.
type MasterKey struct {
	buf   *secret.Buffer
	suite primitives.Suite
}

// GenerateMasterKey creates a fresh master key using the suite's keygen.
func GenerateMasterKey(suite primitives.Suite) *MasterKey {
	buf, err := secret.New(suite.MasterKeyLen(), false)
	if err != nil {
		panic(fmt.Sprintf("kms: suite %q: %v", suite.Name(), err))
	}

	// Keygen cannot fail and the buffer is fresh.
	_ = buf.WithWriteAccess(func(out []byte) error {
		suite.Keygen(out)
		return nil
	})

	return &MasterKey{buf: buf, suite: suite}
}

// RestoreMasterKey adopts previously persisted master key bytes. The input
// slice is zeroed whether or not restoring succeeds.
func RestoreMasterKey(suite primitives.Suite, data []byte) (*MasterKey, error) {
	buf, err := secret.NewFromBytes(data, secret.Fixed(suite.MasterKeyLen()))
	if err != nil {
		return nil, fmt.Errorf("failed to restore master key: %w", err)
	}
	return &MasterKey{buf: buf, suite: suite}, nil
}

// Suite returns the primitives the key derives with.
func (m *MasterKey) Suite() primitives.Suite {
	return m.suite
}

// Size returns the key length in bytes.
func (m *MasterKey) Size() int {
	return m.buf.Size()
}

// Equal compares two master keys in constant time.
func (m *MasterKey) Equal(other *MasterKey) bool {
	if m == nil || other == nil {
		return false
	}
	return m.buf.Equal(other.buf)
}

// CopyBytes returns a heap copy of the key for persisting it. Zero the
// result with secret.Zero once done.
func (m *MasterKey) CopyBytes() ([]byte, error) {
	return m.buf.CopyBytes()
}

// Destroy wipes the key.
func (m *MasterKey) Destroy() {
	m.buf.Destroy()
}

// Derive produces the subkey of size bytes identified by subKeyID within ctx.
// The output is a pure function of the master key, subKeyID, ctx and size;
// changing any of them yields an unrelated key. The subkey is written
// straight into secure memory.
func (m *MasterKey) Derive(size int, subKeyID uint64, ctx Context) (*DerivedKey, error) {
	if size < m.suite.MinSubkeyLen() || size > m.suite.MaxSubkeyLen() {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrSizeOutOfRange, size, m.suite.MinSubkeyLen(), m.suite.MaxSubkeyLen())
	}
	if ctx.Len() != m.suite.ContextLen() {
		return nil, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidContext, m.suite.Name(), m.suite.ContextLen(), ctx.Len())
	}

	buf, err := secret.New(size, false)
	if err != nil {
		return nil, err
	}

	err = m.buf.WithReadAccess(func(master []byte) error {
		return buf.WithWriteAccess(func(out []byte) error {
			m.suite.Derive(out, master, subKeyID, ctx.Bytes())
			return nil
		})
	})
	if err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("failed to derive subkey: %w", err)
	}

	return &DerivedKey{buf: buf}, nil
}

// DeriveSecretBoxKey derives a secretbox key. The size is fixed and every
// registered suite admits it, so only a context of the wrong length or a
// destroyed master key can make it fail.
func (m *MasterKey) DeriveSecretBoxKey(subKeyID uint64, ctx Context) (*SecretBoxKey, error) {
	derived, err := m.Derive(SecretBoxKeySize, subKeyID, ctx)
	if err != nil {
		return nil, err
	}

	buf, err := rewrap(derived, secret.Fixed(SecretBoxKeySize))
	if err != nil {
		return nil, err
	}
	return &SecretBoxKey{buf: buf}, nil
}

// DeriveGenericHashKey derives a keyed-hash key of outputSize bytes.
// outputSize is checked against the generic hash key bounds before the
// suite bounds. Use DefaultGenericHashKeySize when in doubt.
func (m *MasterKey) DeriveGenericHashKey(subKeyID uint64, ctx Context, outputSize int) (*GenericHashKey, error) {
	if outputSize < GenericHashKeyMinSize || outputSize > GenericHashKeyMaxSize {
		return nil, fmt.Errorf("%w: generic hash key size %d not in [%d, %d]", ErrSizeOutOfRange, outputSize, GenericHashKeyMinSize, GenericHashKeyMaxSize)
	}

	derived, err := m.Derive(outputSize, subKeyID, ctx)
	if err != nil {
		return nil, err
	}

	buf, err := rewrap(derived, genericHashKeyPolicy)
	if err != nil {
		return nil, err
	}
	return &GenericHashKey{buf: buf}, nil
}

// rewrap moves a derived key into a new buffer without leaving secure
// memory, then destroys the derived key.
func rewrap(derived *DerivedKey, policy secret.SizePolicy) (*secret.Buffer, error) {
	defer derived.Destroy()

	if err := policy.Check(derived.Size()); err != nil {
		return nil, err
	}

	buf, err := secret.New(derived.Size(), false)
	if err != nil {
		return nil, err
	}

	err = derived.WithReadAccess(func(src []byte) error {
		return buf.WithWriteAccess(func(dst []byte) error {
			copy(dst, src)
			return nil
		})
	})
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}
