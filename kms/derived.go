package kms

import "github.com/ruteri/keymaster/secret"

// DerivedKey is a subkey produced by MasterKey.Derive. It cannot be created
// any other way.
type DerivedKey struct {
	buf *secret.Buffer
}

// Size returns the key length in bytes.
func (d *DerivedKey) Size() int {
	return d.buf.Size()
}

// Equal compares two derived keys in constant time.
func (d *DerivedKey) Equal(other *DerivedKey) bool {
	if d == nil || other == nil {
		return false
	}
	return d.buf.Equal(other.buf)
}

// WithReadAccess exposes the key bytes to fn for the duration of the call.
func (d *DerivedKey) WithReadAccess(fn func([]byte) error) error {
	return d.buf.WithReadAccess(fn)
}

// CopyBytes returns a heap copy of the key. Zero it with secret.Zero.
func (d *DerivedKey) CopyBytes() ([]byte, error) {
	return d.buf.CopyBytes()
}

// Destroy wipes the key.
func (d *DerivedKey) Destroy() {
	d.buf.Destroy()
}
