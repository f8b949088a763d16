package kms

import (
	"fmt"

	"github.com/ruteri/keymaster/primitives"
)

// Context is a short, non-secret tag that separates derivation domains, such
// as "mailbox1" for one purpose and "backup01" for another. Its length is
// fixed by the suite. Context is an immutable value.
type Context struct {
	raw string
}

// NewContext builds a context from exactly suite.ContextLen() raw bytes.
func NewContext(suite primitives.Suite, raw []byte) (Context, error) {
	if len(raw) != suite.ContextLen() {
		return Context{}, fmt.Errorf("%w: %s requires %d bytes, got %d", ErrInvalidContext, suite.Name(), suite.ContextLen(), len(raw))
	}
	return Context{raw: string(raw)}, nil
}

// NewContextFromString builds a context from text whose UTF-8 encoding is
// exactly suite.ContextLen() bytes long.
func NewContextFromString(suite primitives.Suite, text string) (Context, error) {
	if len(text) != suite.ContextLen() {
		return Context{}, fmt.Errorf("%w: %s requires %d bytes, %q has %d", ErrInvalidContext, suite.Name(), suite.ContextLen(), text, len(text))
	}
	return Context{raw: text}, nil
}

// Bytes returns a copy of the context bytes.
func (c Context) Bytes() []byte {
	return []byte(c.raw)
}

// Len returns the context length in bytes. The zero Context has length 0.
func (c Context) Len() int {
	return len(c.raw)
}

func (c Context) String() string {
	return c.raw
}
