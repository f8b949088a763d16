package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/awnumar/memguard"
)

var (
	// ErrSizeMismatch is returned when adopted bytes do not satisfy the size policy.
	ErrSizeMismatch = errors.New("secret: size mismatch")

	// ErrInvalidSize is returned when a buffer of non-positive size is requested.
	ErrInvalidSize = errors.New("secret: buffer size must be positive")

	// ErrUninitialized is returned when reading a buffer that was allocated
	// without randomization and has not been written yet.
	ErrUninitialized = errors.New("secret: read from uninitialized buffer")

	// ErrDestroyed is returned on any access after Destroy.
	ErrDestroyed = errors.New("secret: access to destroyed buffer")
)

// Buffer holds a fixed number of secret bytes in memory managed by memguard:
// locked against swapping, surrounded by guard pages and wiped on Destroy.
// Outside of WithWriteAccess the region is frozen read-only.
//
// A Buffer is owned by exactly one scope. It must not be copied after
// creation and must not be shared across goroutines without external
// synchronization.
type Buffer struct {
	mu          sync.Mutex
	locked      *memguard.LockedBuffer
	size        int
	initialized bool
	destroyed   bool
}

// New allocates a secret buffer of size bytes. With randomize set the buffer
// is filled from crypto/rand before it is returned; otherwise it is left
// uninitialized and must be written once via WithWriteAccess before it can
// be read.
func New(size int, randomize bool) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}

	var locked *memguard.LockedBuffer
	if randomize {
		locked = memguard.NewBufferRandom(size)
	} else {
		locked = memguard.NewBuffer(size)
	}
	locked.Freeze()

	return track(&Buffer{
		locked:      locked,
		size:        size,
		initialized: randomize,
	}), nil
}

// NewFromBytes adopts source into a new secret buffer. The source slice is
// zeroed before NewFromBytes returns, whether or not the adoption succeeds,
// so the caller never keeps a live copy of the secret.
func NewFromBytes(source []byte, policy SizePolicy) (*Buffer, error) {
	defer Zero(source)

	if err := policy.Check(len(source)); err != nil {
		return nil, err
	}

	// NewBufferFromBytes wipes source as well; the deferred Zero covers the
	// failure paths above.
	locked := memguard.NewBufferFromBytes(source)
	locked.Freeze()

	return track(&Buffer{
		locked:      locked,
		size:        len(source),
		initialized: true,
	}), nil
}

// track registers a cleanup that wipes the locked region if the Buffer
// becomes unreachable without Destroy having been called.
func track(b *Buffer) *Buffer {
	runtime.AddCleanup(b, func(locked *memguard.LockedBuffer) {
		locked.Destroy()
	}, b.locked)
	return b
}

// Size returns the fixed size of the buffer in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// WithReadAccess calls fn with a read-only view of the secret bytes. The view
// must not be retained after fn returns.
func (b *Buffer) WithReadAccess(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if !b.initialized {
		return ErrUninitialized
	}

	return fn(b.locked.Bytes())
}

// WithWriteAccess calls fn with a writable view of the secret bytes. The
// buffer counts as initialized once fn returns without error. The view must
// not be retained after fn returns.
func (b *Buffer) WithWriteAccess(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}

	b.locked.Melt()
	defer b.locked.Freeze()

	if err := fn(b.locked.Bytes()); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// CopyBytes returns a heap copy of the secret. It exists for handing key
// bytes to collaborators that need a plain slice, such as a secret store.
// The caller must Zero the copy when done with it.
func (b *Buffer) CopyBytes() ([]byte, error) {
	var out []byte
	err := b.WithReadAccess(func(data []byte) error {
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	return out, err
}

// Equal reports whether both buffers hold the same bytes. The comparison
// runs in time independent of the contents; only the sizes, which are not
// secret, short-circuit it. Destroyed or uninitialized buffers are never
// equal to anything.
func (b *Buffer) Equal(other *Buffer) bool {
	if b == nil || other == nil {
		return false
	}
	if b == other {
		return b.readable()
	}
	if b.size != other.size {
		return false
	}

	var equal bool
	_ = b.WithReadAccess(func(mine []byte) error {
		return other.WithReadAccess(func(theirs []byte) error {
			equal = subtle.ConstantTimeCompare(mine, theirs) == 1
			return nil
		})
	})
	return equal
}

func (b *Buffer) readable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.destroyed && b.initialized
}

// Destroy wipes the secret and releases its memory. Destroy is idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	b.locked.Destroy()
}

// Zero overwrites data with zeroes. Use it on every copy obtained from
// CopyBytes and on decoded secrets that could not be adopted.
func Zero(data []byte) {
	clear(data)
	runtime.KeepAlive(data)
}
