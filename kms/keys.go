package kms

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/ruteri/keymaster/primitives"
	"github.com/ruteri/keymaster/secret"
)

const (
	// SecretBoxKeySize is the length of a secretbox key.
	SecretBoxKeySize = primitives.SecretBoxKeySize
	// SecretBoxNonceSize is the length of the random nonce prefixed to boxes.
	SecretBoxNonceSize = 24

	// GenericHashKeyMinSize and GenericHashKeyMaxSize bound keyed-hash keys.
	GenericHashKeyMinSize = 16
	GenericHashKeyMaxSize = blake2b.Size
	// DefaultGenericHashKeySize is the recommended keyed-hash key length.
	DefaultGenericHashKeySize = primitives.GenericHashKeySize

	// GenericHashMinOutput and GenericHashMaxOutput bound keyed-hash digests.
	GenericHashMinOutput = 16
	GenericHashMaxOutput = blake2b.Size
)

var genericHashKeyPolicy = secret.Range(GenericHashKeyMinSize, GenericHashKeyMaxSize)

// SecretBoxKey authenticates and encrypts messages with XSalsa20-Poly1305.
type SecretBoxKey struct {
	buf *secret.Buffer
}

// GenerateSecretBoxKey creates a random secretbox key.
func GenerateSecretBoxKey() *SecretBoxKey {
	buf, err := secret.New(SecretBoxKeySize, true)
	if err != nil {
		panic("kms: " + err.Error())
	}
	return &SecretBoxKey{buf: buf}
}

// RestoreSecretBoxKey adopts persisted key bytes; data is zeroed.
func RestoreSecretBoxKey(data []byte) (*SecretBoxKey, error) {
	buf, err := secret.NewFromBytes(data, secret.Fixed(SecretBoxKeySize))
	if err != nil {
		return nil, fmt.Errorf("failed to restore secretbox key: %w", err)
	}
	return &SecretBoxKey{buf: buf}, nil
}

// Seal encrypts plaintext under a fresh random nonce. The nonce is prefixed
// to the returned box.
func (k *SecretBoxKey) Seal(plaintext []byte) ([]byte, error) {
	var nonce [SecretBoxNonceSize]byte
	rand.Read(nonce[:])

	var box []byte
	err := k.buf.WithReadAccess(func(key []byte) error {
		box = secretbox.Seal(nonce[:], plaintext, &nonce, (*[SecretBoxKeySize]byte)(key))
		return nil
	})
	return box, err
}

// Open authenticates and decrypts a box produced by Seal.
func (k *SecretBoxKey) Open(box []byte) ([]byte, error) {
	if len(box) < SecretBoxNonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: box too short", ErrDecrypt)
	}
	var nonce [SecretBoxNonceSize]byte
	copy(nonce[:], box[:SecretBoxNonceSize])

	var plaintext []byte
	err := k.buf.WithReadAccess(func(key []byte) error {
		var ok bool
		plaintext, ok = secretbox.Open(nil, box[SecretBoxNonceSize:], &nonce, (*[SecretBoxKeySize]byte)(key))
		if !ok {
			return ErrDecrypt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (k *SecretBoxKey) Size() int { return k.buf.Size() }

// Equal compares two keys in constant time.
func (k *SecretBoxKey) Equal(other *SecretBoxKey) bool {
	if k == nil || other == nil {
		return false
	}
	return k.buf.Equal(other.buf)
}

func (k *SecretBoxKey) CopyBytes() ([]byte, error) { return k.buf.CopyBytes() }
func (k *SecretBoxKey) Destroy()                   { k.buf.Destroy() }

// GenericHashKey computes keyed BLAKE2b digests, for example to derive
// stable, unlinkable identifiers from user data.
type GenericHashKey struct {
	buf *secret.Buffer
}

// GenerateGenericHashKey creates a random keyed-hash key of size bytes.
func GenerateGenericHashKey(size int) (*GenericHashKey, error) {
	if !genericHashKeyPolicy.Contains(size) {
		return nil, fmt.Errorf("%w: generic hash key size %d not in [%d, %d]", ErrSizeOutOfRange, size, GenericHashKeyMinSize, GenericHashKeyMaxSize)
	}
	buf, err := secret.New(size, true)
	if err != nil {
		return nil, err
	}
	return &GenericHashKey{buf: buf}, nil
}

// RestoreGenericHashKey adopts persisted key bytes; data is zeroed.
func RestoreGenericHashKey(data []byte) (*GenericHashKey, error) {
	buf, err := secret.NewFromBytes(data, genericHashKeyPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to restore generic hash key: %w", err)
	}
	return &GenericHashKey{buf: buf}, nil
}

// Sum returns the keyed BLAKE2b digest of message, outLen bytes long.
func (k *GenericHashKey) Sum(message []byte, outLen int) ([]byte, error) {
	if outLen < GenericHashMinOutput || outLen > GenericHashMaxOutput {
		return nil, fmt.Errorf("%w: digest size %d not in [%d, %d]", ErrSizeOutOfRange, outLen, GenericHashMinOutput, GenericHashMaxOutput)
	}

	var digest []byte
	err := k.buf.WithReadAccess(func(key []byte) error {
		h, err := blake2b.New(outLen, key)
		if err != nil {
			return err
		}
		h.Write(message)
		digest = h.Sum(nil)
		return nil
	})
	return digest, err
}

func (k *GenericHashKey) Size() int { return k.buf.Size() }

// Equal compares two keys in constant time.
func (k *GenericHashKey) Equal(other *GenericHashKey) bool {
	if k == nil || other == nil {
		return false
	}
	return k.buf.Equal(other.buf)
}

func (k *GenericHashKey) CopyBytes() ([]byte, error) { return k.buf.CopyBytes() }
func (k *GenericHashKey) Destroy()                   { k.buf.Destroy() }
