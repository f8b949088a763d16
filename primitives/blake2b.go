package primitives

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// BLAKE2bName is the configuration name of the keyed-BLAKE2b suite.
const BLAKE2bName = "blake2b"

// blake2bSuite derives subkeys as keyed BLAKE2b over ctx || LE64(subKeyID).
// The output length is part of BLAKE2b's parameter block, so requesting a
// different length yields an unrelated key.
type blake2bSuite struct{}

func (blake2bSuite) Name() string      { return BLAKE2bName }
func (blake2bSuite) MasterKeyLen() int { return 32 }
func (blake2bSuite) ContextLen() int   { return 8 }
func (blake2bSuite) MinSubkeyLen() int { return 16 }
func (blake2bSuite) MaxSubkeyLen() int { return blake2b.Size }

func (blake2bSuite) Keygen(out []byte) {
	rand.Read(out)
}

func (blake2bSuite) Derive(out, masterKey []byte, subKeyID uint64, ctx []byte) {
	h, err := blake2b.New(len(out), masterKey)
	if err != nil {
		// Lengths are validated by the caller.
		panic("primitives: blake2b: " + err.Error())
	}

	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], subKeyID)
	h.Write(ctx)
	h.Write(id[:])

	// Appends into out's backing array.
	h.Sum(out[:0])
}
