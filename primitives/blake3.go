package primitives

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// BLAKE3Name is the configuration name of the keyed-BLAKE3 suite.
const BLAKE3Name = "blake3"

// blake3Suite derives subkeys from the keyed BLAKE3 XOF over
// ctx || LE64(subKeyID) || LE32(len(out)). The XOF alone would make shorter
// keys prefixes of longer ones, hence the length in the input.
type blake3Suite struct{}

func (blake3Suite) Name() string      { return BLAKE3Name }
func (blake3Suite) MasterKeyLen() int { return 32 }
func (blake3Suite) ContextLen() int   { return 8 }
func (blake3Suite) MinSubkeyLen() int { return 16 }
func (blake3Suite) MaxSubkeyLen() int { return 64 }

func (blake3Suite) Keygen(out []byte) {
	rand.Read(out)
}

func (blake3Suite) Derive(out, masterKey []byte, subKeyID uint64, ctx []byte) {
	h, err := blake3.NewKeyed(masterKey)
	if err != nil {
		panic("primitives: blake3: " + err.Error())
	}

	var tail [12]byte
	binary.LittleEndian.PutUint64(tail[:8], subKeyID)
	binary.LittleEndian.PutUint32(tail[8:], uint32(len(out)))
	h.Write(ctx)
	h.Write(tail[:])

	if _, err := h.Digest().Read(out); err != nil {
		panic("primitives: blake3: " + err.Error())
	}
}
