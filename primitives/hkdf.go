package primitives

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFName is the configuration name of the HKDF-SHA256 suite.
const HKDFName = "hkdf-sha256"

var hkdfInfoPrefix = []byte("keymaster-subkey")

// hkdfSuite derives subkeys with HKDF-SHA256, using the context as salt and
// "keymaster-subkey" || LE64(subKeyID) || LE32(len(out)) as info.
type hkdfSuite struct{}

func (hkdfSuite) Name() string      { return HKDFName }
func (hkdfSuite) MasterKeyLen() int { return 32 }
func (hkdfSuite) ContextLen() int   { return 16 }
func (hkdfSuite) MinSubkeyLen() int { return 16 }
func (hkdfSuite) MaxSubkeyLen() int { return 64 }

func (hkdfSuite) Keygen(out []byte) {
	rand.Read(out)
}

func (hkdfSuite) Derive(out, masterKey []byte, subKeyID uint64, ctx []byte) {
	info := make([]byte, len(hkdfInfoPrefix)+12)
	n := copy(info, hkdfInfoPrefix)
	binary.LittleEndian.PutUint64(info[n:], subKeyID)
	binary.LittleEndian.PutUint32(info[n+8:], uint32(len(out)))

	r := hkdf.New(sha256.New, masterKey, ctx, info)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("primitives: hkdf: " + err.Error())
	}
}
