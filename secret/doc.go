// Package secret provides the memory container every key type is built on.
//
// A [Buffer] owns a fixed-size region allocated through memguard: the pages
// are locked into RAM, surrounded by guard pages and wiped when the buffer
// is destroyed. Outside of a write scope the region is frozen read-only.
//
// Constructors:
//
//   - [New] with randomize=true -- allocates and fills from crypto/rand
//   - [New] with randomize=false -- allocates an uninitialized buffer that
//     must be written once via WithWriteAccess before any read
//   - [NewFromBytes] -- adopts caller bytes under a [SizePolicy] and zeroes
//     the caller's slice on every path
//
// Raw bytes are only reachable inside [Buffer.WithReadAccess] and
// [Buffer.WithWriteAccess]; [Buffer.CopyBytes] is the one explicit escape
// hatch and its result must be passed to [Zero] once used.
// [Buffer.Equal] compares in constant time.
package secret
