// Package rc implements the resource-control entropy partitioning
// described as a standalone, depth-first algorithm in the signing
// scheme's design: splitting the shared 64-bit entropy index space across
// a hierarchy of delegated sub-accounts, each with its own hypertree
// Params, without the signing core ever being aware of the split.
//
// The model is a stack of LevelSpecs, each describing one hypertree tier
// group: its own Heights (consumed directly by the signing core for that
// sub-account) and, for every entry but the last, a Reserve bit-width
// setting aside a shared block of the offset's address space for
// delegated children.
package rc

import (
	"fmt"
	"math/big"
)

// LevelSpec describes one entry in a keyspace hierarchy: the heights of
// the hypertree tiers owned directly at this level, and (for every entry
// but the last) how many bits of the remaining space are reserved for
// delegated sub-accounts.
type LevelSpec struct {
	Heights []uint32
	Reserve *uint32 // nil only on the last entry of a KeySpace
}

// keysPerSignature returns 2*p, the private chunk count of one OTS leaf;
// subSubUsage adds the two nonce slots on top of it, matching the signing
// core's stride() (2*p + 2 entropy slots per OTS leaf).
func keysPerSignature(hashlen, otsbits uint32) uint64 {
	p := (hashlen*8 + otsbits - 1) / otsbits
	return 2 * uint64(p)
}

func subSubUsage(hashlen, otsbits, height uint32) *big.Int {
	perLeaf := big.NewInt(int64(keysPerSignature(hashlen, otsbits) + 2))
	leaves := new(big.Int).Lsh(big.NewInt(1), uint(height))
	return new(big.Int).Add(big.NewInt(1), new(big.Int).Mul(perLeaf, leaves))
}

func subUsage(hashlen, otsbits uint32, heights []uint32) *big.Int {
	usage := subSubUsage(hashlen, otsbits, heights[0])
	if len(heights) > 1 {
		rest := subUsage(hashlen, otsbits, heights[1:])
		top := new(big.Int).Lsh(big.NewInt(1), uint(heights[0]))
		usage = new(big.Int).Add(usage, new(big.Int).Mul(top, rest))
	}
	return usage
}

// Usage returns the worst-case total entropy, in KDF index slots, that
// the entire keyspace hierarchy (own tiers plus every reserved delegate
// block) can ever consume. The result can vastly exceed 2^64 for deep or
// tall hierarchies, which is exactly what Env.Validate checks for, so the
// computation is carried out with arbitrary precision rather than
// silently wrapping in a fixed-width integer.
func Usage(hashlen, otsbits uint32, keyspace []LevelSpec) *big.Int {
	own := subUsage(hashlen, otsbits, keyspace[0].Heights)
	total := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), uint(sumHeights(keyspace[0].Heights))), own)
	if len(keyspace) > 1 {
		rest := Usage(hashlen, otsbits, keyspace[1:])
		reserve := new(big.Int).Lsh(big.NewInt(1), uint(*keyspace[0].Reserve))
		total = new(big.Int).Add(total, new(big.Int).Mul(reserve, rest))
	}
	return total
}

// Usage64 is Usage, checked to fit in a uint64 (the signing core's
// entropy index space); it returns an error instead of silently
// truncating when the hierarchy's worst case does not fit.
func Usage64(hashlen, otsbits uint32, keyspace []LevelSpec) (uint64, error) {
	usage := Usage(hashlen, otsbits, keyspace)
	if !usage.IsUint64() {
		return 0, fmt.Errorf("rc: keyspace usage %s does not fit in 64 bits", usage.String())
	}
	return usage.Uint64(), nil
}

func sumHeights(heights []uint32) uint64 {
	var total uint64
	for _, h := range heights {
		total += uint64(h)
	}
	return total
}

// KeySpace is a node in the partitioned entropy-offset tree: a
// self-contained slice of the 64-bit index space, split depth-first into
// an "own" block (consumed directly, by the signing core's Params at this
// level) and, when a Reserve is present, a shared heap that nested
// KeySpaces carve sub-accounts out of via Allocate.
type KeySpace struct {
	hashlen, otsbits uint32
	keyspace         []LevelSpec

	offset uint64
	stack  uint64 // shrinking allocation stack for delegated children

	ownOffset uint64
}

// NewKeySpace partitions [offset, offset+size) for the given hierarchy.
func NewKeySpace(hashlen, otsbits uint32, keyspace []LevelSpec, offset, size uint64) (*KeySpace, error) {
	if len(keyspace) == 0 {
		return nil, fmt.Errorf("rc: keyspace hierarchy must have at least one level")
	}
	ks := &KeySpace{hashlen: hashlen, otsbits: otsbits, keyspace: keyspace, offset: offset, stack: offset + size}
	heap := offset
	if keyspace[0].Reserve != nil {
		rest, err := Usage64(hashlen, otsbits, keyspace[1:])
		if err != nil {
			return nil, err
		}
		reserved := (uint64(1) << *keyspace[0].Reserve) * rest
		heap = offset + reserved
	}
	ks.ownOffset = heap
	ks.stack = heap // delegated children are carved downward from the top of the reserved block
	return ks, nil
}

// Own returns the entropy offset at which this level's own hypertree
// tiers (keyspace[0].Heights) begin.
func (ks *KeySpace) Own() uint64 { return ks.ownOffset }

// Allocate carves the next delegated sub-account's KeySpace off the
// shrinking allocation stack, for keyspace[1:].
func (ks *KeySpace) Allocate() (*KeySpace, error) {
	if len(ks.keyspace) < 2 {
		return nil, fmt.Errorf("rc: no further hierarchy levels to delegate")
	}
	size, err := Usage64(ks.hashlen, ks.otsbits, ks.keyspace[1:])
	if err != nil {
		return nil, err
	}
	if ks.stack < size {
		return nil, fmt.Errorf("rc: allocation stack exhausted")
	}
	ks.stack -= size
	return NewKeySpace(ks.hashlen, ks.otsbits, ks.keyspace[1:], ks.stack, size)
}
