package hypersig

import "math/big"

// LocalIndices decomposes a global signature index into one local index
// per tier, most significant tier first, such that
//
//	idx = sum_l locals[l] * 2^(sum of heights after l)
//
// and 0 <= locals[l] < 2^heights[l]. This is ordinary mixed-radix
// decomposition with tier 0 as the most significant digit and the last
// tier as the least significant.
func LocalIndices(heights []uint32, idx uint64) []uint64 {
	locals := make([]uint64, len(heights))
	for l := len(heights) - 1; l >= 0; l-- {
		mask := (uint64(1) << heights[l]) - 1
		locals[l] = idx & mask
		idx >>= heights[l]
	}
	return locals
}

// SubtreeEntropy returns the total entropy, in KDF index slots, a tier-l
// subtree consumes: one slot for its level-salt, plus 2^heights[l] leaf
// slots each worth stride() entropy, plus (for all but the last tier) the
// entropy of one full tier-(l+1) subtree per leaf.
func SubtreeEntropy(p Params, l int) (uint64, error) {
	heights := p.Heights
	if l == len(heights)-1 {
		leaves, err := checkedShl(1, heights[l])
		if err != nil {
			return 0, err
		}
		total, err := checkedMul2(leaves, p.stride())
		if err != nil {
			return 0, err
		}
		return checkedAdd(1, total)
	}
	child, err := SubtreeEntropy(p, l+1)
	if err != nil {
		return 0, err
	}
	leaves, err := checkedShl(1, heights[l])
	if err != nil {
		return 0, err
	}
	perLeaf, err := checkedAdd(p.stride(), child)
	if err != nil {
		return 0, err
	}
	total, err := checkedMul2(leaves, perLeaf)
	if err != nil {
		return 0, err
	}
	return checkedAdd(1, total)
}

// EntropyOffset returns the entropy index at which the tier-l level key
// begins, given the local indices of every ancestor tier (locals[0..l]
// inclusive; only locals[0:l] are consulted).
func EntropyOffset(p Params, locals []uint64, l int) (uint64, error) {
	if l == 0 {
		return 0, nil
	}
	parentOffset, err := EntropyOffset(p, locals, l-1)
	if err != nil {
		return 0, err
	}
	parentLeaves, err := checkedShl(1, p.Heights[l-1])
	if err != nil {
		return 0, err
	}
	span, err := checkedMul2(parentLeaves, p.stride())
	if err != nil {
		return 0, err
	}
	sub, err := SubtreeEntropy(p, l)
	if err != nil {
		return 0, err
	}
	skipped, err := checkedMul2(locals[l-1], sub)
	if err != nil {
		return 0, err
	}
	sum, err := checkedAdd(parentOffset, 1)
	if err != nil {
		return 0, err
	}
	sum, err = checkedAdd(sum, span)
	if err != nil {
		return 0, err
	}
	return checkedAdd(sum, skipped)
}

// AllEntropyOffsets returns EntropyOffset(p, locals, l) for every tier.
func AllEntropyOffsets(p Params, locals []uint64) ([]uint64, error) {
	offsets := make([]uint64, len(locals))
	for l := range locals {
		off, err := EntropyOffset(p, locals, l)
		if err != nil {
			return nil, err
		}
		offsets[l] = off
	}
	return offsets, nil
}

// KeyspaceUsage reports the worst-case total entropy, in KDF index slots,
// that a fully-exhausted hypertree of these Params ever consumes. Returns
// ConfigInvalid if that total would not fit in 64 bits.
func (p Params) KeyspaceUsage() (uint64, error) {
	return SubtreeEntropy(p, 0)
}

var bigTwoTo64 = new(big.Int).Lsh(big.NewInt(1), 64)

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, errorf(ConfigInvalid, "entropy budget overflow: %d + %d exceeds 2^64", a, b)
	}
	return sum, nil
}

func checkedMul2(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	prod := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	if prod.Cmp(bigTwoTo64) >= 0 {
		return 0, errorf(ConfigInvalid, "entropy budget overflow: %d * %d exceeds 2^64", a, b)
	}
	return prod.Uint64(), nil
}

func checkedShl(a uint64, shift uint32) (uint64, error) {
	if shift >= 64 {
		return 0, errorf(ConfigInvalid, "entropy budget overflow: 1 << %d exceeds 2^64", shift)
	}
	return a << shift, nil
}
