// Package hypersig implements a hash-based hierarchical signing scheme: a
// stateful hypertree of Merkle-aggregated Winternitz one-time signature
// keys, deterministically derived from a single seed through a 64-bit
// entropy index space.
package hypersig

import (
	"encoding/binary"

	"github.com/bwesterb/byteswriter"
)

// BackupEntry is one per-entropy-offset cache record: a level key's
// Merkle bottom (its 2^h leaf pubkeys) plus the cross-signature the
// parent tier produced for it, if any.
type BackupEntry struct {
	MerkleBottom [][]byte
	Signature    []byte // nil if this tier has no cross-signature yet (root, or not yet obtained)
}

// SigningKey is the stateful multi-level signing key: an ordered stack of
// L live level keys, the current global signature index, and a cache of
// backup entries keyed by entropy offset.
type SigningKey struct {
	params   Params
	seed     []byte
	executor Executor

	idx     uint64
	locals  []uint64
	offsets []uint64
	levels  []*LevelKey
	backup  map[uint64]*BackupEntry
}

// NewSigningKey builds a signing key at the given index, restoring any
// level key present in backup (by entropy offset) from its cached Merkle
// bottom instead of recomputing it from seed. A nil backup builds every
// tier fresh. executor may be nil, in which case pubkey computation runs
// synchronously.
func NewSigningKey(params Params, seed []byte, idx uint64, backup map[uint64]*BackupEntry, executor Executor) (*SigningKey, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		executor = NewSynchronousExecutor()
	}
	sk := &SigningKey{params: params, seed: seed, executor: executor, idx: idx}
	if idx > params.MaxIndex() {
		// Fully exhausted: no level keys are built, every sign_* call
		// below fails with Exhausted immediately.
		sk.backup = map[uint64]*BackupEntry{}
		return sk, nil
	}
	if err := sk.rebuildAt(idx, backup); err != nil {
		return nil, err
	}
	return sk, nil
}

// rebuildAt constructs locals, offsets and every tier's level key for
// idx, preferring backup entries where present, then obtains any missing
// cross-signatures top-down, and finally rewrites sk.backup to contain
// exactly the offsets now in use.
func (sk *SigningKey) rebuildAt(idx uint64, backup map[uint64]*BackupEntry) error {
	locals := LocalIndices(sk.params.Heights, idx)
	offsets, err := AllEntropyOffsets(sk.params, locals)
	if err != nil {
		return err
	}
	levels := make([]*LevelKey, sk.params.L())
	for l := 0; l < sk.params.L(); l++ {
		var lk *LevelKey
		var err error
		if entry, ok := backup[offsets[l]]; ok {
			lk, err = NewLevelKeyFromBackup(sk.params, sk.seed, offsets[l], sk.params.Heights[l], entry.MerkleBottom)
			if err == nil {
				lk.CrossSignature = entry.Signature
			}
		} else {
			lk, err = NewLevelKey(sk.params, sk.seed, offsets[l], sk.params.Heights[l])
		}
		if err != nil {
			return err
		}
		levels[l] = lk
	}
	for _, lk := range levels {
		lk.Announce(sk.executor)
	}
	for _, lk := range levels {
		if err := lk.Require(); err != nil {
			return err
		}
	}
	for l := 1; l < sk.params.L(); l++ {
		if levels[l].CrossSignature != nil {
			continue
		}
		sig, err := levels[l-1].SignData(levels[l].Pubkey(), locals[l-1])
		if err != nil {
			return err
		}
		levels[l].CrossSignature = sig
	}
	newBackup := make(map[uint64]*BackupEntry, sk.params.L())
	for l, lk := range levels {
		newBackup[offsets[l]] = &BackupEntry{MerkleBottom: lk.MerkleBottom(), Signature: lk.CrossSignature}
	}
	sk.idx = idx
	sk.locals = locals
	sk.offsets = offsets
	sk.levels = levels
	sk.backup = newBackup
	return nil
}

// advance moves idx to idx+1, rebuilding exactly the tiers whose entropy
// offset changed (entering a fresh subtree) and obtaining fresh
// cross-signatures top-down for those tiers.
func (sk *SigningKey) advance() error {
	newIdx := sk.idx + 1
	if newIdx > sk.params.MaxIndex() {
		sk.idx = newIdx
		return nil
	}
	newLocals := LocalIndices(sk.params.Heights, newIdx)
	newOffsets, err := AllEntropyOffsets(sk.params, newLocals)
	if err != nil {
		return err
	}
	for l := 0; l < sk.params.L(); l++ {
		if newOffsets[l] == sk.offsets[l] {
			continue
		}
		delete(sk.backup, sk.offsets[l])
		lk, err := NewLevelKey(sk.params, sk.seed, newOffsets[l], sk.params.Heights[l])
		if err != nil {
			return err
		}
		sk.levels[l] = lk
		log.Logf("hypersig: tier %d entered new subtree at entropy offset %d", l, newOffsets[l])
	}
	for l := 1; l < sk.params.L(); l++ {
		if sk.levels[l].CrossSignature == nil {
			sig, err := sk.levels[l-1].SignData(sk.levels[l].Pubkey(), newLocals[l-1])
			if err != nil {
				return err
			}
			sk.levels[l].CrossSignature = sig
		}
	}
	for l, lk := range sk.levels {
		sk.backup[newOffsets[l]] = &BackupEntry{MerkleBottom: lk.MerkleBottom(), Signature: lk.CrossSignature}
	}
	sk.idx = newIdx
	sk.locals = newLocals
	sk.offsets = newOffsets
	return nil
}

// Index returns the current global signature index.
func (sk *SigningKey) Index() uint64 { return sk.idx }

// Exhausted reports whether idx has advanced past the last valid index.
func (sk *SigningKey) Exhausted() bool { return sk.idx > sk.params.MaxIndex() }

// SignData signs data (hashed via the leaf OTS key's own nonce) and
// advances idx. The compressed flag controls whether cross-signatures
// above the lowest non-zero local tier are omitted from the blob.
func (sk *SigningKey) SignData(data []byte, compressed bool) ([]byte, error) {
	if sk.Exhausted() {
		return nil, errorf(Exhausted, "signing index %d exceeds max index %d", sk.idx, sk.params.MaxIndex())
	}
	L := sk.params.L()
	hashlen := int(sk.params.HashLen)

	leafSig, err := sk.levels[L-1].SignData(data, sk.locals[L-1])
	if err != nil {
		return nil, err
	}

	var crossSigs [][]byte // levels[L-1]..levels[1]'s CrossSignature, deepest first
	for l := L - 2; l >= 0; l-- {
		crossSigs = append(crossSigs, sk.levels[l+1].CrossSignature)
		if compressed && sk.locals[l] != 0 {
			break
		}
	}

	total := L*hashlen + 8 + len(leafSig)
	for _, cs := range crossSigs {
		total += len(cs)
	}
	out := make([]byte, total)
	w := byteswriter.NewWriter(out)
	for l := L - 1; l >= 0; l-- { // deepest first, account root last
		if _, err := w.Write(sk.levels[l].Pubkey()); err != nil {
			return nil, wrapErrorf(StructuralError, err, "writing root pubkey for tier %d", l)
		}
	}
	if err := binary.Write(w, binary.BigEndian, sk.idx); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing signature index")
	}
	if _, err := w.Write(leafSig); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing leaf signature")
	}
	for _, cs := range crossSigs {
		if _, err := w.Write(cs); err != nil {
			return nil, wrapErrorf(StructuralError, err, "writing cross-signature")
		}
	}

	if err := sk.advance(); err != nil {
		return nil, err
	}
	return out, nil
}

// SignHash is an alias for SignData: every level-signature this package
// emits carries a nonce (see the wire layout), so a caller supplying an
// already-hashed digest still goes through the same per-leaf sign_data
// path as any other message bytes.
func (sk *SigningKey) SignHash(digest []byte, compressed bool) ([]byte, error) {
	return sk.SignData(digest, compressed)
}
