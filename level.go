package hypersig

import (
	"encoding/binary"

	"github.com/bwesterb/byteswriter"
)

const levelSaltContext = "levelslt"

// LevelKey owns 2^h OTS keys and aggregates their pubkeys into a Merkle
// tree, producing a single pubkey capable of h-bit-indexed signing.
type LevelKey struct {
	params    Params
	height    uint32
	levelSalt []byte
	nonces    [][]byte
	leaves    []*OTSKey
	tree      *merkleTree // built lazily once every leaf pubkey is known

	// CrossSignature is the signature of this level's pubkey by the
	// parent tier's selected OTS leaf. Absent (nil) at tier 0, and
	// absent for a freshly-built non-root level key until the caller
	// (the multi-level signing key) obtains one from the parent.
	CrossSignature []byte
}

// NewLevelKey derives a level key's levelsalt, per-leaf nonces and 2^h OTS
// keys from seed, starting at entropy index s.
func NewLevelKey(params Params, seed []byte, s uint64, height uint32) (*LevelKey, error) {
	return newLevelKey(params, seed, s, height, nil)
}

// NewLevelKeyFromBackup restores a level key using a cached Merkle bottom
// (the 2^h leaf pubkeys), skipping every leaf's hash-chain walk. The OTS
// private chunks are still derived from seed (cheap KDF calls) so the
// level key can keep signing with whichever leaves have not been used
// yet.
func NewLevelKeyFromBackup(params Params, seed []byte, s uint64, height uint32, merkleBottom [][]byte) (*LevelKey, error) {
	if len(merkleBottom) != 1<<height {
		return nil, errorf(StructuralError, "merkle bottom has %d entries, want %d", len(merkleBottom), 1<<height)
	}
	return newLevelKey(params, seed, s, height, merkleBottom)
}

func newLevelKey(params Params, seed []byte, s uint64, height uint32, bottom [][]byte) (*LevelKey, error) {
	n := uint64(1) << height
	stride := params.stride()
	lk := &LevelKey{
		params:    params,
		height:    height,
		levelSalt: D(s, levelSaltContext, seed, int(params.HashLen)),
		nonces:    make([][]byte, n),
		leaves:    make([]*OTSKey, n),
	}
	for k := uint64(0); k < n; k++ {
		nonceIndex := s + 1 + k*stride
		lk.nonces[k] = D(nonceIndex, levelSaltContext, seed, int(params.HashLen))
		var ots *OTSKey
		var err error
		if bottom != nil {
			ots, err = NewOTSKeyWithPubkey(params, lk.levelSalt, seed, nonceIndex+1, bottom[k])
		} else {
			ots, err = NewOTSKey(params, lk.levelSalt, seed, nonceIndex+1)
		}
		if err != nil {
			return nil, err
		}
		lk.leaves[k] = ots
	}
	if bottom != nil {
		lk.tree = buildMerkleTree(bottom, lk.levelSalt, int(params.HashLen))
	}
	return lk, nil
}

// Announce schedules every leaf's pubkey computation on executor.
func (lk *LevelKey) Announce(executor Executor) {
	for _, leaf := range lk.leaves {
		leaf.Announce(executor)
	}
}

// Require awaits every leaf's pubkey (announced or not) and builds the
// Merkle tree over them if it is not already built.
func (lk *LevelKey) Require() error {
	var futures []Future
	var pending []*OTSKey
	for _, leaf := range lk.leaves {
		switch {
		case leaf.pub != nil:
		case leaf.pending != nil:
			futures = append(futures, leaf.pending)
			pending = append(pending, leaf)
		default:
			leaf.pub = leaf.computePubkey()
		}
	}
	results, err := requireAll(futures)
	if err != nil {
		return wrapErrorf(StructuralError, err, "awaiting announced OTS pubkeys for level key")
	}
	for i, leaf := range pending {
		leaf.pub = results[i]
	}
	lk.ensureTree()
	return nil
}

func (lk *LevelKey) ensureTree() {
	if lk.tree != nil {
		return
	}
	leaves := make([][]byte, len(lk.leaves))
	for i, leaf := range lk.leaves {
		leaves[i] = leaf.Pubkey()
	}
	lk.tree = buildMerkleTree(leaves, lk.levelSalt, int(lk.params.HashLen))
}

// Pubkey returns the level key's root pubkey, computing any outstanding
// leaf pubkeys synchronously.
func (lk *LevelKey) Pubkey() []byte {
	lk.ensureTree()
	return lk.tree.root()
}

// MerkleBottom returns the 2^h leaf pubkeys, suitable for caching in a
// backup entry.
func (lk *LevelKey) MerkleBottom() [][]byte {
	lk.ensureTree()
	return lk.tree.levels[0]
}

// GetNonce exposes the per-leaf nonce at the given local index.
func (lk *LevelKey) GetNonce(index uint64) []byte {
	return lk.nonces[index]
}

// signAt assembles a level-signature block: local_index || levelsalt ||
// copath || root || ots_signature.
func (lk *LevelKey) signAt(localIndex uint64, sign func(*OTSKey) ([]byte, error)) ([]byte, error) {
	if localIndex >= uint64(len(lk.leaves)) {
		return nil, errorf(StructuralError, "local index %d out of range for height %d", localIndex, lk.height)
	}
	lk.ensureTree()
	otsSig, err := sign(lk.leaves[localIndex])
	if err != nil {
		return nil, err
	}
	path := lk.tree.copath(localIndex)
	hashlen := int(lk.params.HashLen)
	out := make([]byte, 2+hashlen+len(path)*hashlen+hashlen+len(otsSig))
	w := byteswriter.NewWriter(out)
	if err := binary.Write(w, binary.BigEndian, uint16(localIndex)); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing level-signature local index")
	}
	if _, err := w.Write(lk.levelSalt); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing level-signature levelsalt")
	}
	for _, node := range path {
		if _, err := w.Write(node); err != nil {
			return nil, wrapErrorf(StructuralError, err, "writing level-signature copath entry")
		}
	}
	if _, err := w.Write(lk.Pubkey()); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing level-signature root")
	}
	if _, err := w.Write(otsSig); err != nil {
		return nil, wrapErrorf(StructuralError, err, "writing level-signature ots_signature")
	}
	return out, nil
}

// SignHash signs an already-computed digest at the given local index.
func (lk *LevelKey) SignHash(digest []byte, localIndex uint64) ([]byte, error) {
	return lk.signAt(localIndex, func(k *OTSKey) ([]byte, error) { return k.SignHash(digest) })
}

// SignData signs data (via the selected leaf's own nonce) at the given
// local index.
func (lk *LevelKey) SignData(data []byte, localIndex uint64) ([]byte, error) {
	return lk.signAt(localIndex, func(k *OTSKey) ([]byte, error) { return k.SignData(data) })
}

// LevelSignature is a parsed level-signature block, as produced by
// LevelKey.SignData/SignHash and consumed by ValidateLevelSignature.
type LevelSignature struct {
	LocalIndex   uint64
	LevelSalt    []byte
	Copath       [][]byte
	Root         []byte
	OTSSignature []byte
}

// ParseLevelSignature splits a level-signature block out of buf for a
// tier of the given height, returning the parsed signature and the number
// of bytes consumed.
func ParseLevelSignature(params Params, height uint32, buf []byte) (*LevelSignature, int, error) {
	hashlen := int(params.HashLen)
	otsLen := int(2*params.P())*hashlen + hashlen // winternitz chunks + nonce
	want := 2 + hashlen + int(height)*hashlen + hashlen + otsLen
	if len(buf) < want {
		return nil, 0, errorf(StructuralError, "level signature is %d bytes, want at least %d", len(buf), want)
	}
	pos := 0
	localIndex := decodeUint64(buf[pos : pos+2])
	pos += 2
	salt := buf[pos : pos+hashlen]
	pos += hashlen
	copath := make([][]byte, height)
	for i := range copath {
		copath[i] = buf[pos : pos+hashlen]
		pos += hashlen
	}
	root := buf[pos : pos+hashlen]
	pos += hashlen
	otsSig := buf[pos : pos+otsLen]
	pos += otsLen
	return &LevelSignature{
		LocalIndex:   localIndex,
		LevelSalt:    salt,
		Copath:       copath,
		Root:         root,
		OTSSignature: otsSig,
	}, pos, nil
}

// ValidateLevelSignature checks a parsed level-signature against data
// (the message it signs, hashed via the embedded OTS nonce): it
// reconstructs the leaf pubkey, folds it up the copath, and compares the
// result to both the embedded root and, if expectedRoot is non-nil, the
// caller's independently-known pubkey for this tier.
func ValidateLevelSignature(params Params, height uint32, sig *LevelSignature, data []byte, expectedRoot []byte) (bool, error) {
	validator := NewOneTimeValidator(params, sig.LevelSalt, nil)
	_, leafPub, err := validator.ValidateData(data, sig.OTSSignature, true)
	if err != nil {
		return false, err
	}
	reconstructedRoot := merkleReconstruct(leafPub, sig.Copath, sig.LocalIndex, sig.LevelSalt, int(params.HashLen))
	if !subtleEqual(reconstructedRoot, sig.Root) {
		return false, nil
	}
	if expectedRoot != nil && !subtleEqual(reconstructedRoot, expectedRoot) {
		return false, nil
	}
	return true, nil
}
