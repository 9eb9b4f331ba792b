package hypersig

import (
	"crypto/subtle"
	"math/big"
)

const (
	otsNonceContext = "SigNonce"
	otsKeyContext   = "Signatur"
)

// OTSKey is one Winternitz-style one-time signature key: 2*p private
// chunks organised as p "up/down" chain pairs, keyed by a level-salt
// borrowed from the owning level key. An OTSKey signs at most one digest.
type OTSKey struct {
	params    Params
	levelSalt []byte
	nonce     []byte
	priv      [][]byte // 2*p chunks, each HashLen bytes
	pub       []byte   // cached pubkey, nil until computed
	pending   Future   // set by announce, nil otherwise
}

// NewOTSKey derives the nonce and the 2*p private chunks for the OTS key
// starting at entropy index startIndex. The pubkey is not computed here.
// Returns EntropyOverflow if startIndex+2*p would exceed the 64-bit
// entropy index space.
func NewOTSKey(params Params, levelSalt, seed []byte, startIndex uint64) (*OTSKey, error) {
	count := uint64(2 * params.P())
	if startIndex > ^uint64(0)-count {
		return nil, errorf(EntropyOverflow, "OTS key at index %d needs %d more entropy slots than remain", startIndex, count)
	}
	priv := make([][]byte, count)
	for j := uint64(0); j < count; j++ {
		priv[j] = D(startIndex+1+j, otsKeyContext, seed, int(params.HashLen))
	}
	return &OTSKey{
		params:    params,
		levelSalt: levelSalt,
		nonce:     D(startIndex, otsNonceContext, seed, int(params.HashLen)),
		priv:      priv,
	}, nil
}

// NewOTSKeyWithPubkey constructs an OTS key whose pubkey is already known
// (restored from a backup's merkle_bottom), skipping the hash-chain walk
// that would otherwise be needed to compute it.
func NewOTSKeyWithPubkey(params Params, levelSalt, seed []byte, startIndex uint64, pub []byte) (*OTSKey, error) {
	key, err := NewOTSKey(params, levelSalt, seed, startIndex)
	if err != nil {
		return nil, err
	}
	key.pub = pub
	return key, nil
}

func (k *OTSKey) chain(value []byte, steps uint64) []byte {
	buf := value
	for i := uint64(0); i < steps; i++ {
		buf = H(buf, k.levelSalt, int(k.params.HashLen))
	}
	return buf
}

func (k *OTSKey) computePubkey() []byte {
	w := k.params.W()
	chunks := make([]byte, 0, len(k.priv)*int(k.params.HashLen))
	for _, c := range k.priv {
		chunks = append(chunks, k.chain(c, w)...)
	}
	return H(chunks, k.levelSalt, int(k.params.HashLen))
}

// Pubkey blocks until the pubkey is known, computing it synchronously if
// neither Announce nor a prior Pubkey/Require call has already done so.
func (k *OTSKey) Pubkey() []byte {
	if k.pub != nil {
		return k.pub
	}
	if k.pending != nil {
		results, err := requireAll([]Future{k.pending})
		if err != nil {
			panic(err) // computePubkey never errors; a custom executor broke the contract
		}
		k.pub = results[0]
		return k.pub
	}
	k.pub = k.computePubkey()
	return k.pub
}

// Announce schedules the pubkey computation on executor. Require must be
// called (directly, or via Pubkey) before the key is dropped or signed
// with, so that no partial state leaks.
func (k *OTSKey) Announce(executor Executor) {
	if k.pub != nil || k.pending != nil {
		return
	}
	k.pending = executor.Submit(func() ([]byte, error) {
		return k.computePubkey(), nil
	})
}

// Require awaits any announced pubkey computation and returns the pubkey.
func (k *OTSKey) Require() []byte {
	return k.Pubkey()
}

// Available reports whether the pubkey is known without blocking.
func (k *OTSKey) Available() ([]byte, bool) {
	if k.pub != nil {
		return k.pub, true
	}
	if k.pending == nil {
		return nil, false
	}
	result, ok := k.pending.Available()
	if ok {
		k.pub = result
	}
	return k.pub, ok
}

// digestDigits interprets digest as a big-endian two's-complement signed
// integer of len(digest)*8 bits and chops it into p base-w digits, most
// significant first, matching the reference Python implementation's
// `int.from_bytes(digest, byteorder='big', signed=True)` followed by
// repeated `% (1 << otsbits)` / `>>` and a final reversal. big.Int's Mod
// already returns the non-negative Euclidean remainder (matching Python's
// %), and its Rsh divides toward negative infinity on a negative receiver
// (matching Python's >> on negative integers), so no extra sign
// bookkeeping is required beyond the initial two's-complement correction.
func digestDigits(digest []byte, otsbits uint32, p uint32) []uint64 {
	as := new(big.Int).SetBytes(digest)
	if len(digest) > 0 && digest[0]&0x80 != 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(digest)*8))
		as.Sub(as, full)
	}
	modulus := new(big.Int).Lsh(big.NewInt(1), uint(otsbits))
	digits := make([]uint64, p)
	rem := new(big.Int)
	for i := uint32(0); i < p; i++ {
		rem.Mod(as, modulus)
		digits[i] = rem.Uint64()
		as.Rsh(as, uint(otsbits))
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return digits
}

// SignHash produces the 2*p*HashLen-byte Winternitz signature of digest,
// whose length must equal HashLen.
func (k *OTSKey) SignHash(digest []byte) ([]byte, error) {
	if uint32(len(digest)) != k.params.HashLen {
		return nil, errorf(StructuralError, "digest is %d bytes, want %d", len(digest), k.params.HashLen)
	}
	w := k.params.W()
	digits := digestDigits(digest, k.params.OTSBits, k.params.P())
	sig := make([]byte, 0, len(k.priv)*int(k.params.HashLen))
	for j, v := range digits {
		up := k.chain(k.priv[2*j], v+1)
		down := k.chain(k.priv[2*j+1], w-v)
		sig = append(sig, up...)
		sig = append(sig, down...)
	}
	return sig, nil
}

// SignData hashes data with this key's nonce to form the digest, then
// Winternitz-signs it, prefixing the nonce onto the output so the
// signature is self-contained.
func (k *OTSKey) SignData(data []byte) ([]byte, error) {
	digest := H(data, k.nonce, int(k.params.HashLen))
	sig, err := k.SignHash(digest)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(k.nonce)+len(sig))
	out = append(out, k.nonce...)
	out = append(out, sig...)
	return out, nil
}

// OneTimeValidator checks OTS signatures against a levelsalt and (outside
// of merkle mode) a known pubkey, without ever holding the corresponding
// private key.
type OneTimeValidator struct {
	params    Params
	levelSalt []byte
	pubkey    []byte // nil in merkle mode
}

// NewOneTimeValidator builds a validator for signatures produced under
// levelSalt. pubkey may be nil when the validator is only ever used in
// merkle mode (level-key validation), where the reconstructed pubkey is
// returned to the caller instead of compared.
func NewOneTimeValidator(params Params, levelSalt, pubkey []byte) *OneTimeValidator {
	return &OneTimeValidator{params: params, levelSalt: levelSalt, pubkey: pubkey}
}

func (v *OneTimeValidator) chain(value []byte, steps uint64) []byte {
	buf := value
	for i := uint64(0); i < steps; i++ {
		buf = H(buf, v.levelSalt, int(v.params.HashLen))
	}
	return buf
}

// ValidateHash reconstructs the OTS pubkey from sig and digest. In merkle
// mode it always returns the reconstructed pubkey (for level-key
// validation to fold into a Merkle co-path); otherwise it compares the
// reconstruction against the stored pubkey and returns that boolean.
func (v *OneTimeValidator) ValidateHash(digest, sig []byte, merkleMode bool) (bool, []byte, error) {
	hashlen := int(v.params.HashLen)
	p := v.params.P()
	if uint32(len(digest)) != v.params.HashLen {
		return false, nil, errorf(StructuralError, "digest is %d bytes, want %d", len(digest), hashlen)
	}
	if len(sig) != int(2*p)*hashlen {
		return false, nil, errorf(StructuralError, "OTS signature is %d bytes, want %d", len(sig), int(2*p)*hashlen)
	}
	w := v.params.W()
	digits := digestDigits(digest, v.params.OTSBits, p)
	chunks := make([]byte, 0, int(2*p)*hashlen)
	for j, val := range digits {
		up := sig[2*j*hashlen : (2*j+1)*hashlen]
		down := sig[(2*j+1)*hashlen : (2*j+2)*hashlen]
		pubUp := v.chain(up, w-val-1)
		pubDown := v.chain(down, val)
		chunks = append(chunks, pubUp...)
		chunks = append(chunks, pubDown...)
	}
	reconstructed := H(chunks, v.levelSalt, hashlen)
	if merkleMode {
		return false, reconstructed, nil
	}
	if v.pubkey == nil {
		return false, nil, errorf(StructuralError, "ValidateHash called without a pubkey outside merkle mode")
	}
	return subtleEqual(reconstructed, v.pubkey), reconstructed, nil
}

// ValidateData extracts the nonce from the front of sig, re-derives the
// digest data was signed as, and delegates to ValidateHash.
func (v *OneTimeValidator) ValidateData(data, sig []byte, merkleMode bool) (bool, []byte, error) {
	hashlen := int(v.params.HashLen)
	if len(sig) < hashlen {
		return false, nil, errorf(StructuralError, "OTS signature is %d bytes, shorter than a nonce", len(sig))
	}
	nonce := sig[:hashlen]
	digest := H(data, nonce, hashlen)
	return v.ValidateHash(digest, sig[hashlen:], merkleMode)
}

// subtleEqual is a constant-time byte-slice comparison, used whenever a
// reconstructed pubkey is checked against a caller-supplied one.
func subtleEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
