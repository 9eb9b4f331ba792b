package hypersig

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// H is the keyed, variable-length hash the rest of the package treats as a
// black box: H(msg, key, outLen) -> outLen bytes. blake2b is a MAC-capable
// hash with a native keyed mode and a configurable digest size up to 64
// bytes, a direct fit for hashlen's 16..64 range, so no extra HMAC
// construction is layered on top of it.
func H(msg, key []byte, outLen int) []byte {
	h, err := blake2b.New(outLen, key)
	if err != nil {
		// outLen and key length are always chosen from validated Params;
		// reaching here means a caller passed an invalid size, which is a
		// programming error, not a runtime data error.
		panic(wrapErrorf(StructuralError, err, "invalid hash parameters (outLen=%d, keyLen=%d)", outLen, len(key)))
	}
	h.Write(msg)
	return h.Sum(nil)
}

// context8Len is the fixed width of the domain-separation tags passed to D
// ("SigNonce", "Signatur", "levelslt", ...).
const context8Len = 8

// D is the subkey-deriving KDF: D(i, context8, seed) -> outLen bytes.
// Distinct (i, context8) pairs drawn from the same seed are independent,
// unlinkable secret material; i ranges over the 64-bit entropy index
// space, context8 is an 8-byte domain tag identifying which kind of
// secret is being derived at that index (a nonce, a private chunk, a
// level-salt).
func D(i uint64, context8 string, seed []byte, outLen int) []byte {
	if len(context8) != context8Len {
		panic(errorf(StructuralError, "KDF context must be exactly %d bytes, got %q", context8Len, context8))
	}
	msg := make([]byte, context8Len+8)
	copy(msg, context8)
	binary.BigEndian.PutUint64(msg[context8Len:], i)
	return H(msg, seed, outLen)
}
