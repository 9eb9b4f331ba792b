package hypersig

// Validator parses and checks signature blobs produced by SigningKey
// against a fixed Params, without ever holding any private key material.
type Validator struct {
	params Params
}

// NewValidator returns a Validator for the given Params.
func NewValidator(params Params) *Validator {
	return &Validator{params: params}
}

// VerifyData parses sig and checks it against data, returning whether it
// verifies, the account root pubkey embedded in the blob, and the
// signature index. A non-nil error indicates a structural problem with
// the blob itself (wrong length, index out of range) rather than a
// verification failure — VerifyFail is communicated by a false return
// with a nil error, never by err.
func (v *Validator) VerifyData(data, sig []byte) (ok bool, root []byte, idx uint64, err error) {
	heights := v.params.Heights
	L := len(heights)
	hashlen := int(v.params.HashLen)

	if len(sig) < L*hashlen+8 {
		return false, nil, 0, errorf(StructuralError, "signature is %d bytes, too short for %d level pubkeys + index", len(sig), L)
	}
	pos := 0
	pubkeys := make([][]byte, L) // pubkeys[L-1] = deepest tier, pubkeys[0] = account root
	for l := L - 1; l >= 0; l-- {
		pubkeys[l] = sig[pos : pos+hashlen]
		pos += hashlen
	}
	idx = decodeUint64(sig[pos : pos+8])
	pos += 8
	if idx > v.params.MaxIndex() {
		return false, nil, idx, errorf(StructuralError, "signature index %d exceeds max index %d", idx, v.params.MaxIndex())
	}
	locals := LocalIndices(heights, idx)

	leafSig, consumed, err := ParseLevelSignature(v.params, heights[L-1], sig[pos:])
	if err != nil {
		return false, nil, idx, err
	}
	pos += consumed
	if leafSig.LocalIndex != locals[L-1] {
		return false, nil, idx, errorf(StructuralError, "leaf local index %d disagrees with index-derived local index %d", leafSig.LocalIndex, locals[L-1])
	}
	ok, err = ValidateLevelSignature(v.params, heights[L-1], leafSig, data, pubkeys[L-1])
	if err != nil {
		return false, nil, idx, err
	}
	if !ok {
		return false, pubkeys[0], idx, nil
	}

	for l := L - 2; l >= 0; l-- {
		if pos >= len(sig) {
			// Compressed signature: ran out of cross-signatures. The
			// remaining upper pubkeys are carried forward as claimed;
			// the account root is still pubkeys[0] from the blob.
			break
		}
		crossSig, consumed, err := ParseLevelSignature(v.params, heights[l], sig[pos:])
		if err != nil {
			return false, nil, idx, err
		}
		pos += consumed
		if crossSig.LocalIndex != locals[l] {
			return false, nil, idx, errorf(StructuralError, "tier %d local index %d disagrees with index-derived local index %d", l, crossSig.LocalIndex, locals[l])
		}
		ok, err = ValidateLevelSignature(v.params, heights[l], crossSig, pubkeys[l+1], pubkeys[l])
		if err != nil {
			return false, nil, idx, err
		}
		if !ok {
			return false, pubkeys[0], idx, nil
		}
		if locals[l] != 0 {
			// Mirrors the signer's compressed-signature termination
			// rule: the first tier (counting from the bottom) with a
			// non-zero local index is the last one proven; everything
			// above it is trusted from a prior verification.
			break
		}
	}

	return true, pubkeys[0], idx, nil
}
