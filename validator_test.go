package hypersig

import (
	"bytes"
	"testing"
)

func TestValidatorRejectsShortSignature(t *testing.T) {
	p := signingKeyTestParams()
	v := NewValidator(p)
	_, _, _, err := v.VerifyData([]byte("msg"), []byte{0x01, 0x02})
	if err == nil {
		t.Fatalf("VerifyData with a truncated blob should fail structurally")
	}
	herr, ok := err.(Error)
	if !ok || herr.Kind() != StructuralError {
		t.Fatalf("VerifyData error = %v, want StructuralError", err)
	}
}

func TestValidatorRejectsIndexBeyondMax(t *testing.T) {
	p := signingKeyTestParams()
	seed := bytes.Repeat([]byte{0x30}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	sig, err := sk.SignData([]byte("msg"), false)
	if err != nil {
		t.Fatalf("SignData: %v", err)
	}
	// Corrupt the encoded index (immediately after the L pubkeys) to a
	// value beyond MaxIndex.
	hashlen := int(p.HashLen)
	L := p.L()
	idxPos := L * hashlen
	corrupted := append([]byte{}, sig...)
	for i := 0; i < 8; i++ {
		corrupted[idxPos+i] = 0xff
	}
	v := NewValidator(p)
	_, _, _, err = v.VerifyData([]byte("msg"), corrupted)
	if err == nil {
		t.Fatalf("VerifyData with an out-of-range index should fail structurally")
	}
	herr, ok := err.(Error)
	if !ok || herr.Kind() != StructuralError {
		t.Fatalf("VerifyData error = %v, want StructuralError", err)
	}
}

func TestValidatorAcrossSubtreeBoundary(t *testing.T) {
	// Heights{3,3} gives 8 local slots at the leaf tier; signing 9 times
	// forces the leaf tier to roll over into a new subtree, and the
	// parent's local index to advance, exercising advance()'s rebuild
	// logic end to end through the validator.
	p := Params{HashLen: 32, OTSBits: 8, Heights: []uint32{3, 3}}
	seed := bytes.Repeat([]byte{0x31}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	v := NewValidator(p)
	for i := 0; i < 9; i++ {
		msg := []byte{byte(i)}
		sig, err := sk.SignData(msg, false)
		if err != nil {
			t.Fatalf("SignData(%d): %v", i, err)
		}
		ok, root, idx, err := v.VerifyData(msg, sig)
		if err != nil {
			t.Fatalf("VerifyData(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("signature %d across the subtree boundary did not verify", i)
		}
		if idx != uint64(i) {
			t.Fatalf("signature %d has idx %d", i, idx)
		}
		if len(root) != int(p.HashLen) {
			t.Fatalf("root is %d bytes, want %d", len(root), p.HashLen)
		}
	}
}

func TestValidatorDeepHierarchyCompressedAndFull(t *testing.T) {
	p := Params{HashLen: 32, OTSBits: 8, Heights: []uint32{3, 3, 3, 3}}
	seed := bytes.Repeat([]byte{0x32}, 32)
	v := NewValidator(p)

	skFull, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	skCompressed, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	for i := 0; i < 5; i++ {
		msg := []byte{byte(i), 0xaa}
		fullSig, err := skFull.SignData(msg, false)
		if err != nil {
			t.Fatalf("SignData(full, %d): %v", i, err)
		}
		compressedSig, err := skCompressed.SignData(msg, true)
		if err != nil {
			t.Fatalf("SignData(compressed, %d): %v", i, err)
		}
		if len(compressedSig) > len(fullSig) {
			t.Fatalf("compressed signature %d is longer than the full one", i)
		}
		okFull, _, _, err := v.VerifyData(msg, fullSig)
		if err != nil {
			t.Fatalf("VerifyData(full, %d): %v", i, err)
		}
		if !okFull {
			t.Fatalf("full signature %d did not verify", i)
		}
		okCompressed, _, _, err := v.VerifyData(msg, compressedSig)
		if err != nil {
			t.Fatalf("VerifyData(compressed, %d): %v", i, err)
		}
		if !okCompressed {
			t.Fatalf("compressed signature %d did not verify", i)
		}
	}
}
