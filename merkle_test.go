package hypersig

import (
	"bytes"
	"testing"
)

func testLeaves(n int, hashlen int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = H([]byte{byte(i)}, []byte("leafsalt"), hashlen)
	}
	return leaves
}

func TestMerkleTreeHeight(t *testing.T) {
	salt := []byte("salty-salt")
	tree := buildMerkleTree(testLeaves(8, 32), salt, 32)
	if tree.height() != 3 {
		t.Fatalf("height() = %d, want 3", tree.height())
	}
}

func TestMerkleTreeSingleLeaf(t *testing.T) {
	salt := []byte("salty-salt")
	leaves := testLeaves(1, 32)
	tree := buildMerkleTree(leaves, salt, 32)
	if tree.height() != 0 {
		t.Fatalf("height() = %d, want 0", tree.height())
	}
	if !bytes.Equal(tree.root(), leaves[0]) {
		t.Fatalf("root of single-leaf tree must be the leaf itself")
	}
	if len(tree.copath(0)) != 0 {
		t.Fatalf("copath of single-leaf tree must be empty")
	}
}

func TestMerkleCopathReconstructsRoot(t *testing.T) {
	salt := []byte("salty-salt")
	hashlen := 32
	leaves := testLeaves(16, hashlen)
	tree := buildMerkleTree(leaves, salt, hashlen)
	for idx := range leaves {
		path := tree.copath(uint64(idx))
		if len(path) != tree.height() {
			t.Fatalf("copath(%d) has %d entries, want %d", idx, len(path), tree.height())
		}
		got := merkleReconstruct(leaves[idx], path, uint64(idx), salt, hashlen)
		if !bytes.Equal(got, tree.root()) {
			t.Fatalf("leaf %d: reconstructed root %x != actual root %x", idx, got, tree.root())
		}
	}
}

func TestMerkleCopathRejectsWrongLeaf(t *testing.T) {
	salt := []byte("salty-salt")
	hashlen := 32
	leaves := testLeaves(16, hashlen)
	tree := buildMerkleTree(leaves, salt, hashlen)
	path := tree.copath(3)
	got := merkleReconstruct(leaves[4], path, 3, salt, hashlen)
	if bytes.Equal(got, tree.root()) {
		t.Fatalf("reconstruction with the wrong leaf must not reproduce the root")
	}
}

func TestMerkleDifferentSaltsDiverge(t *testing.T) {
	hashlen := 32
	leaves := testLeaves(8, hashlen)
	t1 := buildMerkleTree(leaves, []byte("salt-one"), hashlen)
	t2 := buildMerkleTree(leaves, []byte("salt-two"), hashlen)
	if bytes.Equal(t1.root(), t2.root()) {
		t.Fatalf("different salts produced the same root")
	}
}
