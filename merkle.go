package hypersig

// merkleTree is a complete binary tree of height h built bottom-up over
// 2^h leaves, with every internal node the keyed hash of its two
// children. Every level is retained (not just the root) so that a
// co-path can be extracted for any leaf without recomputation.
type merkleTree struct {
	levels [][][]byte // levels[0] = leaves, levels[h] = [root]
}

// buildMerkleTree hashes leaves pairwise, height times, keyed by salt.
func buildMerkleTree(leaves [][]byte, salt []byte, hashlen int) *merkleTree {
	t := &merkleTree{levels: make([][][]byte, 0)}
	t.levels = append(t.levels, leaves)
	cur := leaves
	for len(cur) > 1 {
		next := make([][]byte, len(cur)/2)
		for i := range next {
			left, right := cur[2*i], cur[2*i+1]
			concat := make([]byte, 0, 2*hashlen)
			concat = append(concat, left...)
			concat = append(concat, right...)
			next[i] = H(concat, salt, hashlen)
		}
		t.levels = append(t.levels, next)
		cur = next
	}
	return t
}

func (t *merkleTree) root() []byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

func (t *merkleTree) height() int {
	return len(t.levels) - 1
}

// copath returns the sibling nodes on the path from leaf index idx to the
// root, leaf-proximal first (copath[0] is idx's immediate sibling,
// copath[height-1] is a child of the root).
func (t *merkleTree) copath(idx uint64) [][]byte {
	h := t.height()
	path := make([][]byte, h)
	for d := 0; d < h; d++ {
		sibling := idx ^ 1
		path[d] = t.levels[d][sibling]
		idx >>= 1
	}
	return path
}

// merkleReconstruct recomputes the root from a leaf value, its co-path
// and its original index, retracing the same left/right pairing
// buildMerkleTree used. It is the inverse operation validation needs: the
// leaf is supplied by reconstructing an OTS pubkey, not by reading the
// tree.
func merkleReconstruct(leaf []byte, path [][]byte, idx uint64, salt []byte, hashlen int) []byte {
	cur := leaf
	for _, sibling := range path {
		var concat []byte
		if idx&1 == 0 {
			concat = append(append(make([]byte, 0, 2*hashlen), cur...), sibling...)
		} else {
			concat = append(append(make([]byte, 0, 2*hashlen), sibling...), cur...)
		}
		cur = H(concat, salt, hashlen)
		idx >>= 1
	}
	return cur
}
