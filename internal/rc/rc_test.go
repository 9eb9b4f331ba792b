package rc

import (
	"math/big"
	"testing"
)

func u32(x uint32) *uint32 { return &x }

func twoLevelSpec() []LevelSpec {
	return []LevelSpec{
		{Heights: []uint32{4, 4}, Reserve: u32(8)},
		{Heights: []uint32{4, 4}},
	}
}

func TestUsageSingleLevelMatchesSubUsage(t *testing.T) {
	spec := []LevelSpec{{Heights: []uint32{4, 4}}}
	usage := Usage(32, 8, spec)
	own := subUsage(32, 8, spec[0].Heights)
	top := new(big.Int).Lsh(big.NewInt(1), uint(sumHeights(spec[0].Heights)))
	want := new(big.Int).Add(top, own)
	if usage.Cmp(want) != 0 {
		t.Fatalf("Usage = %s, want %s", usage.String(), want.String())
	}
}

func TestUsage64RejectsOverflowingHierarchy(t *testing.T) {
	heights := make([]uint32, 32)
	for i := range heights {
		heights[i] = 16
	}
	huge := []LevelSpec{
		{Heights: heights, Reserve: u32(30)},
		{Heights: heights},
	}
	if _, err := Usage64(32, 8, huge); err == nil {
		t.Fatalf("Usage64 on a huge hierarchy should report overflow, not succeed")
	}
}

func TestUsage64AcceptsModestHierarchy(t *testing.T) {
	spec := twoLevelSpec()
	usage, err := Usage64(32, 8, spec)
	if err != nil {
		t.Fatalf("Usage64: %v", err)
	}
	if usage == 0 {
		t.Fatalf("Usage64 returned 0 for a non-trivial hierarchy")
	}
}

func TestNewKeySpaceRejectsEmptyHierarchy(t *testing.T) {
	_, err := NewKeySpace(32, 8, nil, 0, 1<<20)
	if err == nil {
		t.Fatalf("NewKeySpace with an empty hierarchy should fail")
	}
}

func TestNewKeySpaceOwnOffsetReservesChildSpace(t *testing.T) {
	spec := twoLevelSpec()
	size, err := Usage64(32, 8, spec)
	if err != nil {
		t.Fatalf("Usage64: %v", err)
	}
	ks, err := NewKeySpace(32, 8, spec, 0, size)
	if err != nil {
		t.Fatalf("NewKeySpace: %v", err)
	}
	if ks.Own() == 0 {
		t.Fatalf("Own() = 0, want a nonzero offset reserved past the delegate block")
	}
}

func TestKeySpaceAllocateCarvesDistinctChildren(t *testing.T) {
	spec := twoLevelSpec()
	size, err := Usage64(32, 8, spec)
	if err != nil {
		t.Fatalf("Usage64: %v", err)
	}
	ks, err := NewKeySpace(32, 8, spec, 0, size)
	if err != nil {
		t.Fatalf("NewKeySpace: %v", err)
	}
	child1, err := ks.Allocate()
	if err != nil {
		t.Fatalf("Allocate (1st): %v", err)
	}
	child2, err := ks.Allocate()
	if err != nil {
		t.Fatalf("Allocate (2nd): %v", err)
	}
	if child1.Own() == child2.Own() {
		t.Fatalf("two allocated children share the same own-offset %d", child1.Own())
	}
}

func TestKeySpaceAllocateFailsWithoutFurtherLevels(t *testing.T) {
	spec := []LevelSpec{{Heights: []uint32{4, 4}}}
	ks, err := NewKeySpace(32, 8, spec, 0, 1<<20)
	if err != nil {
		t.Fatalf("NewKeySpace: %v", err)
	}
	if _, err := ks.Allocate(); err == nil {
		t.Fatalf("Allocate on a single-level keyspace should fail")
	}
}
