package rc

import "fmt"

// Hierarchy is the recursive immutable value the design notes call for in
// place of a duck-typed __getitem__ path: each named child maps to
// another Hierarchy, with no shared mutable state between Env values
// derived from it.
type Hierarchy map[string]Hierarchy

// Env bundles a resolved configuration (hashlen, otsbits, a keyspace
// hierarchy) with the Hierarchy node and sub-path reached so far. Env.
// Child performs a pure fold: it never mutates the receiver, only returns
// a narrower Env.
type Env struct {
	AppName  string
	HashLen  uint32
	OTSBits  uint32
	KeySpace []LevelSpec
	Node     Hierarchy
	SubPath  []string
}

// Validate checks the RC-level assertions the signing core's Params.
// Validate does not itself cover: keyspace hierarchy depth, reserve-bit
// bounds relative to a level's total height, and that the worst-case
// total entropy usage across the whole hierarchy still fits 64 bits.
func (e Env) Validate() error {
	if e.AppName == "" {
		return fmt.Errorf("rc: appname must not be empty")
	}
	if e.HashLen < 16 || e.HashLen > 64 {
		return fmt.Errorf("rc: hashlen %d out of range [16, 64]", e.HashLen)
	}
	if e.OTSBits < 4 || e.OTSBits > 16 {
		return fmt.Errorf("rc: otsbits %d out of range [4, 16]", e.OTSBits)
	}
	if len(e.KeySpace) == 0 {
		return fmt.Errorf("rc: keyspace must have at least one level")
	}
	for i, level := range e.KeySpace {
		if len(level.Heights) < 2 || len(level.Heights) > 32 {
			return fmt.Errorf("rc: keyspace[%d].heights has %d entries, want 2..32", i, len(level.Heights))
		}
		var total uint64
		for j, h := range level.Heights {
			if h < 3 || h > 16 {
				return fmt.Errorf("rc: keyspace[%d].heights[%d] = %d out of range [3, 16]", i, j, h)
			}
			total += uint64(h)
		}
		isLast := i == len(e.KeySpace)-1
		if isLast {
			if level.Reserve != nil {
				return fmt.Errorf("rc: keyspace[%d] is the last level and must not set reserve", i)
			}
			continue
		}
		if level.Reserve == nil {
			return fmt.Errorf("rc: keyspace[%d] must set reserve (it is not the last level)", i)
		}
		r := uint64(*level.Reserve)
		if r <= 1 || r >= total-1 {
			return fmt.Errorf("rc: keyspace[%d].reserve %d must satisfy 1 < reserve < %d", i, r, total-1)
		}
	}
	usage := Usage(e.HashLen, e.OTSBits, e.KeySpace)
	if usage.BitLen() >= 65 {
		return fmt.Errorf("rc: total keyspace usage %s does not fit in 64 bits", usage.String())
	}
	return nil
}

// Child narrows Env to the named sub-hierarchy, dropping the outermost
// keyspace level (which the parent consumed for its own hypertree tiers)
// the way BlockChainEnv's __getitem__ does.
func (e Env) Child(name string) (Env, error) {
	child, ok := e.Node[name]
	if !ok {
		return Env{}, fmt.Errorf("rc: no sub-hierarchy named %q", name)
	}
	if len(e.KeySpace) < 2 {
		return Env{}, fmt.Errorf("rc: no further keyspace levels to delegate to %q", name)
	}
	subPath := make([]string, len(e.SubPath), len(e.SubPath)+1)
	copy(subPath, e.SubPath)
	subPath = append(subPath, name)
	return Env{
		AppName:  e.AppName,
		HashLen:  e.HashLen,
		OTSBits:  e.OTSBits,
		KeySpace: e.KeySpace[1:],
		Node:     child,
		SubPath:  subPath,
	}, nil
}
