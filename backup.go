package hypersig

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
)

const seedHashContext = "" // empty key: a plain unkeyed digest of the seed

// Backup is the language-neutral, JSON round-trippable snapshot of a
// signing key's resumable state: everything needed to continue signing
// from idx without repeating the expensive leaf pubkey computations for
// tiers already visited.
type Backup struct {
	HashLen  uint32                      `json:"hashlen"`
	OTSBits  uint32                      `json:"otsbits"`
	Heights  []uint32                    `json:"heights"`
	Idx      uint64                      `json:"idx"`
	SeedHash string                      `json:"seedhash"`
	Salt     string                      `json:"salt,omitempty"`
	KeyCache map[string]BackupCacheEntry `json:"key_cache"`
}

// BackupCacheEntry is one entry of Backup.KeyCache, keyed by
// entropy-offset (as a decimal string, since JSON object keys are
// strings).
type BackupCacheEntry struct {
	MerkleBottom []string `json:"merkle_bottom"`
	Signature    *string  `json:"signature"`
}

// Serialize captures the signing key's current state as a Backup value,
// ready for json.Marshal.
func (sk *SigningKey) Serialize() *Backup {
	cache := make(map[string]BackupCacheEntry, len(sk.backup))
	for offset, entry := range sk.backup {
		bottom := make([]string, len(entry.MerkleBottom))
		for i, pub := range entry.MerkleBottom {
			bottom[i] = hex.EncodeToString(pub)
		}
		var sigHex *string
		if entry.Signature != nil {
			s := hex.EncodeToString(entry.Signature)
			sigHex = &s
		}
		cache[strconv.FormatUint(offset, 10)] = BackupCacheEntry{MerkleBottom: bottom, Signature: sigHex}
	}
	return &Backup{
		HashLen:  sk.params.HashLen,
		OTSBits:  sk.params.OTSBits,
		Heights:  sk.params.Heights,
		Idx:      sk.idx,
		SeedHash: hex.EncodeToString(H(sk.seed, []byte(seedHashContext), int(sk.params.HashLen))),
		KeyCache: cache,
	}
}

// MarshalJSON makes Backup directly usable with json.Marshal; it is a
// plain struct, so this simply documents the JSON schema from §6.2 is
// authoritative, without changing encoding/json's default behaviour.
func (b *Backup) MarshalJSON() ([]byte, error) {
	type alias Backup
	return json.Marshal((*alias)(b))
}

func (b *Backup) toEntries(params Params) (map[uint64]*BackupEntry, error) {
	entries := make(map[uint64]*BackupEntry, len(b.KeyCache))
	for offsetStr, entry := range b.KeyCache {
		offset, err := strconv.ParseUint(offsetStr, 10, 64)
		if err != nil {
			return nil, errorf(StructuralError, "backup key_cache offset %q is not a valid uint64", offsetStr)
		}
		bottom := make([][]byte, len(entry.MerkleBottom))
		for i, hexStr := range entry.MerkleBottom {
			b, err := hex.DecodeString(hexStr)
			if err != nil || uint32(len(b)) != params.HashLen {
				return nil, errorf(StructuralError, "backup merkle_bottom entry %d is not valid hashlen-byte hex", i)
			}
			bottom[i] = b
		}
		var sig []byte
		if entry.Signature != nil {
			s, err := hex.DecodeString(*entry.Signature)
			if err != nil {
				return nil, errorf(StructuralError, "backup signature is not valid hex")
			}
			sig = s
		}
		entries[offset] = &BackupEntry{MerkleBottom: bottom, Signature: sig}
	}
	return entries, nil
}

// RestoreSigningKey rebuilds a signing key from seed, idx and an optional
// Backup. It rejects a Backup whose hashlen/otsbits/heights/seedhash
// disagree with the constructor's own params and seed (BackupMismatch),
// and rejects a Backup whose idx is ahead of the requested idx
// (BackupRollback) — the caller is asking to resume from an index it
// cannot have reached without also holding state this backup does not
// reflect.
func RestoreSigningKey(params Params, seed []byte, idx uint64, backup *Backup, executor Executor) (*SigningKey, error) {
	if backup == nil {
		return NewSigningKey(params, seed, idx, nil, executor)
	}
	if backup.HashLen != params.HashLen || backup.OTSBits != params.OTSBits || !equalHeights(backup.Heights, params.Heights) {
		return nil, errorf(BackupMismatch, "backup params disagree with the requested configuration")
	}
	wantHash := hex.EncodeToString(H(seed, []byte(seedHashContext), int(params.HashLen)))
	if backup.SeedHash != wantHash {
		return nil, errorf(BackupMismatch, "backup seedhash disagrees with seed")
	}
	if backup.Idx > idx {
		return nil, errorf(BackupRollback, "backup idx %d is ahead of requested idx %d", backup.Idx, idx)
	}
	entries, err := backup.toEntries(params)
	if err != nil {
		return nil, err
	}
	return NewSigningKey(params, seed, idx, entries, executor)
}

func equalHeights(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
