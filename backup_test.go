package hypersig

import (
	"bytes"
	"encoding/json"
	"testing"
)

func backupTestParams() Params {
	return Params{HashLen: 32, OTSBits: 8, Heights: []uint32{3, 3, 3}}
}

func TestBackupSerializeRoundTripsThroughJSON(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x40}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	if _, err := sk.SignData([]byte("first"), false); err != nil {
		t.Fatalf("SignData: %v", err)
	}

	backup := sk.Serialize()
	raw, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var restored Backup
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if restored.Idx != backup.Idx {
		t.Fatalf("restored idx %d != original %d", restored.Idx, backup.Idx)
	}
	if restored.HashLen != p.HashLen || restored.OTSBits != p.OTSBits {
		t.Fatalf("restored params disagree with original")
	}
	if len(restored.KeyCache) != len(backup.KeyCache) {
		t.Fatalf("restored key_cache has %d entries, want %d", len(restored.KeyCache), len(backup.KeyCache))
	}
}

func TestRestoreSigningKeyContinuesSigning(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x41}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := sk.SignData([]byte{byte(i)}, false); err != nil {
			t.Fatalf("SignData(%d): %v", i, err)
		}
	}
	backup := sk.Serialize()

	restored, err := RestoreSigningKey(p, seed, sk.Index(), backup, nil)
	if err != nil {
		t.Fatalf("RestoreSigningKey: %v", err)
	}
	v := NewValidator(p)
	sig, err := restored.SignData([]byte("after restore"), false)
	if err != nil {
		t.Fatalf("SignData on restored key: %v", err)
	}
	ok, _, idx, err := v.VerifyData([]byte("after restore"), sig)
	if err != nil {
		t.Fatalf("VerifyData: %v", err)
	}
	if !ok {
		t.Fatalf("signature produced after restore did not verify")
	}
	if idx != 3 {
		t.Fatalf("idx after restore and one more signature = %d, want 3", idx)
	}
}

func TestRestoreSigningKeyWithNilBackupBuildsFresh(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x42}, 32)
	sk, err := RestoreSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("RestoreSigningKey with nil backup: %v", err)
	}
	if sk.Index() != 0 {
		t.Fatalf("Index() = %d, want 0", sk.Index())
	}
}

func TestRestoreSigningKeyRejectsParamMismatch(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x43}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	backup := sk.Serialize()

	wrongParams := p
	wrongParams.OTSBits = 4
	_, err = RestoreSigningKey(wrongParams, seed, 0, backup, nil)
	if err == nil {
		t.Fatalf("RestoreSigningKey with mismatched otsbits should fail")
	}
	herr, ok := err.(Error)
	if !ok || herr.Kind() != BackupMismatch {
		t.Fatalf("RestoreSigningKey error = %v, want BackupMismatch", err)
	}
}

func TestRestoreSigningKeyRejectsSeedMismatch(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x44}, 32)
	otherSeed := bytes.Repeat([]byte{0x45}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	backup := sk.Serialize()

	_, err = RestoreSigningKey(p, otherSeed, 0, backup, nil)
	if err == nil {
		t.Fatalf("RestoreSigningKey with a different seed should fail")
	}
	herr, ok := err.(Error)
	if !ok || herr.Kind() != BackupMismatch {
		t.Fatalf("RestoreSigningKey error = %v, want BackupMismatch", err)
	}
}

func TestRestoreSigningKeyRejectsRollback(t *testing.T) {
	p := backupTestParams()
	seed := bytes.Repeat([]byte{0x46}, 32)
	sk, err := NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		t.Fatalf("NewSigningKey: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := sk.SignData([]byte{byte(i)}, false); err != nil {
			t.Fatalf("SignData(%d): %v", i, err)
		}
	}
	backup := sk.Serialize()

	_, err = RestoreSigningKey(p, seed, 2, backup, nil)
	if err == nil {
		t.Fatalf("RestoreSigningKey at an index behind the backup should fail")
	}
	herr, ok := err.(Error)
	if !ok || herr.Kind() != BackupRollback {
		t.Fatalf("RestoreSigningKey error = %v, want BackupRollback", err)
	}
}
