package state

import (
	"errors"
	"testing"

	"tokenlayer/core/types"
	"tokenlayer/storage"
)

func populated(t *testing.T) (*Ledger, *Registry) {
	t.Helper()
	l := NewLedger()
	r := NewRegistry()

	id, err := r.Create(types.EcosystemMain, Property{Name: "Alpha", Managed: true, Issuer: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.AdjustSupply(id, 500); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := r.EnableFreezing(id, 10); err != nil {
		t.Fatalf("enable freezing: %v", err)
	}
	r.Freeze(id, "mallory")

	if err := l.Credit("alice", id, BucketAvailable, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit("bob", id, BucketAvailable, 200); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Move("bob", id, BucketAvailable, BucketReserved, 50); err != nil {
		t.Fatalf("move: %v", err)
	}
	return l, r
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	l, r := populated(t)

	if err := SaveSnapshot(db, 42, l, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	restoredLedger := NewLedger()
	restoredRegistry := NewRegistry()
	height, err := LoadSnapshot(db, restoredLedger, restoredRegistry)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if height != 42 {
		t.Fatalf("height = %d, want 42", height)
	}

	id := types.FirstMainPropertyID
	if got := restoredLedger.Get("bob", id); got != (Balance{Available: 150, Reserved: 50}) {
		t.Fatalf("bob balance = %+v", got)
	}
	prop, err := restoredRegistry.Get(id)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if prop.TotalSupply != 500 || !prop.Managed || prop.Issuer != "alice" {
		t.Fatalf("property = %+v", prop)
	}
	if !restoredRegistry.IsFrozen(id, "mallory") {
		t.Fatal("frozen set lost")
	}
	// The id counters advance past restored properties.
	next, err := restoredRegistry.Create(types.EcosystemMain, Property{Name: "Beta"})
	if err != nil {
		t.Fatalf("create after restore: %v", err)
	}
	if next != id+1 {
		t.Fatalf("next id after restore = %d, want %d", next, id+1)
	}
}

func TestLoadSnapshotEmptyDatabase(t *testing.T) {
	db := storage.NewMemDB()
	if _, err := LoadSnapshot(db, NewLedger()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestLoadSnapshotDetectsCorruption(t *testing.T) {
	db := storage.NewMemDB()
	l, r := populated(t)
	if err := SaveSnapshot(db, 7, l, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Flip a byte inside the ledger section body.
	key := append([]byte("snapshot/"), l.SectionKey()...)
	body, err := db.Get(key)
	if err != nil {
		t.Fatalf("get body: %v", err)
	}
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)/2] ^= 0xFF
	if err := db.Put(key, tampered); err != nil {
		t.Fatalf("put tampered: %v", err)
	}

	if _, err := LoadSnapshot(db, NewLedger(), NewRegistry()); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("err = %v, want ErrCorruptSnapshot", err)
	}
}
