package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"tokenlayer/storage"
)

// Section is one snapshot slot: a state component that can serialise and
// restore itself. The snapshot layout writes each section under its own
// key and guards the whole generation with an integrity checksum.
type Section interface {
	SectionKey() []byte
	EncodeSection() ([]byte, error)
	DecodeSection(data []byte) error
}

// ErrCorruptSnapshot is returned when a persisted snapshot fails its
// integrity check. The snapshot must not be used; callers treat this as
// fatal.
var ErrCorruptSnapshot = errors.New("state: corrupted snapshot")

// ErrNoSnapshot is returned when the database holds no snapshot.
var ErrNoSnapshot = errors.New("state: no snapshot")

var (
	snapshotPrefix  = []byte("snapshot/")
	snapshotMetaKey = []byte("snapshot-meta")
)

type snapshotMeta struct {
	Height   uint64
	Checksum [32]byte
}

func sectionStorageKey(section Section) []byte {
	key := make([]byte, len(snapshotPrefix)+len(section.SectionKey()))
	copy(key, snapshotPrefix)
	copy(key[len(snapshotPrefix):], section.SectionKey())
	return key
}

// checksum folds the snapshot height and every section body into a blake3
// digest. The checksum is an integrity guard for persisted state only; it
// plays no role in consensus.
func checksum(height int64, sections []Section, bodies [][]byte) [32]byte {
	h := blake3.New(32, nil)
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], uint64(height))
	h.Write(heightBytes[:])
	for i, section := range sections {
		h.Write(section.SectionKey())
		h.Write(bodies[i])
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// SaveSnapshot writes a full-state snapshot at the given height, replacing
// any previous generation. The metadata record is written last so a crash
// mid-write leaves the previous checksum in place and the half-written
// generation detectable.
func SaveSnapshot(db storage.Database, height int64, sections ...Section) error {
	bodies := make([][]byte, len(sections))
	for i, section := range sections {
		body, err := section.EncodeSection()
		if err != nil {
			return fmt.Errorf("state: encode section %q: %w", section.SectionKey(), err)
		}
		bodies[i] = body
	}
	for i, section := range sections {
		if err := db.Put(sectionStorageKey(section), bodies[i]); err != nil {
			return fmt.Errorf("state: write section %q: %w", section.SectionKey(), err)
		}
	}
	meta := snapshotMeta{Height: uint64(height), Checksum: checksum(height, sections, bodies)}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return db.Put(snapshotMetaKey, encoded)
}

// LoadSnapshot restores every section from the database, verifying the
// generation checksum first. Returns the snapshot height.
func LoadSnapshot(db storage.Database, sections ...Section) (int64, error) {
	encoded, err := db.Get(snapshotMetaKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrNoSnapshot
	}
	if err != nil {
		return 0, err
	}
	var meta snapshotMeta
	if err := rlp.DecodeBytes(encoded, &meta); err != nil {
		return 0, fmt.Errorf("%w: bad metadata: %v", ErrCorruptSnapshot, err)
	}

	bodies := make([][]byte, len(sections))
	for i, section := range sections {
		body, err := db.Get(sectionStorageKey(section))
		if errors.Is(err, storage.ErrNotFound) {
			body = nil
			err = nil
		}
		if err != nil {
			return 0, err
		}
		bodies[i] = body
	}
	if checksum(int64(meta.Height), sections, bodies) != meta.Checksum {
		return 0, fmt.Errorf("%w: checksum mismatch at height %d", ErrCorruptSnapshot, meta.Height)
	}
	for i, section := range sections {
		if len(bodies[i]) == 0 {
			continue
		}
		if err := section.DecodeSection(bodies[i]); err != nil {
			return 0, err
		}
	}
	return int64(meta.Height), nil
}
