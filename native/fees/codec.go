package fees

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

type storedShare struct {
	Address string
	Amount  uint64
}

type storedDistribution struct {
	ID         uint64
	PropertyID uint32
	Block      uint64
	Total      uint64
	Recipients []storedShare
}

type storedCacheEntry struct {
	PropertyID uint32
	Cached     uint64
}

type storedFees struct {
	NextID        uint64
	Cached        []storedCacheEntry
	Distributions []storedDistribution
}

// EncodeSection serialises the cached totals and distribution history for
// the state snapshot.
func (c *Cache) EncodeSection() ([]byte, error) {
	stored := storedFees{NextID: c.nextID}
	c.ForEachSorted(func(propertyID uint32, cached int64) {
		stored.Cached = append(stored.Cached, storedCacheEntry{PropertyID: propertyID, Cached: uint64(cached)})
	})
	for _, d := range c.distributions {
		s := storedDistribution{
			ID:         d.ID,
			PropertyID: d.PropertyID,
			Block:      uint64(d.Block),
			Total:      uint64(d.Total),
		}
		for _, r := range d.Recipients {
			s.Recipients = append(s.Recipients, storedShare{Address: r.Address, Amount: uint64(r.Amount)})
		}
		stored.Distributions = append(stored.Distributions, s)
	}
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the cache's contents with the snapshot's.
func (c *Cache) DecodeSection(data []byte) error {
	var stored storedFees
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("fees: decode snapshot: %w", err)
	}
	c.nextID = stored.NextID
	if c.nextID == 0 {
		c.nextID = 1
	}
	c.cached = make(map[uint32]int64, len(stored.Cached))
	for _, entry := range stored.Cached {
		c.cached[entry.PropertyID] = int64(entry.Cached)
	}
	c.distributions = nil
	for _, s := range stored.Distributions {
		d := Distribution{
			ID:         s.ID,
			PropertyID: s.PropertyID,
			Block:      int64(s.Block),
			Total:      int64(s.Total),
		}
		for _, r := range s.Recipients {
			d.Recipients = append(d.Recipients, Share{Address: r.Address, Amount: int64(r.Amount)})
		}
		c.distributions = append(c.distributions, d)
	}
	return nil
}

// SectionKey identifies the cache's slot in the snapshot layout.
func (c *Cache) SectionKey() []byte { return []byte("fees") }
