// Package fees implements the trading-fee cache and its pro-rata
// distribution. Fees accumulate per property; once a property's cache
// crosses its distribution threshold the whole cache (minus the integer
// floor-division remainder) is paid out to the holders of the ecosystem's
// base token.
package fees

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"tokenlayer/core/types"
)

// ThresholdDivisor fixes the distribution threshold at 0.01% of the cached
// property's total supply, with a floor of one unit.
const ThresholdDivisor int64 = 10000

var errNilState = errors.New("fees: state backend not configured")

// State is the slice of ledger and registry the cache needs: the recipient
// snapshot, the supply that defines the threshold, and the payout credit.
type State interface {
	// QualifyingHolders returns the addresses holding a qualifying
	// balance of the property, sorted, with each address's weight.
	QualifyingHolders(propertyID uint32) ([]string, map[string]int64)
	TotalSupply(propertyID uint32) (int64, error)
	CreditAvailable(address string, propertyID uint32, amount int64) error
}

// Share is one recipient's cut of a distribution.
type Share struct {
	Address string
	Amount  int64
}

// Distribution is an immutable record of one triggered payout.
type Distribution struct {
	ID         uint64
	PropertyID uint32
	Block      int64
	Total      int64
	Recipients []Share
}

// Cache accumulates collected fees per property and triggers
// distributions. Covered by the engine's single writer lock.
type Cache struct {
	state  State
	cached map[uint32]int64

	nextID        uint64
	distributions []Distribution
}

// NewCache returns an empty fee cache.
func NewCache(state State) *Cache {
	return &Cache{state: state, cached: make(map[uint32]int64), nextID: 1}
}

// Threshold returns the property's distribution threshold: total supply
// divided by the threshold divisor, at least one unit.
func (c *Cache) Threshold(propertyID uint32) int64 {
	supply, err := c.state.TotalSupply(propertyID)
	if err != nil || supply <= 0 {
		return 1
	}
	threshold := supply / ThresholdDivisor
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// AddFee adds collected fee units to the property's cache and triggers a
// distribution when the new total reaches the threshold. The units were
// already debited from their payer; until distribution they belong to the
// cache, not to any address.
func (c *Cache) AddFee(propertyID uint32, amount int64, block int64) error {
	if c.state == nil {
		return errNilState
	}
	if amount <= 0 {
		return fmt.Errorf("fees: non-positive fee amount")
	}
	c.cached[propertyID] += amount
	if c.cached[propertyID] < c.Threshold(propertyID) {
		return nil
	}
	return c.distribute(propertyID, block)
}

// distribute snapshots the qualifying holders of the ecosystem's base
// token and pays the cached total pro-rata by integer floor division. The
// undistributed remainder stays in the cache.
func (c *Cache) distribute(propertyID uint32, block int64) error {
	total := c.cached[propertyID]
	base := types.PropertyIDBase
	if types.IsTestEcosystemProperty(propertyID) {
		base = types.PropertyIDTestBase
	}
	holders, weights := c.state.QualifyingHolders(base)
	if len(holders) == 0 {
		return nil // nothing to pay yet; keep accumulating
	}

	var totalWeight int64
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight <= 0 {
		return nil
	}

	dist := Distribution{
		ID:         c.nextID,
		PropertyID: propertyID,
		Block:      block,
		Total:      total,
	}
	var paid int64
	bigTotal := big.NewInt(total)
	bigWeight := big.NewInt(totalWeight)
	for _, addr := range holders {
		share := new(big.Int).Mul(bigTotal, big.NewInt(weights[addr]))
		amount := share.Quo(share, bigWeight).Int64()
		if amount == 0 {
			continue
		}
		if err := c.state.CreditAvailable(addr, propertyID, amount); err != nil {
			return err
		}
		dist.Recipients = append(dist.Recipients, Share{Address: addr, Amount: amount})
		paid += amount
	}

	c.cached[propertyID] = total - paid
	if c.cached[propertyID] == 0 {
		delete(c.cached, propertyID)
	}
	c.nextID++
	c.distributions = append(c.distributions, dist)
	return nil
}

// CachedAmount returns the undistributed fee units for the property.
func (c *Cache) CachedAmount(propertyID uint32) int64 { return c.cached[propertyID] }

// Distributions returns copies of the recorded distributions, optionally
// filtered by property (0 matches all).
func (c *Cache) Distributions(propertyID uint32) []Distribution {
	var out []Distribution
	for _, d := range c.distributions {
		if propertyID != types.PropertyIDWildcard && d.PropertyID != propertyID {
			continue
		}
		copied := d
		copied.Recipients = append([]Share(nil), d.Recipients...)
		out = append(out, copied)
	}
	return out
}

// DistributionByID returns one recorded distribution.
func (c *Cache) DistributionByID(id uint64) (Distribution, bool) {
	for _, d := range c.distributions {
		if d.ID == id {
			copied := d
			copied.Recipients = append([]Share(nil), d.Recipients...)
			return copied, true
		}
	}
	return Distribution{}, false
}

// ForEachSorted walks the cached totals in ascending property order. Feeds
// the consensus hash.
func (c *Cache) ForEachSorted(fn func(propertyID uint32, cached int64)) {
	ids := make([]uint32, 0, len(c.cached))
	for id := range c.cached {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(id, c.cached[id])
	}
}
