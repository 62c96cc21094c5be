package metadex

import (
	"tokenlayer/core/types"
)

// Cancelled describes one order removed from the book, with the reservation
// that was returned to the owner's available balance.
type Cancelled struct {
	Order    Order
	Released int64
}

// CancelAtPrice removes the address's orders on the exact (for sale,
// desired, unit price) tuple. The price is conveyed by original amounts, as
// it is on the wire.
func (b *Book) CancelAtPrice(address string, propertyForSale, propertyDesired uint32, amountForSale, amountDesired int64) ([]Cancelled, error) {
	return b.cancelWhere(func(key pair, o *Order) bool {
		return o.Address == address &&
			key.forSale == propertyForSale && key.desired == propertyDesired &&
			o.samePrice(amountForSale, amountDesired)
	})
}

// CancelPair removes all of the address's orders on the pair, regardless of
// price.
func (b *Book) CancelPair(address string, propertyForSale, propertyDesired uint32) ([]Cancelled, error) {
	return b.cancelWhere(func(key pair, o *Order) bool {
		return o.Address == address &&
			key.forSale == propertyForSale && key.desired == propertyDesired
	})
}

// CancelEcosystem removes every order of the address across all pairs of
// the ecosystem.
func (b *Book) CancelEcosystem(address string, eco types.Ecosystem) ([]Cancelled, error) {
	return b.cancelWhere(func(key pair, o *Order) bool {
		return o.Address == address && types.EcosystemOf(key.forSale) == eco
	})
}

func (b *Book) cancelWhere(match func(pair, *Order) bool) ([]Cancelled, error) {
	if b.funds == nil {
		return nil, errNilFunds
	}
	var cancelled []Cancelled
	for _, key := range b.sortedPairs() {
		side := b.orders[key]
		kept := side[:0]
		for _, o := range side {
			if !match(key, o) {
				kept = append(kept, o)
				continue
			}
			if err := b.funds.ReleaseReserve(o.Address, o.PropertyForSale, o.AmountRemaining); err != nil {
				return cancelled, err
			}
			cancelled = append(cancelled, Cancelled{Order: *o, Released: o.AmountRemaining})
		}
		if len(kept) == 0 {
			delete(b.orders, key)
		} else {
			b.orders[key] = kept
		}
	}
	return cancelled, nil
}
