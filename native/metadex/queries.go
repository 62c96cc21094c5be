package metadex

import "sort"

// sortedPairs returns the book's pair keys in ascending (for sale, desired)
// order, for deterministic iteration.
func (b *Book) sortedPairs() []pair {
	keys := make([]pair, 0, len(b.orders))
	for key := range b.orders {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].forSale != keys[j].forSale {
			return keys[i].forSale < keys[j].forSale
		}
		return keys[i].desired < keys[j].desired
	})
	return keys
}

// OrdersForPair returns copies of the open orders selling propertyForSale
// for propertyDesired, best price first.
func (b *Book) OrdersForPair(propertyForSale, propertyDesired uint32) []Order {
	side := b.orders[pair{propertyForSale, propertyDesired}]
	out := make([]Order, len(side))
	for i, o := range side {
		out[i] = *o
	}
	return out
}

// OrdersForProperty returns copies of every open order selling the
// property, across all desired counter-properties.
func (b *Book) OrdersForProperty(propertyForSale uint32) []Order {
	var out []Order
	for _, key := range b.sortedPairs() {
		if key.forSale != propertyForSale {
			continue
		}
		for _, o := range b.orders[key] {
			out = append(out, *o)
		}
	}
	return out
}

// OrdersByAddress returns copies of the address's open orders across the
// whole book.
func (b *Book) OrdersByAddress(address string) []Order {
	var out []Order
	for _, key := range b.sortedPairs() {
		for _, o := range b.orders[key] {
			if o.Address == address {
				out = append(out, *o)
			}
		}
	}
	return out
}

// ForEachSorted walks every open order pair by pair in ascending key order
// and, within a pair, in book order (price, then block, then position).
// The consensus hash depends on this order being stable.
func (b *Book) ForEachSorted(fn func(o Order)) {
	for _, key := range b.sortedPairs() {
		for _, o := range b.orders[key] {
			fn(*o)
		}
	}
}

// OpenOrderCount returns the number of resting orders.
func (b *Book) OpenOrderCount() int {
	n := 0
	for _, side := range b.orders {
		n += len(side)
	}
	return n
}
