// Package state holds the derived token-layer consensus state: the balance
// tally, the property registry and the snapshot persistence codecs. All
// amounts are int64 in property-native smallest units; divisible properties
// carry eight implied decimal digits and every arithmetic step is integer.
package state

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Bucket selects one of the three independent balance quantities.
type Bucket uint8

const (
	BucketAvailable Bucket = iota
	BucketReserved
	BucketFrozen
)

func (b Bucket) String() string {
	switch b {
	case BucketAvailable:
		return "available"
	case BucketReserved:
		return "reserved"
	case BucketFrozen:
		return "frozen"
	}
	return fmt.Sprintf("bucket(%d)", uint8(b))
}

var (
	// ErrInsufficientFunds is returned by debits and moves that would take
	// a bucket negative. The tally is left untouched.
	ErrInsufficientFunds = errors.New("state: insufficient funds")

	// ErrAmountRange is returned for negative amounts or amounts that
	// would overflow a bucket.
	ErrAmountRange = errors.New("state: amount out of range")
)

// Balance is the tri-bucket tally entry for one (address, property) pair.
type Balance struct {
	Available int64
	Reserved  int64
	Frozen    int64
}

// Total returns the units of the property held by the address across all
// buckets.
func (b Balance) Total() int64 { return b.Available + b.Reserved + b.Frozen }

func (b Balance) empty() bool { return b.Available == 0 && b.Reserved == 0 && b.Frozen == 0 }

func (b *Balance) bucket(bucket Bucket) *int64 {
	switch bucket {
	case BucketAvailable:
		return &b.Available
	case BucketReserved:
		return &b.Reserved
	default:
		return &b.Frozen
	}
}

// Ledger is the balance tally. A single RWMutex serializes every mutation;
// the engine's block loop is the only writer, snapshot queries take the
// read side for the duration of the read.
//
// The ledger does not enforce the conservation law. Minting and burning
// callers pair every credit/debit with the matching supply adjustment on
// the property registry.
type Ledger struct {
	mu    sync.RWMutex
	tally map[string]map[uint32]*Balance
}

// NewLedger returns an empty tally.
func NewLedger() *Ledger {
	return &Ledger{tally: make(map[string]map[uint32]*Balance)}
}

func (l *Ledger) entry(address string, propertyID uint32) *Balance {
	byProp, ok := l.tally[address]
	if !ok {
		byProp = make(map[uint32]*Balance)
		l.tally[address] = byProp
	}
	bal, ok := byProp[propertyID]
	if !ok {
		bal = &Balance{}
		byProp[propertyID] = bal
	}
	return bal
}

func (l *Ledger) prune(address string, propertyID uint32) {
	byProp, ok := l.tally[address]
	if !ok {
		return
	}
	if bal, ok := byProp[propertyID]; ok && bal.empty() {
		delete(byProp, propertyID)
	}
	if len(byProp) == 0 {
		delete(l.tally, address)
	}
}

// Credit adds amount to the selected bucket.
func (l *Ledger) Credit(address string, propertyID uint32, bucket Bucket, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit of %d", ErrAmountRange, amount)
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	target := l.entry(address, propertyID).bucket(bucket)
	if *target > math.MaxInt64-amount {
		return fmt.Errorf("%w: credit of %d overflows %s", ErrAmountRange, amount, bucket)
	}
	*target += amount
	return nil
}

// Debit removes amount from the selected bucket. The debit fails atomically
// when the bucket holds less than amount.
func (l *Ledger) Debit(address string, propertyID uint32, bucket Bucket, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit of %d", ErrAmountRange, amount)
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	target := l.entry(address, propertyID).bucket(bucket)
	if *target < amount {
		return fmt.Errorf("%w: %s debit of %d exceeds %d", ErrInsufficientFunds, bucket, amount, *target)
	}
	*target -= amount
	l.prune(address, propertyID)
	return nil
}

// Move shifts amount between two buckets of the same entry. Fails
// atomically when the source bucket holds less than amount.
func (l *Ledger) Move(address string, propertyID uint32, from, to Bucket, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: move of %d", ErrAmountRange, amount)
	}
	if amount == 0 || from == to {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.entry(address, propertyID)
	src, dst := bal.bucket(from), bal.bucket(to)
	if *src < amount {
		return fmt.Errorf("%w: %s move of %d exceeds %d", ErrInsufficientFunds, from, amount, *src)
	}
	*src -= amount
	*dst += amount
	return nil
}

// Get returns the tally entry for the pair. Missing entries read as zero.
func (l *Ledger) Get(address string, propertyID uint32) Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if byProp, ok := l.tally[address]; ok {
		if bal, ok := byProp[propertyID]; ok {
			return *bal
		}
	}
	return Balance{}
}

// PropertiesOwned returns the sorted property ids for which the address has
// a non-empty tally entry. The slice is a copy and safe to retain.
func (l *Ledger) PropertiesOwned(address string) []uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byProp := l.tally[address]
	ids := make([]uint32, 0, len(byProp))
	for id, bal := range byProp {
		if !bal.empty() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Addresses returns every address with a non-empty tally entry, sorted
// lexically.
func (l *Ledger) Addresses() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	addrs := make([]string, 0, len(l.tally))
	for addr := range l.tally {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Holders returns the addresses holding a non-zero total of the property,
// sorted lexically, together with each address's total. Used by pro-rata
// distributions.
func (l *Ledger) Holders(propertyID uint32) ([]string, map[string]int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	totals := make(map[string]int64)
	addrs := make([]string, 0)
	for addr, byProp := range l.tally {
		if bal, ok := byProp[propertyID]; ok && bal.Total() > 0 {
			addrs = append(addrs, addr)
			totals[addr] = bal.Total()
		}
	}
	sort.Strings(addrs)
	return addrs, totals
}

// TotalOf sums the property across every address and bucket. Linear in the
// ledger size; used by conservation checks and distribution thresholds.
func (l *Ledger) TotalOf(propertyID uint32) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, byProp := range l.tally {
		if bal, ok := byProp[propertyID]; ok {
			total += bal.Total()
		}
	}
	return total
}

// ForEachSorted walks every non-empty tally entry in address-then-property
// order. Iteration order is deterministic regardless of map layout, which
// the consensus hash depends on.
func (l *Ledger) ForEachSorted(fn func(address string, propertyID uint32, bal Balance)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	addrs := make([]string, 0, len(l.tally))
	for addr := range l.tally {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		byProp := l.tally[addr]
		ids := make([]uint32, 0, len(byProp))
		for id := range byProp {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if bal := byProp[id]; !bal.empty() {
				fn(addr, id, *bal)
			}
		}
	}
}

// Reset replaces the entire tally. Used when restoring a snapshot.
func (l *Ledger) Reset(entries map[string]map[uint32]Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tally = make(map[string]map[uint32]*Balance, len(entries))
	for addr, byProp := range entries {
		dst := make(map[uint32]*Balance, len(byProp))
		for id, bal := range byProp {
			if bal.empty() {
				continue
			}
			copied := bal
			dst[id] = &copied
		}
		if len(dst) > 0 {
			l.tally[addr] = dst
		}
	}
}
