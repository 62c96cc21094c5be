package state

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"tokenlayer/core/types"
)

var (
	// ErrUnknownProperty is returned for lookups of ids that were never
	// issued.
	ErrUnknownProperty = errors.New("state: unknown property")

	// ErrSupplyRange is returned when a supply adjustment would go
	// negative or overflow.
	ErrSupplyRange = errors.New("state: supply adjustment out of range")
)

// Property describes one issued fungible asset. Properties are never
// deleted; managed properties may be mutated by grant/revoke/change-issuer
// and the freezing toggles.
type Property struct {
	ID          uint32
	Name        string
	Category    string
	Subcategory string
	URL         string
	Data        string

	Divisible bool
	Issuer    string

	// Exactly one of Fixed, Managed and CrowdsaleOrigin describes how the
	// property was issued.
	Fixed           bool
	Managed         bool
	CrowdsaleOrigin bool

	// FreezingEnabled is set by an enable-freezing transaction;
	// FreezingLiveBlock is the height at which freezing becomes usable
	// (delayed by the network's freeze wait period when the freeze-notice
	// feature is live).
	FreezingEnabled   bool
	FreezingLiveBlock int64

	CreationTx  common.Hash
	TotalSupply int64
}

// Registry issues property ids and tracks per-property metadata, supply and
// frozen addresses. Like the ledger it is mutated only from the block
// processing path.
type Registry struct {
	nextMain uint32
	nextTest uint32
	props    map[uint32]*Property
	frozen   map[uint32]map[string]bool
}

// NewRegistry returns a registry with both settlement tokens pre-issued and
// the per-ecosystem id counters at their first assignable values.
func NewRegistry() *Registry {
	r := &Registry{
		nextMain: types.FirstMainPropertyID,
		nextTest: types.FirstTestPropertyID,
		props:    make(map[uint32]*Property),
		frozen:   make(map[uint32]map[string]bool),
	}
	r.props[types.PropertyIDBase] = &Property{
		ID: types.PropertyIDBase, Name: "Base Token", Divisible: true, Fixed: true,
	}
	r.props[types.PropertyIDTestBase] = &Property{
		ID: types.PropertyIDTestBase, Name: "Test Base Token", Divisible: true, Fixed: true,
	}
	return r
}

// Create assigns the next id of the requested ecosystem and records the
// property. The id counters never go backwards, including across
// snapshots.
func (r *Registry) Create(eco types.Ecosystem, prop Property) (uint32, error) {
	var id uint32
	switch eco {
	case types.EcosystemTest:
		id = r.nextTest
		r.nextTest++
	default:
		if r.nextMain > types.MaxMainPropertyID {
			return 0, fmt.Errorf("state: production property id space exhausted")
		}
		id = r.nextMain
		r.nextMain++
	}
	prop.ID = id
	r.props[id] = &prop
	return id, nil
}

// Get returns the property record.
func (r *Registry) Get(propertyID uint32) (*Property, error) {
	prop, ok := r.props[propertyID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProperty, propertyID)
	}
	return prop, nil
}

// Exists reports whether the id has been issued.
func (r *Registry) Exists(propertyID uint32) bool {
	_, ok := r.props[propertyID]
	return ok
}

// List returns every issued property id in ascending order.
func (r *Registry) List() []uint32 {
	ids := make([]uint32, 0, len(r.props))
	for id := range r.props {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AdjustSupply applies a signed delta to the recorded total supply. Every
// mint and burn in the engine routes through here so the conservation
// invariant stays checkable.
func (r *Registry) AdjustSupply(propertyID uint32, delta int64) error {
	prop, err := r.Get(propertyID)
	if err != nil {
		return err
	}
	if delta > 0 && prop.TotalSupply > math.MaxInt64-delta {
		return fmt.Errorf("%w: +%d overflows supply of property %d", ErrSupplyRange, delta, propertyID)
	}
	if delta < 0 && prop.TotalSupply+delta < 0 {
		return fmt.Errorf("%w: %d exceeds supply of property %d", ErrSupplyRange, delta, propertyID)
	}
	prop.TotalSupply += delta
	return nil
}

// SetIssuer transfers issuer control of the property.
func (r *Registry) SetIssuer(propertyID uint32, issuer string) error {
	prop, err := r.Get(propertyID)
	if err != nil {
		return err
	}
	prop.Issuer = issuer
	return nil
}

// EnableFreezing flags the property as freezable from liveBlock onwards.
func (r *Registry) EnableFreezing(propertyID uint32, liveBlock int64) error {
	prop, err := r.Get(propertyID)
	if err != nil {
		return err
	}
	prop.FreezingEnabled = true
	prop.FreezingLiveBlock = liveBlock
	return nil
}

// DisableFreezing clears the freezable flag and releases every frozen
// address of the property.
func (r *Registry) DisableFreezing(propertyID uint32) ([]string, error) {
	prop, err := r.Get(propertyID)
	if err != nil {
		return nil, err
	}
	prop.FreezingEnabled = false
	prop.FreezingLiveBlock = 0
	released := make([]string, 0, len(r.frozen[propertyID]))
	for addr := range r.frozen[propertyID] {
		released = append(released, addr)
	}
	sort.Strings(released)
	delete(r.frozen, propertyID)
	return released, nil
}

// FreezingLive reports whether freezing is enabled and past its wait
// period at the given block.
func (r *Registry) FreezingLive(propertyID uint32, block int64) bool {
	prop, ok := r.props[propertyID]
	return ok && prop.FreezingEnabled && block >= prop.FreezingLiveBlock
}

// Freeze marks the address as frozen for the property.
func (r *Registry) Freeze(propertyID uint32, address string) {
	byAddr, ok := r.frozen[propertyID]
	if !ok {
		byAddr = make(map[string]bool)
		r.frozen[propertyID] = byAddr
	}
	byAddr[address] = true
}

// Unfreeze clears the frozen mark.
func (r *Registry) Unfreeze(propertyID uint32, address string) {
	if byAddr, ok := r.frozen[propertyID]; ok {
		delete(byAddr, address)
		if len(byAddr) == 0 {
			delete(r.frozen, propertyID)
		}
	}
}

// IsFrozen reports whether the address is frozen for the property.
func (r *Registry) IsFrozen(propertyID uint32, address string) bool {
	return r.frozen[propertyID][address]
}

// FrozenAddresses returns the sorted frozen addresses of the property.
func (r *Registry) FrozenAddresses(propertyID uint32) []string {
	byAddr := r.frozen[propertyID]
	addrs := make([]string, 0, len(byAddr))
	for addr := range byAddr {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
