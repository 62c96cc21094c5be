package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type storedBalance struct {
	Address    string
	PropertyID uint32
	Available  uint64
	Reserved   uint64
	Frozen     uint64
}

// EncodeSection serialises the tally in address-then-property order.
func (l *Ledger) EncodeSection() ([]byte, error) {
	var stored []storedBalance
	l.ForEachSorted(func(address string, propertyID uint32, bal Balance) {
		stored = append(stored, storedBalance{
			Address:    address,
			PropertyID: propertyID,
			Available:  uint64(bal.Available),
			Reserved:   uint64(bal.Reserved),
			Frozen:     uint64(bal.Frozen),
		})
	})
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the tally with the snapshot's entries.
func (l *Ledger) DecodeSection(data []byte) error {
	var stored []storedBalance
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("state: decode ledger snapshot: %w", err)
	}
	entries := make(map[string]map[uint32]Balance)
	for _, s := range stored {
		byProp, ok := entries[s.Address]
		if !ok {
			byProp = make(map[uint32]Balance)
			entries[s.Address] = byProp
		}
		byProp[s.PropertyID] = Balance{
			Available: int64(s.Available),
			Reserved:  int64(s.Reserved),
			Frozen:    int64(s.Frozen),
		}
	}
	l.Reset(entries)
	return nil
}

// SectionKey identifies the ledger's slot in the snapshot layout.
func (l *Ledger) SectionKey() []byte { return []byte("ledger") }

type storedProperty struct {
	ID          uint32
	Name        string
	Category    string
	Subcategory string
	URL         string
	Data        string

	Divisible bool
	Issuer    string

	Fixed           bool
	Managed         bool
	CrowdsaleOrigin bool

	FreezingEnabled   bool
	FreezingLiveBlock uint64

	CreationTx  common.Hash
	TotalSupply uint64

	Frozen []string
}

type storedRegistry struct {
	NextMain   uint32
	NextTest   uint32
	Properties []storedProperty
}

// EncodeSection serialises every property record, supply and frozen set in
// ascending id order.
func (r *Registry) EncodeSection() ([]byte, error) {
	stored := storedRegistry{NextMain: r.nextMain, NextTest: r.nextTest}
	for _, id := range r.List() {
		prop := r.props[id]
		stored.Properties = append(stored.Properties, storedProperty{
			ID:                prop.ID,
			Name:              prop.Name,
			Category:          prop.Category,
			Subcategory:       prop.Subcategory,
			URL:               prop.URL,
			Data:              prop.Data,
			Divisible:         prop.Divisible,
			Issuer:            prop.Issuer,
			Fixed:             prop.Fixed,
			Managed:           prop.Managed,
			CrowdsaleOrigin:   prop.CrowdsaleOrigin,
			FreezingEnabled:   prop.FreezingEnabled,
			FreezingLiveBlock: uint64(prop.FreezingLiveBlock),
			CreationTx:        prop.CreationTx,
			TotalSupply:       uint64(prop.TotalSupply),
			Frozen:            r.FrozenAddresses(id),
		})
	}
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the registry with the snapshot's records.
func (r *Registry) DecodeSection(data []byte) error {
	var stored storedRegistry
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("state: decode registry snapshot: %w", err)
	}
	r.nextMain = stored.NextMain
	r.nextTest = stored.NextTest
	r.props = make(map[uint32]*Property, len(stored.Properties))
	r.frozen = make(map[uint32]map[string]bool)
	for _, s := range stored.Properties {
		r.props[s.ID] = &Property{
			ID:                s.ID,
			Name:              s.Name,
			Category:          s.Category,
			Subcategory:       s.Subcategory,
			URL:               s.URL,
			Data:              s.Data,
			Divisible:         s.Divisible,
			Issuer:            s.Issuer,
			Fixed:             s.Fixed,
			Managed:           s.Managed,
			CrowdsaleOrigin:   s.CrowdsaleOrigin,
			FreezingEnabled:   s.FreezingEnabled,
			FreezingLiveBlock: int64(s.FreezingLiveBlock),
			CreationTx:        s.CreationTx,
			TotalSupply:       int64(s.TotalSupply),
		}
		for _, addr := range s.Frozen {
			r.Freeze(s.ID, addr)
		}
	}
	return nil
}

// SectionKey identifies the registry's slot in the snapshot layout.
func (r *Registry) SectionKey() []byte { return []byte("registry") }
