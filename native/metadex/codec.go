package metadex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type storedOrder struct {
	TxID            common.Hash
	Address         string
	PropertyForSale uint32
	PropertyDesired uint32
	AmountForSale   uint64
	AmountDesired   uint64
	AmountRemaining uint64
	Block           uint64
	Idx             uint32
}

// EncodeSection serialises every open order for the state snapshot, in
// deterministic book order.
func (b *Book) EncodeSection() ([]byte, error) {
	stored := make([]storedOrder, 0, b.OpenOrderCount())
	b.ForEachSorted(func(o Order) {
		stored = append(stored, storedOrder{
			TxID:            o.TxID,
			Address:         o.Address,
			PropertyForSale: o.PropertyForSale,
			PropertyDesired: o.PropertyDesired,
			AmountForSale:   uint64(o.AmountForSale),
			AmountDesired:   uint64(o.AmountDesired),
			AmountRemaining: uint64(o.AmountRemaining),
			Block:           uint64(o.Block),
			Idx:             o.Idx,
		})
	})
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the book's contents with the snapshot's orders.
func (b *Book) DecodeSection(data []byte) error {
	var stored []storedOrder
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("metadex: decode snapshot: %w", err)
	}
	b.orders = make(map[pair][]*Order)
	for _, s := range stored {
		b.insert(&Order{
			TxID:            s.TxID,
			Address:         s.Address,
			PropertyForSale: s.PropertyForSale,
			PropertyDesired: s.PropertyDesired,
			AmountForSale:   int64(s.AmountForSale),
			AmountDesired:   int64(s.AmountDesired),
			AmountRemaining: int64(s.AmountRemaining),
			Block:           int64(s.Block),
			Idx:             s.Idx,
		})
	}
	return nil
}

// SectionKey identifies the book's slot in the snapshot layout.
func (b *Book) SectionKey() []byte { return []byte("metadex") }
