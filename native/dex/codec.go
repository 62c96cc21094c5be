package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type storedAccept struct {
	Buyer       string
	Amount      uint64
	AcceptBlock uint64
}

type storedOffer struct {
	TxID            common.Hash
	Seller          string
	PropertyID      uint32
	AmountForSale   uint64
	AmountDesired   uint64
	AmountRemaining uint64
	PaymentWindow   uint8
	MinimumFee      uint64
	Block           uint64
	Accepts         []storedAccept
}

// EncodeSection serialises every open offer and accept for the state
// snapshot.
func (e *Exchange) EncodeSection() ([]byte, error) {
	stored := make([]storedOffer, 0, len(e.offers))
	e.ForEachSorted(func(o Offer, accepts []Accept) {
		s := storedOffer{
			TxID:            o.TxID,
			Seller:          o.Seller,
			PropertyID:      o.PropertyID,
			AmountForSale:   uint64(o.AmountForSale),
			AmountDesired:   uint64(o.AmountDesired),
			AmountRemaining: uint64(o.AmountRemaining),
			PaymentWindow:   o.PaymentWindow,
			MinimumFee:      uint64(o.MinimumFee),
			Block:           uint64(o.Block),
		}
		for _, acc := range accepts {
			s.Accepts = append(s.Accepts, storedAccept{
				Buyer:       acc.Buyer,
				Amount:      uint64(acc.Amount),
				AcceptBlock: uint64(acc.AcceptBlock),
			})
		}
		stored = append(stored, s)
	})
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the exchange's contents with the snapshot's
// offers.
func (e *Exchange) DecodeSection(data []byte) error {
	var stored []storedOffer
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("dex: decode snapshot: %w", err)
	}
	e.offers = make(map[offerKey]*Offer)
	for _, s := range stored {
		offer := &Offer{
			TxID:            s.TxID,
			Seller:          s.Seller,
			PropertyID:      s.PropertyID,
			AmountForSale:   int64(s.AmountForSale),
			AmountDesired:   int64(s.AmountDesired),
			AmountRemaining: int64(s.AmountRemaining),
			PaymentWindow:   s.PaymentWindow,
			MinimumFee:      int64(s.MinimumFee),
			Block:           int64(s.Block),
			accepts:         make(map[string]*Accept),
		}
		for _, acc := range s.Accepts {
			offer.accepts[acc.Buyer] = &Accept{
				Buyer:       acc.Buyer,
				Amount:      int64(acc.Amount),
				AcceptBlock: int64(acc.AcceptBlock),
			}
		}
		e.offers[offerKey{offer.Seller, offer.PropertyID}] = offer
	}
	return nil
}

// SectionKey identifies the exchange's slot in the snapshot layout.
func (e *Exchange) SectionKey() []byte { return []byte("dex") }
