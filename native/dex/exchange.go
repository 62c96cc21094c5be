// Package dex implements the bilateral exchange: sell offers denominated
// against the settlement asset, consumed by accepts with a block-limited
// payment window.
package dex

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errNilFunds       = errors.New("dex: funds backend not configured")
	ErrDuplicateOffer = errors.New("dex: an open offer already exists for the address and property")
	ErrNoOffer        = errors.New("dex: no open offer")
	ErrNoAccept       = errors.New("dex: no open accept")
)

// Funds is the slice of the balance ledger the exchange needs.
type Funds interface {
	DebitReserved(address string, propertyID uint32, amount int64) error
	CreditAvailable(address string, propertyID uint32, amount int64) error
	Reserve(address string, propertyID uint32, amount int64) error
	ReleaseReserve(address string, propertyID uint32, amount int64) error
}

// Offer is an open sell offer. Original amounts are retained so the unit
// price derives from them no matter how much has been consumed.
type Offer struct {
	TxID   common.Hash
	Seller string

	PropertyID    uint32
	AmountForSale int64 // original
	AmountDesired int64 // original, in settlement units

	// AmountRemaining is the part neither accepted nor sold.
	AmountRemaining int64

	PaymentWindow uint8
	MinimumFee    int64
	Block         int64

	accepts map[string]*Accept
}

// Accept reserves part of an offer for one buyer until the payment window
// elapses.
type Accept struct {
	Buyer       string
	Amount      int64
	AcceptBlock int64
}

// DesiredRemaining reports the settlement units still expected for the
// unsold remainder, derived from the original amounts.
func (o *Offer) DesiredRemaining() int64 {
	product := new(big.Int).Mul(big.NewInt(o.AmountRemaining), big.NewInt(o.AmountDesired))
	return new(big.Int).Quo(product, big.NewInt(o.AmountForSale)).Int64()
}

type offerKey struct {
	seller     string
	propertyID uint32
}

// Exchange tracks every open offer and accept. Like the MetaDEx book it is
// covered by the engine's single writer lock.
type Exchange struct {
	funds  Funds
	offers map[offerKey]*Offer
}

// NewExchange returns an empty exchange backed by the ledger slice.
func NewExchange(funds Funds) *Exchange {
	return &Exchange{funds: funds, offers: make(map[offerKey]*Offer)}
}

// PostOffer opens a new sell offer, reserving the full amount for sale.
// One open offer per (seller, property) is allowed.
func (e *Exchange) PostOffer(offer Offer) error {
	if e.funds == nil {
		return errNilFunds
	}
	if offer.AmountForSale <= 0 || offer.AmountDesired <= 0 {
		return fmt.Errorf("dex: non-positive offer amounts")
	}
	key := offerKey{offer.Seller, offer.PropertyID}
	if _, open := e.offers[key]; open {
		return ErrDuplicateOffer
	}
	if err := e.funds.Reserve(offer.Seller, offer.PropertyID, offer.AmountForSale); err != nil {
		return err
	}
	offer.AmountRemaining = offer.AmountForSale
	offer.accepts = make(map[string]*Accept)
	e.offers[key] = &offer
	return nil
}

// UpdateOffer cancels the open offer and replaces it with the supplied one
// in a single step. Outstanding accepts of the old offer are dropped and
// their reservations released.
func (e *Exchange) UpdateOffer(offer Offer) error {
	if err := e.CancelOffer(offer.Seller, offer.PropertyID); err != nil {
		return err
	}
	return e.PostOffer(offer)
}

// CancelOffer closes the seller's open offer on the property, releasing
// every reservation still held for it, accepted portions included.
func (e *Exchange) CancelOffer(seller string, propertyID uint32) error {
	if e.funds == nil {
		return errNilFunds
	}
	key := offerKey{seller, propertyID}
	offer, open := e.offers[key]
	if !open {
		return ErrNoOffer
	}
	release := offer.AmountRemaining
	for _, acc := range offer.accepts {
		release += acc.Amount
	}
	if err := e.funds.ReleaseReserve(seller, propertyID, release); err != nil {
		return err
	}
	delete(e.offers, key)
	return nil
}

// AcceptOffer reserves up to amount units of the seller's open offer for
// the buyer and starts the payment clock. Requests beyond the unsold
// remainder are clamped to it. Returns the accepted amount.
func (e *Exchange) AcceptOffer(buyer, seller string, propertyID uint32, amount int64, block int64) (int64, error) {
	key := offerKey{seller, propertyID}
	offer, open := e.offers[key]
	if !open {
		return 0, ErrNoOffer
	}
	if amount <= 0 {
		return 0, fmt.Errorf("dex: non-positive accept amount")
	}
	if amount > offer.AmountRemaining {
		amount = offer.AmountRemaining
	}
	if amount == 0 {
		return 0, fmt.Errorf("dex: offer fully accepted")
	}
	offer.AmountRemaining -= amount
	if acc, ok := offer.accepts[buyer]; ok {
		acc.Amount += amount
		acc.AcceptBlock = block
	} else {
		offer.accepts[buyer] = &Accept{Buyer: buyer, Amount: amount, AcceptBlock: block}
	}
	return amount, nil
}

// NotifyPayment settles part of an accept after a settlement-asset payment
// of value units from buyer to seller was observed on chain. The purchased
// amount derives from the offer's original unit price; the integer-math
// feature selects round-up in the buyer's favor for the final unit.
func (e *Exchange) NotifyPayment(buyer, seller string, propertyID uint32, value int64, dexMath bool) (int64, error) {
	if e.funds == nil {
		return 0, errNilFunds
	}
	key := offerKey{seller, propertyID}
	offer, open := e.offers[key]
	if !open {
		return 0, ErrNoOffer
	}
	acc, ok := offer.accepts[buyer]
	if !ok {
		return 0, ErrNoAccept
	}
	if value <= 0 {
		return 0, fmt.Errorf("dex: non-positive payment")
	}

	product := new(big.Int).Mul(big.NewInt(value), big.NewInt(offer.AmountForSale))
	quo, rem := new(big.Int).QuoRem(product, big.NewInt(offer.AmountDesired), new(big.Int))
	purchased := quo.Int64()
	if dexMath && rem.Sign() != 0 {
		purchased++
	}
	if purchased > acc.Amount {
		purchased = acc.Amount
	}
	if purchased == 0 {
		return 0, nil
	}

	if err := e.funds.DebitReserved(seller, propertyID, purchased); err != nil {
		return 0, err
	}
	if err := e.funds.CreditAvailable(buyer, propertyID, purchased); err != nil {
		return 0, err
	}
	acc.Amount -= purchased
	if acc.Amount == 0 {
		delete(offer.accepts, buyer)
	}
	e.closeIfConsumed(key, offer)
	return purchased, nil
}

// ExpireAccepts returns the reservation of every accept whose payment
// window elapsed at the given block to its offer's unsold remainder.
func (e *Exchange) ExpireAccepts(block int64) {
	for key, offer := range e.offers {
		for buyer, acc := range offer.accepts {
			if block < acc.AcceptBlock+int64(offer.PaymentWindow) {
				continue
			}
			offer.AmountRemaining += acc.Amount
			delete(offer.accepts, buyer)
		}
		e.closeIfConsumed(key, offer)
	}
}

// closeIfConsumed removes an offer that has been fully sold and has no
// outstanding accepts.
func (e *Exchange) closeIfConsumed(key offerKey, offer *Offer) {
	if offer.AmountRemaining == 0 && len(offer.accepts) == 0 {
		delete(e.offers, key)
	}
}

// OfferOf returns a copy of the seller's open offer, if any.
func (e *Exchange) OfferOf(seller string, propertyID uint32) (Offer, bool) {
	offer, open := e.offers[offerKey{seller, propertyID}]
	if !open {
		return Offer{}, false
	}
	return *offer, true
}

// AcceptOf returns a copy of the buyer's open accept against the seller's
// offer, if any.
func (e *Exchange) AcceptOf(buyer, seller string, propertyID uint32) (Accept, bool) {
	offer, open := e.offers[offerKey{seller, propertyID}]
	if !open {
		return Accept{}, false
	}
	acc, ok := offer.accepts[buyer]
	if !ok {
		return Accept{}, false
	}
	return *acc, true
}

// Offers returns copies of every open offer, sorted by (seller, property)
// for deterministic output. An empty addressFilter matches everything.
func (e *Exchange) Offers(addressFilter string) []Offer {
	keys := e.sortedKeys()
	out := make([]Offer, 0, len(keys))
	for _, key := range keys {
		if addressFilter != "" && key.seller != addressFilter {
			continue
		}
		out = append(out, *e.offers[key])
	}
	return out
}

// ForEachSorted walks offers in (seller, property) order and, within an
// offer, accepts in buyer order. Feeds the consensus hash.
func (e *Exchange) ForEachSorted(fn func(o Offer, accepts []Accept)) {
	for _, key := range e.sortedKeys() {
		offer := e.offers[key]
		buyers := make([]string, 0, len(offer.accepts))
		for buyer := range offer.accepts {
			buyers = append(buyers, buyer)
		}
		sort.Strings(buyers)
		accepts := make([]Accept, 0, len(buyers))
		for _, buyer := range buyers {
			accepts = append(accepts, *offer.accepts[buyer])
		}
		fn(*offer, accepts)
	}
}

func (e *Exchange) sortedKeys() []offerKey {
	keys := make([]offerKey, 0, len(e.offers))
	for key := range e.offers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].seller != keys[j].seller {
			return keys[i].seller < keys[j].seller
		}
		return keys[i].propertyID < keys[j].propertyID
	})
	return keys
}
