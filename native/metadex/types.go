// Package metadex implements the continuous double-auction order book that
// matches arbitrary property pairs. Matching is strictly deterministic:
// prices are compared by integer cross multiplication, ties break by
// ascending (block, in-block position), and every fill executes at the
// resting order's price.
package metadex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is one resting or incoming MetaDEx order. AmountForSale and
// AmountDesired are the original amounts and never change; unit price is
// always derived from them so partial consumption cannot drift the price.
type Order struct {
	TxID    common.Hash
	Address string

	PropertyForSale uint32
	PropertyDesired uint32

	AmountForSale   int64
	AmountDesired   int64
	AmountRemaining int64

	// Execution priority within a price level.
	Block int64
	Idx   uint32
}

// price returns the order's unit price (desired per unit for sale) as an
// exact rational, represented by its numerator and denominator.
func (o *Order) price() (num, den *big.Int) {
	return big.NewInt(o.AmountDesired), big.NewInt(o.AmountForSale)
}

// comparePrice orders two orders on the same side of a book by ascending
// unit price, i.e. cheapest (best for the opposite side) first.
func comparePrice(a, b *Order) int {
	an, ad := a.price()
	bn, bd := b.price()
	left := new(big.Int).Mul(an, bd)
	right := new(big.Int).Mul(bn, ad)
	return left.Cmp(right)
}

// samePrice reports whether the order's unit price equals the price implied
// by the supplied original amounts.
func (o *Order) samePrice(amountForSale, amountDesired int64) bool {
	left := new(big.Int).Mul(big.NewInt(o.AmountDesired), big.NewInt(amountForSale))
	right := new(big.Int).Mul(big.NewInt(amountDesired), big.NewInt(o.AmountForSale))
	return left.Cmp(right) == 0
}

// before reports whether order a has execution priority over b at the same
// price level.
func before(a, b *Order) bool {
	if a.Block != b.Block {
		return a.Block < b.Block
	}
	return a.Idx < b.Idx
}

// Fill describes one executed trade between an incoming and a resting
// order.
type Fill struct {
	MakerTxID common.Hash
	Maker     string
	Taker     string

	// AmountTraded is in the maker's for-sale property, AmountPaid in the
	// taker's for-sale property. TradingFee, if any, was taken out of
	// AmountTraded before it reached the taker.
	AmountTraded int64
	AmountPaid   int64
	TradingFee   int64
}

// TradeResult summarises one incoming order's walk of the book.
type TradeResult struct {
	Fills []Fill

	// AmountRemaining is the unfilled part of the incoming order that was
	// left resting on the book; zero when fully filled.
	AmountRemaining int64
}

// Flags carries the activation-dependent behavior switches the engine
// cannot decide on its own.
type Flags struct {
	// DExMath selects round-up-in-the-maker's-favor payment amounts.
	DExMath bool
	// CollectFees diverts the trading fee on non-base pairs to the fee
	// cache.
	CollectFees bool
}
