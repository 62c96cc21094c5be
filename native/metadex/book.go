package metadex

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"tokenlayer/core/types"
)

var (
	errNilFunds       = errors.New("metadex: funds backend not configured")
	ErrSameProperty   = errors.New("metadex: same property on both sides")
	ErrCrossEcosystem = errors.New("metadex: properties of different ecosystems")
)

// Funds is the slice of the balance ledger the matching engine needs. The
// ledger owns every reservation; orders only carry identities and amounts.
type Funds interface {
	// CreditAvailable adds settled proceeds to an address.
	CreditAvailable(address string, propertyID uint32, amount int64) error
	// DebitReserved consumes part of an order's reservation.
	DebitReserved(address string, propertyID uint32, amount int64) error
	// ReleaseReserve returns an unneeded reservation to available.
	ReleaseReserve(address string, propertyID uint32, amount int64) error
}

// FeeSink receives trading fees. Wired to the fee cache by the engine.
type FeeSink interface {
	AddFee(propertyID uint32, amount int64)
}

type pair struct {
	forSale uint32
	desired uint32
}

// Book holds every open order, bucketed by (property for sale, property
// desired) and kept sorted by price then (block, idx). It performs no
// locking of its own: the engine's single writer lock covers it.
type Book struct {
	funds  Funds
	fees   FeeSink
	orders map[pair][]*Order
}

// NewBook returns an empty order book backed by the supplied ledger slice.
func NewBook(funds Funds) *Book {
	return &Book{funds: funds, orders: make(map[pair][]*Order)}
}

// SetFeeSink wires the trading-fee destination. A nil sink burns fees,
// which is never wanted outside of tests.
func (b *Book) SetFeeSink(fees FeeSink) { b.fees = fees }

func (b *Book) insert(o *Order) {
	key := pair{o.PropertyForSale, o.PropertyDesired}
	side := b.orders[key]
	pos := sort.Search(len(side), func(i int) bool {
		if c := comparePrice(side[i], o); c != 0 {
			return c > 0
		}
		return !before(side[i], o)
	})
	side = append(side, nil)
	copy(side[pos+1:], side[pos:])
	side[pos] = o
	b.orders[key] = side
}

func (b *Book) remove(key pair, pos int) {
	side := b.orders[key]
	side = append(side[:pos], side[pos+1:]...)
	if len(side) == 0 {
		delete(b.orders, key)
	} else {
		b.orders[key] = side
	}
}

// Trade matches the incoming order against the opposite side of the book
// and rests any unfilled remainder. The incoming order's full AmountForSale
// must already be reserved; fills consume the reservation and the resting
// remainder stays reserved.
func (b *Book) Trade(incoming Order, flags Flags) (*TradeResult, error) {
	if b.funds == nil {
		return nil, errNilFunds
	}
	if incoming.PropertyForSale == incoming.PropertyDesired {
		return nil, ErrSameProperty
	}
	if !types.SameEcosystem(incoming.PropertyForSale, incoming.PropertyDesired) {
		return nil, ErrCrossEcosystem
	}
	if incoming.AmountForSale <= 0 || incoming.AmountDesired <= 0 {
		return nil, fmt.Errorf("metadex: non-positive order amounts")
	}

	incoming.AmountRemaining = incoming.AmountForSale
	result := &TradeResult{}
	opposite := pair{incoming.PropertyDesired, incoming.PropertyForSale}

	for incoming.AmountRemaining > 0 {
		side := b.orders[opposite]
		if len(side) == 0 {
			break
		}
		maker := side[0]
		if !acceptable(maker, &incoming) {
			break
		}

		couldBuy := amountAtPrice(incoming.AmountRemaining, maker.AmountForSale, maker.AmountDesired, false)
		if couldBuy > maker.AmountRemaining {
			couldBuy = maker.AmountRemaining
		}
		if couldBuy == 0 {
			// Too little left to buy a single unit at the best price;
			// worse prices cannot yield more.
			break
		}
		wouldPay := amountAtPrice(couldBuy, maker.AmountDesired, maker.AmountForSale, flags.DExMath)

		fee := int64(0)
		if flags.CollectFees && nonBasePair(incoming.PropertyForSale, incoming.PropertyDesired) {
			fee = couldBuy / 2000 // 0.05% of the traded amount
		}

		if err := b.settle(maker, &incoming, couldBuy, wouldPay, fee); err != nil {
			return nil, err
		}

		result.Fills = append(result.Fills, Fill{
			MakerTxID:    maker.TxID,
			Maker:        maker.Address,
			Taker:        incoming.Address,
			AmountTraded: couldBuy,
			AmountPaid:   wouldPay,
			TradingFee:   fee,
		})

		maker.AmountRemaining -= couldBuy
		incoming.AmountRemaining -= wouldPay
		if maker.AmountRemaining == 0 {
			b.remove(opposite, 0)
		}
	}

	if incoming.AmountRemaining > 0 {
		rest := incoming
		b.insert(&rest)
	}
	result.AmountRemaining = incoming.AmountRemaining
	return result, nil
}

// acceptable reports whether the maker's asking price is within what the
// incoming order offers: maker.desired/maker.forsale <=
// incoming.forsale/incoming.desired, compared exactly.
func acceptable(maker, incoming *Order) bool {
	left := new(big.Int).Mul(big.NewInt(maker.AmountDesired), big.NewInt(incoming.AmountDesired))
	right := new(big.Int).Mul(big.NewInt(maker.AmountForSale), big.NewInt(incoming.AmountForSale))
	return left.Cmp(right) <= 0
}

// amountAtPrice converts amount through the ratio num/den using 128-bit
// intermediates. roundUp selects the maker-favoring rounding introduced by
// the integer-math feature; otherwise the result is floored.
func amountAtPrice(amount, num, den int64, roundUp bool) int64 {
	product := new(big.Int).Mul(big.NewInt(amount), big.NewInt(num))
	quo, rem := new(big.Int).QuoRem(product, big.NewInt(den), new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo.Int64()
}

func nonBasePair(a, b uint32) bool {
	return a != types.PropertyIDBase && a != types.PropertyIDTestBase &&
		b != types.PropertyIDBase && b != types.PropertyIDTestBase
}

// settle moves the two legs of a fill through the ledger. The maker pays
// couldBuy of their for-sale property out of reserve (fee deducted before
// it reaches the taker); the taker pays wouldPay out of reserve to the
// maker.
func (b *Book) settle(maker, taker *Order, couldBuy, wouldPay, fee int64) error {
	if err := b.funds.DebitReserved(maker.Address, maker.PropertyForSale, couldBuy); err != nil {
		return fmt.Errorf("metadex: maker reserve: %w", err)
	}
	if err := b.funds.CreditAvailable(taker.Address, maker.PropertyForSale, couldBuy-fee); err != nil {
		return fmt.Errorf("metadex: taker proceeds: %w", err)
	}
	if fee > 0 && b.fees != nil {
		b.fees.AddFee(maker.PropertyForSale, fee)
	}
	if err := b.funds.DebitReserved(taker.Address, taker.PropertyForSale, wouldPay); err != nil {
		return fmt.Errorf("metadex: taker reserve: %w", err)
	}
	if err := b.funds.CreditAvailable(maker.Address, taker.PropertyForSale, wouldPay); err != nil {
		return fmt.Errorf("metadex: maker proceeds: %w", err)
	}
	return nil
}
