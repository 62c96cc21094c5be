package metadex

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// fakeFunds is a two-bucket in-memory ledger slice. Reservations must be
// funded explicitly via reserve before trading.
type fakeFunds struct {
	available map[string]int64
	reserved  map[string]int64
}

func newFakeFunds() *fakeFunds {
	return &fakeFunds{available: make(map[string]int64), reserved: make(map[string]int64)}
}

func key(address string, propertyID uint32) string {
	return fmt.Sprintf("%s/%d", address, propertyID)
}

func (f *fakeFunds) reserve(address string, propertyID uint32, amount int64) {
	f.reserved[key(address, propertyID)] += amount
}

func (f *fakeFunds) CreditAvailable(address string, propertyID uint32, amount int64) error {
	f.available[key(address, propertyID)] += amount
	return nil
}

func (f *fakeFunds) DebitReserved(address string, propertyID uint32, amount int64) error {
	k := key(address, propertyID)
	if f.reserved[k] < amount {
		return fmt.Errorf("reserved %d < %d for %s", f.reserved[k], amount, k)
	}
	f.reserved[k] -= amount
	return nil
}

func (f *fakeFunds) ReleaseReserve(address string, propertyID uint32, amount int64) error {
	if err := f.DebitReserved(address, propertyID, amount); err != nil {
		return err
	}
	return f.CreditAvailable(address, propertyID, amount)
}

type fakeSink map[uint32]int64

func (s fakeSink) AddFee(propertyID uint32, amount int64) { s[propertyID] += amount }

func txid(n byte) common.Hash { return common.BytesToHash([]byte{n}) }

func mustTrade(t *testing.T, b *Book, funds *fakeFunds, o Order, flags Flags) *TradeResult {
	t.Helper()
	funds.reserve(o.Address, o.PropertyForSale, o.AmountForSale)
	result, err := b.Trade(o, flags)
	if err != nil {
		t.Fatalf("trade %s: %v", o.TxID.Hex(), err)
	}
	return result
}

func TestTradeExecutesAtMakerPrice(t *testing.T) {
	funds := newFakeFunds()
	b := NewBook(funds)

	// Maker offers 100 units of 3 at 0.1 units of 1 each.
	maker := Order{TxID: txid(1), Address: "maker", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 10, Block: 5}
	res := mustTrade(t, b, funds, maker, Flags{})
	if len(res.Fills) != 0 || res.AmountRemaining != 100 {
		t.Fatalf("maker result = %+v", res)
	}

	// Taker would accept as little as 50 units of 3 for its 10 units of 1,
	// but executes at the maker's better price and receives 100.
	taker := Order{TxID: txid(2), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
		AmountForSale: 10, AmountDesired: 50, Block: 6}
	res = mustTrade(t, b, funds, taker, Flags{})

	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	fill := res.Fills[0]
	if fill.AmountTraded != 100 || fill.AmountPaid != 10 {
		t.Fatalf("fill = %+v", fill)
	}
	if res.AmountRemaining != 0 {
		t.Fatalf("taker remainder = %d", res.AmountRemaining)
	}
	if funds.available[key("taker", 3)] != 100 || funds.available[key("maker", 1)] != 10 {
		t.Fatalf("proceeds: taker %d, maker %d",
			funds.available[key("taker", 3)], funds.available[key("maker", 1)])
	}
	if b.OpenOrderCount() != 0 {
		t.Fatalf("book not empty: %d", b.OpenOrderCount())
	}
}

func TestTradeBestPriceFirst(t *testing.T) {
	funds := newFakeFunds()
	b := NewBook(funds)

	expensive := Order{TxID: txid(1), Address: "expensive", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 20, Block: 5}
	cheap := Order{TxID: txid(2), Address: "cheap", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 10, Block: 6}
	mustTrade(t, b, funds, expensive, Flags{})
	mustTrade(t, b, funds, cheap, Flags{})

	taker := Order{TxID: txid(3), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
		AmountForSale: 25, AmountDesired: 100, Block: 7}
	res := mustTrade(t, b, funds, taker, Flags{})

	if len(res.Fills) != 2 {
		t.Fatalf("fills = %+v", res.Fills)
	}
	// The cheaper maker fills first and entirely, then the expensive one
	// absorbs the remaining 15 units of 1 at its own price.
	if res.Fills[0].Maker != "cheap" || res.Fills[0].AmountTraded != 100 || res.Fills[0].AmountPaid != 10 {
		t.Fatalf("first fill = %+v", res.Fills[0])
	}
	if res.Fills[1].Maker != "expensive" || res.Fills[1].AmountTraded != 75 || res.Fills[1].AmountPaid != 15 {
		t.Fatalf("second fill = %+v", res.Fills[1])
	}
	if res.AmountRemaining != 0 {
		t.Fatalf("taker remainder = %d", res.AmountRemaining)
	}
}

func TestTradeFIFOWithinPriceLevel(t *testing.T) {
	funds := newFakeFunds()
	b := NewBook(funds)

	second := Order{TxID: txid(1), Address: "second", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 10, Block: 6}
	first := Order{TxID: txid(2), Address: "first", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 10, Block: 5}
	mustTrade(t, b, funds, second, Flags{})
	mustTrade(t, b, funds, first, Flags{})

	taker := Order{TxID: txid(3), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
		AmountForSale: 10, AmountDesired: 100, Block: 7}
	res := mustTrade(t, b, funds, taker, Flags{})

	if len(res.Fills) != 1 || res.Fills[0].Maker != "first" {
		t.Fatalf("fills = %+v", res.Fills)
	}
	remaining := b.OrdersForPair(3, 1)
	if len(remaining) != 1 || remaining[0].Address != "second" {
		t.Fatalf("book = %+v", remaining)
	}
}

func TestTradePartialFillRests(t *testing.T) {
	funds := newFakeFunds()
	b := NewBook(funds)

	maker := Order{TxID: txid(1), Address: "maker", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 100, AmountDesired: 10, Block: 5}
	mustTrade(t, b, funds, maker, Flags{})

	taker := Order{TxID: txid(2), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
		AmountForSale: 20, AmountDesired: 100, Block: 6}
	res := mustTrade(t, b, funds, taker, Flags{})

	if res.AmountRemaining != 10 {
		t.Fatalf("remainder = %d, want 10", res.AmountRemaining)
	}
	rested := b.OrdersForPair(1, 3)
	if len(rested) != 1 {
		t.Fatalf("rested = %+v", rested)
	}
	// Original amounts are preserved on the resting remainder so the price
	// cannot drift.
	if rested[0].AmountForSale != 20 || rested[0].AmountDesired != 100 || rested[0].AmountRemaining != 10 {
		t.Fatalf("rested order = %+v", rested[0])
	}
	if funds.reserved[key("taker", 1)] != 10 {
		t.Fatalf("taker reservation = %d, want 10", funds.reserved[key("taker", 1)])
	}
}

func TestTradeRoundingModes(t *testing.T) {
	// Maker sells 3 units at 2/3 units of 1 each; buying one unit costs
	// 0.67 units, which floors to 0 before the integer-math update and
	// rounds up to 1 after it.
	for _, tc := range []struct {
		name    string
		dexMath bool
		wantPay int64
	}{
		{"floor", false, 0},
		{"round up", true, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			funds := newFakeFunds()
			b := NewBook(funds)

			maker := Order{TxID: txid(1), Address: "maker", PropertyForSale: 3, PropertyDesired: 1,
				AmountForSale: 3, AmountDesired: 2, Block: 5}
			mustTrade(t, b, funds, maker, Flags{DExMath: tc.dexMath})

			taker := Order{TxID: txid(2), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
				AmountForSale: 1, AmountDesired: 1, Block: 6}
			res := mustTrade(t, b, funds, taker, Flags{DExMath: tc.dexMath})

			if len(res.Fills) == 0 {
				t.Fatal("no fill")
			}
			if got := res.Fills[0].AmountPaid; got != tc.wantPay {
				t.Fatalf("paid = %d, want %d", got, tc.wantPay)
			}
		})
	}
}

func TestTradeFeeOnNonBasePairs(t *testing.T) {
	funds := newFakeFunds()
	sink := fakeSink{}
	b := NewBook(funds)
	b.SetFeeSink(sink)

	maker := Order{TxID: txid(1), Address: "maker", PropertyForSale: 3, PropertyDesired: 4,
		AmountForSale: 4000, AmountDesired: 4000, Block: 5}
	mustTrade(t, b, funds, maker, Flags{CollectFees: true})

	taker := Order{TxID: txid(2), Address: "taker", PropertyForSale: 4, PropertyDesired: 3,
		AmountForSale: 4000, AmountDesired: 4000, Block: 6}
	res := mustTrade(t, b, funds, taker, Flags{CollectFees: true})

	// 0.05% of the 4000 traded units.
	if res.Fills[0].TradingFee != 2 {
		t.Fatalf("fee = %d, want 2", res.Fills[0].TradingFee)
	}
	if funds.available[key("taker", 3)] != 3998 {
		t.Fatalf("taker proceeds = %d, want 3998", funds.available[key("taker", 3)])
	}
	if sink[3] != 2 {
		t.Fatalf("sink = %v", sink)
	}
}

func TestTradeNoFeeOnBasePairs(t *testing.T) {
	funds := newFakeFunds()
	sink := fakeSink{}
	b := NewBook(funds)
	b.SetFeeSink(sink)

	maker := Order{TxID: txid(1), Address: "maker", PropertyForSale: 3, PropertyDesired: 1,
		AmountForSale: 4000, AmountDesired: 4000, Block: 5}
	mustTrade(t, b, funds, maker, Flags{CollectFees: true})

	taker := Order{TxID: txid(2), Address: "taker", PropertyForSale: 1, PropertyDesired: 3,
		AmountForSale: 4000, AmountDesired: 4000, Block: 6}
	res := mustTrade(t, b, funds, taker, Flags{CollectFees: true})

	if res.Fills[0].TradingFee != 0 || len(sink) != 0 {
		t.Fatalf("fee charged on base pair: %+v, sink %v", res.Fills[0], sink)
	}
}

func TestTradeRejectsBadPairs(t *testing.T) {
	b := NewBook(newFakeFunds())

	if _, err := b.Trade(Order{PropertyForSale: 3, PropertyDesired: 3,
		AmountForSale: 1, AmountDesired: 1}, Flags{}); err != ErrSameProperty {
		t.Fatalf("same property err = %v", err)
	}
	if _, err := b.Trade(Order{PropertyForSale: 3, PropertyDesired: 0x80000005,
		AmountForSale: 1, AmountDesired: 1}, Flags{}); err != ErrCrossEcosystem {
		t.Fatalf("cross ecosystem err = %v", err)
	}
}

func TestCancelScopes(t *testing.T) {
	funds := newFakeFunds()
	b := NewBook(funds)

	orders := []Order{
		{TxID: txid(1), Address: "alice", PropertyForSale: 3, PropertyDesired: 1, AmountForSale: 10, AmountDesired: 5, Block: 1},
		{TxID: txid(2), Address: "alice", PropertyForSale: 3, PropertyDesired: 1, AmountForSale: 10, AmountDesired: 7, Block: 2},
		{TxID: txid(3), Address: "alice", PropertyForSale: 4, PropertyDesired: 1, AmountForSale: 10, AmountDesired: 5, Block: 3},
		{TxID: txid(4), Address: "bob", PropertyForSale: 3, PropertyDesired: 1, AmountForSale: 10, AmountDesired: 5, Block: 4},
	}
	for _, o := range orders {
		mustTrade(t, b, funds, o, Flags{})
	}

	// Exact price level: only alice's 10-for-5 order on (3, 1).
	cancelled, err := b.CancelAtPrice("alice", 3, 1, 10, 5)
	if err != nil {
		t.Fatalf("cancel at price: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].Order.TxID != txid(1) || cancelled[0].Released != 10 {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if funds.available[key("alice", 3)] != 10 {
		t.Fatalf("release not credited: %d", funds.available[key("alice", 3)])
	}

	// Whole pair: alice's remaining (3, 1) order, not her (4, 1) order and
	// not bob's.
	cancelled, err = b.CancelPair("alice", 3, 1)
	if err != nil {
		t.Fatalf("cancel pair: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].Order.TxID != txid(2) {
		t.Fatalf("cancelled = %+v", cancelled)
	}

	// Ecosystem: sweeps alice's last order; bob's survives.
	cancelled, err = b.CancelEcosystem("alice", 1)
	if err != nil {
		t.Fatalf("cancel ecosystem: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].Order.TxID != txid(3) {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if got := len(b.OrdersByAddress("bob")); got != 1 {
		t.Fatalf("bob's orders = %d", got)
	}
}
