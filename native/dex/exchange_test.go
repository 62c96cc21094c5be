package dex

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// fakeFunds tracks available and reserved balances per (address, property).
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

func (f *fakeFunds) Reserve(address string, propertyID uint32, amount int64) error {
	k := key(address, propertyID)
	if f.available[k] < amount {
		return fmt.Errorf("available %d < %d for %s", f.available[k], amount, k)
	}
	f.available[k] -= amount
	f.reserved[k] += amount
	return nil
}

func (f *fakeFunds) ReleaseReserve(address string, propertyID uint32, amount int64) error {
	if err := f.DebitReserved(address, propertyID, amount); err != nil {
		return err
	}
	return f.CreditAvailable(address, propertyID, amount)
}

func sellOffer(seller string, forSale, desired int64, window uint8) Offer {
	return Offer{
		TxID:          common.BytesToHash([]byte(seller)),
		Seller:        seller,
		PropertyID:    3,
		AmountForSale: forSale,
		AmountDesired: desired,
		PaymentWindow: window,
		Block:         100,
	}
}

func fundedExchange(t *testing.T, seller string, balance int64) (*Exchange, *fakeFunds) {
	t.Helper()
	funds := newFakeFunds()
	if err := funds.CreditAvailable(seller, 3, balance); err != nil {
		t.Fatalf("fund: %v", err)
	}
	return NewExchange(funds), funds
}

func TestPostOfferReservesFunds(t *testing.T) {
	e, funds := fundedExchange(t, "alice", 100)

	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if funds.reserved[key("alice", 3)] != 100 || funds.available[key("alice", 3)] != 0 {
		t.Fatalf("reservation: %v / %v", funds.reserved, funds.available)
	}

	if err := e.PostOffer(sellOffer("alice", 1, 1, 10)); !errors.Is(err, ErrDuplicateOffer) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestPostOfferInsufficientFunds(t *testing.T) {
	e, _ := fundedExchange(t, "alice", 50)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err == nil {
		t.Fatal("underfunded offer accepted")
	}
	if _, open := e.OfferOf("alice", 3); open {
		t.Fatal("failed offer left open")
	}
}

func TestCancelOfferReleasesAccepts(t *testing.T) {
	e, funds := fundedExchange(t, "alice", 100)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := e.AcceptOffer("bob", "alice", 3, 30, 105); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.CancelOffer("alice", 3); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Both the unsold remainder and the accepted portion come back.
	if funds.available[key("alice", 3)] != 100 || funds.reserved[key("alice", 3)] != 0 {
		t.Fatalf("release: %v / %v", funds.available, funds.reserved)
	}
	if err := e.CancelOffer("alice", 3); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestAcceptClampsToRemainder(t *testing.T) {
	e, _ := fundedExchange(t, "alice", 100)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}

	accepted, err := e.AcceptOffer("bob", "alice", 3, 250, 105)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted != 100 {
		t.Fatalf("accepted = %d, want 100", accepted)
	}

	if _, err := e.AcceptOffer("carol", "alice", 3, 1, 105); err == nil {
		t.Fatal("accept against a fully accepted offer succeeded")
	}
}

func TestNotifyPaymentSettles(t *testing.T) {
	e, funds := fundedExchange(t, "alice", 100)
	// 100 units for 50 settlement units: 2 units per settlement unit.
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := e.AcceptOffer("bob", "alice", 3, 100, 105); err != nil {
		t.Fatalf("accept: %v", err)
	}

	purchased, err := e.NotifyPayment("bob", "alice", 3, 20, false)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if purchased != 40 {
		t.Fatalf("purchased = %d, want 40", purchased)
	}
	if funds.available[key("bob", 3)] != 40 {
		t.Fatalf("bob balance = %d", funds.available[key("bob", 3)])
	}
	acc, ok := e.AcceptOf("bob", "alice", 3)
	if !ok || acc.Amount != 60 {
		t.Fatalf("accept = %+v ok=%v", acc, ok)
	}

	// Paying the rest consumes the accept and closes the offer.
	if _, err := e.NotifyPayment("bob", "alice", 3, 30, false); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if _, open := e.OfferOf("alice", 3); open {
		t.Fatal("consumed offer still open")
	}
}

func TestNotifyPaymentRounding(t *testing.T) {
	// 3 units for 2 settlement units; paying 1 buys 1.5 units.
	for _, tc := range []struct {
		name    string
		dexMath bool
		want    int64
	}{
		{"floor", false, 1},
		{"round up", true, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := fundedExchange(t, "alice", 3)
			if err := e.PostOffer(sellOffer("alice", 3, 2, 10)); err != nil {
				t.Fatalf("post: %v", err)
			}
			if _, err := e.AcceptOffer("bob", "alice", 3, 3, 105); err != nil {
				t.Fatalf("accept: %v", err)
			}
			purchased, err := e.NotifyPayment("bob", "alice", 3, 1, tc.dexMath)
			if err != nil {
				t.Fatalf("payment: %v", err)
			}
			if purchased != tc.want {
				t.Fatalf("purchased = %d, want %d", purchased, tc.want)
			}
		})
	}
}

func TestNotifyPaymentClampsToAccept(t *testing.T) {
	e, _ := fundedExchange(t, "alice", 100)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := e.AcceptOffer("bob", "alice", 3, 10, 105); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Overpaying cannot buy past the accepted amount.
	purchased, err := e.NotifyPayment("bob", "alice", 3, 50, false)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if purchased != 10 {
		t.Fatalf("purchased = %d, want 10", purchased)
	}
}

func TestExpireAccepts(t *testing.T) {
	e, _ := fundedExchange(t, "alice", 100)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := e.AcceptOffer("bob", "alice", 3, 30, 105); err != nil {
		t.Fatalf("accept: %v", err)
	}

	e.ExpireAccepts(114) // window of 10 from block 105 is still open
	offer, _ := e.OfferOf("alice", 3)
	if offer.AmountRemaining != 70 {
		t.Fatalf("remaining = %d, want 70", offer.AmountRemaining)
	}

	e.ExpireAccepts(115) // elapsed
	offer, _ = e.OfferOf("alice", 3)
	if offer.AmountRemaining != 100 {
		t.Fatalf("remaining after expiry = %d, want 100", offer.AmountRemaining)
	}
	if _, ok := e.AcceptOf("bob", "alice", 3); ok {
		t.Fatal("expired accept still open")
	}
}

func TestUpdateOfferReplaces(t *testing.T) {
	e, funds := fundedExchange(t, "alice", 150)
	if err := e.PostOffer(sellOffer("alice", 100, 50, 10)); err != nil {
		t.Fatalf("post: %v", err)
	}

	updated := sellOffer("alice", 150, 60, 20)
	if err := e.UpdateOffer(updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	offer, ok := e.OfferOf("alice", 3)
	if !ok || offer.AmountForSale != 150 || offer.AmountRemaining != 150 {
		t.Fatalf("offer = %+v ok=%v", offer, ok)
	}
	if funds.reserved[key("alice", 3)] != 150 {
		t.Fatalf("reservation = %d", funds.reserved[key("alice", 3)])
	}
}
