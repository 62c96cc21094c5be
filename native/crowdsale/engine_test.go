package crowdsale

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// fakeState records credits and supply per property.
type fakeState struct {
	credits map[string]int64
	supply  map[uint32]int64
}

func newFakeState() *fakeState {
	return &fakeState{credits: make(map[string]int64), supply: make(map[uint32]int64)}
}

func (s *fakeState) CreditAvailable(address string, propertyID uint32, amount int64) error {
	s.credits[address] += amount
	return nil
}

func (s *fakeState) AdjustSupply(propertyID uint32, delta int64) error {
	s.supply[propertyID] += delta
	return nil
}

func txid(n byte) common.Hash { return common.BytesToHash([]byte{n}) }

func testSale() Crowdsale {
	return Crowdsale{
		PropertyID:      5,
		DesiredProperty: 1,
		Issuer:          "issuer",
		TokensPerUnit:   100,
		EarlyBirdBonus:  2,
		StartTime:       1_000_000,
		Deadline:        1_000_000 + 10*secondsPerWeek,
	}
}

func TestParticipateGrantWithWeeklyBonus(t *testing.T) {
	state := newFakeState()
	e := NewEngine(state)
	if err := e.Start(testSale()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Three full weeks in: 10 units * 100 tokens/unit * 106%.
	blockTime := int64(1_000_000 + 3*secondsPerWeek)
	entry, err := e.Participate(txid(1), "alice", 5, 10, blockTime, false)
	if err != nil {
		t.Fatalf("participate: %v", err)
	}
	if entry.Week != 3 {
		t.Fatalf("week = %d, want 3", entry.Week)
	}
	if entry.ParticipantTokens != 1060 {
		t.Fatalf("granted = %d, want 1060", entry.ParticipantTokens)
	}
	if entry.IssuerTokens != 0 {
		t.Fatalf("issuer bonus = %d, want 0", entry.IssuerTokens)
	}
	if state.credits["alice"] != 1060 || state.supply[5] != 1060 {
		t.Fatalf("state: %v / %v", state.credits, state.supply)
	}
}

func TestParticipateIssuerBonus(t *testing.T) {
	state := newFakeState()
	e := NewEngine(state)
	sale := testSale()
	sale.IssuerPercentage = 10
	if err := e.Start(sale); err != nil {
		t.Fatalf("start: %v", err)
	}

	entry, err := e.Participate(txid(1), "alice", 5, 10, sale.StartTime, true)
	if err != nil {
		t.Fatalf("participate: %v", err)
	}
	if entry.ParticipantTokens != 1000 || entry.IssuerTokens != 100 {
		t.Fatalf("entry = %+v", entry)
	}
	if state.credits["issuer"] != 100 {
		t.Fatalf("issuer credit = %d", state.credits["issuer"])
	}
	if state.supply[5] != 1100 {
		t.Fatalf("supply = %d, want 1100", state.supply[5])
	}

	saleState, _ := e.Get(5)
	if saleState.ParticipantTotal != 1000 || saleState.IssuerTotal != 100 {
		t.Fatalf("totals = %+v", saleState)
	}
}

func TestParticipateSaturationClosesSale(t *testing.T) {
	state := newFakeState()
	e := NewEngine(state)
	sale := testSale()
	sale.TokensPerUnit = math.MaxInt64 / 2
	if err := e.Start(sale); err != nil {
		t.Fatalf("start: %v", err)
	}

	entry, err := e.Participate(txid(1), "alice", 5, 100, sale.StartTime, false)
	if err != nil {
		t.Fatalf("participate: %v", err)
	}
	if entry.ParticipantTokens != math.MaxInt64 {
		t.Fatalf("granted = %d, want clamp to MaxInt64", entry.ParticipantTokens)
	}

	closed, _ := e.Get(5)
	if !closed.Closed || !closed.MaxTokens {
		t.Fatalf("sale not closed on saturation: %+v", closed)
	}
	if _, err := e.Participate(txid(2), "bob", 5, 1, sale.StartTime, false); !errors.Is(err, ErrNotActive) {
		t.Fatalf("participate after saturation err = %v", err)
	}
}

func TestCloseIssuerOnly(t *testing.T) {
	e := NewEngine(newFakeState())
	sale := testSale()
	if err := e.Start(sale); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.Close(5, "mallory", txid(9), sale.StartTime+1); !errors.Is(err, ErrNotIssuer) {
		t.Fatalf("close by stranger err = %v", err)
	}
	if err := e.Close(5, "issuer", txid(9), sale.StartTime+1); err != nil {
		t.Fatalf("close: %v", err)
	}

	closed, _ := e.Get(5)
	if !closed.Closed || !closed.ClosedEarly || closed.CloseTx != txid(9) {
		t.Fatalf("closed = %+v", closed)
	}
	if err := e.Close(5, "issuer", txid(10), sale.StartTime+2); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double close err = %v", err)
	}
}

func TestSweepDeadlines(t *testing.T) {
	e := NewEngine(newFakeState())
	sale := testSale()
	if err := e.Start(sale); err != nil {
		t.Fatalf("start: %v", err)
	}

	if closed := e.SweepDeadlines(sale.Deadline - 1); len(closed) != 0 {
		t.Fatalf("closed early: %v", closed)
	}
	closed := e.SweepDeadlines(sale.Deadline)
	if len(closed) != 1 || closed[0] != 5 {
		t.Fatalf("closed = %v", closed)
	}
	after, _ := e.Get(5)
	if !after.Closed || after.ClosedEarly || after.EndedTime != sale.Deadline {
		t.Fatalf("sale = %+v", after)
	}
}

func TestFindByPayment(t *testing.T) {
	e := NewEngine(newFakeState())
	sale := testSale()
	if err := e.Start(sale); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := e.FindByPayment("issuer", 1, sale.StartTime); got == nil || got.PropertyID != 5 {
		t.Fatalf("find = %+v", got)
	}
	if got := e.FindByPayment("issuer", 2, sale.StartTime); got != nil {
		t.Fatalf("wrong payment property matched: %+v", got)
	}
	if got := e.FindByPayment("stranger", 1, sale.StartTime); got != nil {
		t.Fatalf("wrong receiver matched: %+v", got)
	}
	if got := e.FindByPayment("issuer", 1, sale.Deadline); got != nil {
		t.Fatalf("expired sale matched: %+v", got)
	}
}
