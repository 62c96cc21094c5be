// Package crowdsale implements the per-property fundraising state machine:
// bonus computation, contribution recording, issuer bonus accrual and the
// three mutually exclusive close paths.
package crowdsale

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

const secondsPerWeek = 7 * 24 * 60 * 60

var (
	errNilState  = errors.New("crowdsale: state backend not configured")
	ErrNotActive = errors.New("crowdsale: not active")
	ErrNotIssuer = errors.New("crowdsale: sender is not the issuer")
)

// State is the slice of ledger and registry the engine mutates. Every token
// grant is paired with a supply adjustment to preserve conservation.
type State interface {
	CreditAvailable(address string, propertyID uint32, amount int64) error
	AdjustSupply(propertyID uint32, delta int64) error
}

// Contribution is one historical ledger entry, keyed by the contribution's
// transaction hash.
type Contribution struct {
	Contributor       string
	Amount            int64
	Week              int64
	ParticipantTokens int64
	IssuerTokens      int64
}

// Crowdsale is one active or closed fundraiser for the tokens of
// PropertyID, paid in DesiredProperty.
type Crowdsale struct {
	PropertyID      uint32
	DesiredProperty uint32
	Issuer          string

	TokensPerUnit    int64
	EarlyBirdBonus   uint8 // percent per elapsed week
	IssuerPercentage uint8

	StartTime int64
	Deadline  int64

	Closed      bool
	ClosedEarly bool
	MaxTokens   bool
	CloseTx     common.Hash
	EndedTime   int64

	ParticipantTotal int64
	IssuerTotal      int64

	ledger map[common.Hash]Contribution
}

// Ledger returns the historical contributions keyed by transaction hash.
// The map is a copy.
func (c *Crowdsale) Ledger() map[common.Hash]Contribution {
	out := make(map[common.Hash]Contribution, len(c.ledger))
	for k, v := range c.ledger {
		out[k] = v
	}
	return out
}

// Active reports whether contributions are still accepted at blockTime.
func (c *Crowdsale) Active(blockTime int64) bool {
	return !c.Closed && blockTime < c.Deadline
}

// Engine tracks every crowdsale, keyed by the property being sold.
type Engine struct {
	state State
	sales map[uint32]*Crowdsale
}

// NewEngine returns an empty crowdsale engine.
func NewEngine(state State) *Engine {
	return &Engine{state: state, sales: make(map[uint32]*Crowdsale)}
}

// Start registers a new crowdsale. The property id must be freshly issued
// by the caller.
func (e *Engine) Start(sale Crowdsale) error {
	if sale.TokensPerUnit <= 0 {
		return fmt.Errorf("crowdsale: non-positive token rate")
	}
	if _, exists := e.sales[sale.PropertyID]; exists {
		return fmt.Errorf("crowdsale: property %d already has a crowdsale", sale.PropertyID)
	}
	sale.ledger = make(map[common.Hash]Contribution)
	e.sales[sale.PropertyID] = &sale
	return nil
}

// FindByPayment locates the active crowdsale that a send of
// paymentProperty to receiver participates in. Returns nil when the send
// is an ordinary transfer.
func (e *Engine) FindByPayment(receiver string, paymentProperty uint32, blockTime int64) *Crowdsale {
	for _, id := range e.sortedIDs() {
		sale := e.sales[id]
		if sale.Issuer == receiver && sale.DesiredProperty == paymentProperty && sale.Active(blockTime) {
			return sale
		}
	}
	return nil
}

// grantFor computes the participant grant for a contribution of amount at
// blockTime: amount * tokensPerUnit * (100 + earlyBonus*weeksElapsed)/100,
// in 128-bit intermediates, clamped so the crowdsale's total grants never
// exceed the 63-bit amount space.
func (c *Crowdsale) grantFor(amount, blockTime int64) (granted int64, week int64, saturated bool) {
	week = (blockTime - c.StartTime) / secondsPerWeek
	if week < 0 {
		week = 0
	}
	bonus := big.NewInt(100 + int64(c.EarlyBirdBonus)*week)
	tokens := new(big.Int).Mul(big.NewInt(amount), big.NewInt(c.TokensPerUnit))
	tokens.Mul(tokens, bonus)
	tokens.Quo(tokens, big.NewInt(100))

	headroom := big.NewInt(math.MaxInt64 - c.ParticipantTotal - c.IssuerTotal)
	if tokens.Cmp(headroom) >= 0 {
		return headroom.Int64(), week, true
	}
	return tokens.Int64(), week, false
}

// Participate records a contribution, credits the participant and, when
// issuerBonus is set (the pre-grant-effects rule set), the issuer. A grant
// that saturates the token space closes the crowdsale with the max-tokens
// flag, the legacy close path that a later feature flag disables upstream.
func (e *Engine) Participate(txHash common.Hash, contributor string, propertyID uint32, amount, blockTime int64, issuerBonus bool) (Contribution, error) {
	if e.state == nil {
		return Contribution{}, errNilState
	}
	sale, ok := e.sales[propertyID]
	if !ok || !sale.Active(blockTime) {
		return Contribution{}, ErrNotActive
	}
	if amount <= 0 {
		return Contribution{}, fmt.Errorf("crowdsale: non-positive contribution")
	}

	granted, week, saturated := sale.grantFor(amount, blockTime)
	entry := Contribution{
		Contributor:       contributor,
		Amount:            amount,
		Week:              week,
		ParticipantTokens: granted,
	}
	if issuerBonus && sale.IssuerPercentage > 0 && !saturated {
		bonus := new(big.Int).Mul(big.NewInt(granted), big.NewInt(int64(sale.IssuerPercentage)))
		entry.IssuerTokens = bonus.Quo(bonus, big.NewInt(100)).Int64()
		if headroom := math.MaxInt64 - sale.ParticipantTotal - sale.IssuerTotal - granted; entry.IssuerTokens > headroom {
			entry.IssuerTokens = headroom
			saturated = true
		}
	}

	if err := e.state.CreditAvailable(contributor, propertyID, entry.ParticipantTokens); err != nil {
		return Contribution{}, err
	}
	if err := e.state.AdjustSupply(propertyID, entry.ParticipantTokens); err != nil {
		return Contribution{}, err
	}
	if entry.IssuerTokens > 0 {
		if err := e.state.CreditAvailable(sale.Issuer, propertyID, entry.IssuerTokens); err != nil {
			return Contribution{}, err
		}
		if err := e.state.AdjustSupply(propertyID, entry.IssuerTokens); err != nil {
			return Contribution{}, err
		}
	}

	sale.ParticipantTotal += entry.ParticipantTokens
	sale.IssuerTotal += entry.IssuerTokens
	sale.ledger[txHash] = entry

	if saturated {
		sale.Closed = true
		sale.MaxTokens = true
		sale.EndedTime = blockTime
	}
	return entry, nil
}

// Close processes an explicit close transaction from the issuer.
func (e *Engine) Close(propertyID uint32, issuer string, txHash common.Hash, blockTime int64) error {
	sale, ok := e.sales[propertyID]
	if !ok || sale.Closed {
		return ErrNotActive
	}
	if sale.Issuer != issuer {
		return ErrNotIssuer
	}
	sale.Closed = true
	sale.ClosedEarly = true
	sale.CloseTx = txHash
	sale.EndedTime = blockTime
	return nil
}

// SweepDeadlines closes every crowdsale whose deadline has passed at
// blockTime. Returns the property ids closed, ascending.
func (e *Engine) SweepDeadlines(blockTime int64) []uint32 {
	var closed []uint32
	for _, id := range e.sortedIDs() {
		sale := e.sales[id]
		if sale.Closed || blockTime < sale.Deadline {
			continue
		}
		sale.Closed = true
		sale.EndedTime = sale.Deadline
		closed = append(closed, id)
	}
	return closed
}

// Get returns a copy of the crowdsale for the property.
func (e *Engine) Get(propertyID uint32) (Crowdsale, bool) {
	sale, ok := e.sales[propertyID]
	if !ok {
		return Crowdsale{}, false
	}
	return *sale, true
}

// ForEachSorted walks every crowdsale in ascending property order and its
// contributions in ascending transaction-hash order. Feeds the consensus
// hash.
func (e *Engine) ForEachSorted(fn func(sale Crowdsale, txids []common.Hash)) {
	for _, id := range e.sortedIDs() {
		sale := e.sales[id]
		txids := make([]common.Hash, 0, len(sale.ledger))
		for txid := range sale.ledger {
			txids = append(txids, txid)
		}
		sort.Slice(txids, func(i, j int) bool {
			return txids[i].Hex() < txids[j].Hex()
		})
		fn(*sale, txids)
	}
}

// ContributionOf returns the ledger entry for the contribution transaction.
func (e *Engine) ContributionOf(propertyID uint32, txHash common.Hash) (Contribution, bool) {
	sale, ok := e.sales[propertyID]
	if !ok {
		return Contribution{}, false
	}
	entry, ok := sale.ledger[txHash]
	return entry, ok
}

func (e *Engine) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(e.sales))
	for id := range e.sales {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
