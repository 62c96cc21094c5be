package crowdsale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type storedContribution struct {
	TxID              common.Hash
	Contributor       string
	Amount            uint64
	Week              uint64
	ParticipantTokens uint64
	IssuerTokens      uint64
}

type storedCrowdsale struct {
	PropertyID       uint32
	DesiredProperty  uint32
	Issuer           string
	TokensPerUnit    uint64
	EarlyBirdBonus   uint8
	IssuerPercentage uint8
	StartTime        uint64
	Deadline         uint64
	Closed           bool
	ClosedEarly      bool
	MaxTokens        bool
	CloseTx          common.Hash
	EndedTime        uint64
	ParticipantTotal uint64
	IssuerTotal      uint64
	Ledger           []storedContribution
}

// EncodeSection serialises every crowdsale and its contribution history for
// the state snapshot.
func (e *Engine) EncodeSection() ([]byte, error) {
	stored := make([]storedCrowdsale, 0, len(e.sales))
	e.ForEachSorted(func(sale Crowdsale, txids []common.Hash) {
		src := e.sales[sale.PropertyID]
		s := storedCrowdsale{
			PropertyID:       sale.PropertyID,
			DesiredProperty:  sale.DesiredProperty,
			Issuer:           sale.Issuer,
			TokensPerUnit:    uint64(sale.TokensPerUnit),
			EarlyBirdBonus:   sale.EarlyBirdBonus,
			IssuerPercentage: sale.IssuerPercentage,
			StartTime:        uint64(sale.StartTime),
			Deadline:         uint64(sale.Deadline),
			Closed:           sale.Closed,
			ClosedEarly:      sale.ClosedEarly,
			MaxTokens:        sale.MaxTokens,
			CloseTx:          sale.CloseTx,
			EndedTime:        uint64(sale.EndedTime),
			ParticipantTotal: uint64(sale.ParticipantTotal),
			IssuerTotal:      uint64(sale.IssuerTotal),
		}
		for _, txid := range txids {
			entry := src.ledger[txid]
			s.Ledger = append(s.Ledger, storedContribution{
				TxID:              txid,
				Contributor:       entry.Contributor,
				Amount:            uint64(entry.Amount),
				Week:              uint64(entry.Week),
				ParticipantTokens: uint64(entry.ParticipantTokens),
				IssuerTokens:      uint64(entry.IssuerTokens),
			})
		}
		stored = append(stored, s)
	})
	return rlp.EncodeToBytes(stored)
}

// DecodeSection replaces the engine's crowdsales with the snapshot's.
func (e *Engine) DecodeSection(data []byte) error {
	var stored []storedCrowdsale
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("crowdsale: decode snapshot: %w", err)
	}
	e.sales = make(map[uint32]*Crowdsale)
	for _, s := range stored {
		sale := &Crowdsale{
			PropertyID:       s.PropertyID,
			DesiredProperty:  s.DesiredProperty,
			Issuer:           s.Issuer,
			TokensPerUnit:    int64(s.TokensPerUnit),
			EarlyBirdBonus:   s.EarlyBirdBonus,
			IssuerPercentage: s.IssuerPercentage,
			StartTime:        int64(s.StartTime),
			Deadline:         int64(s.Deadline),
			Closed:           s.Closed,
			ClosedEarly:      s.ClosedEarly,
			MaxTokens:        s.MaxTokens,
			CloseTx:          s.CloseTx,
			EndedTime:        int64(s.EndedTime),
			ParticipantTotal: int64(s.ParticipantTotal),
			IssuerTotal:      int64(s.IssuerTotal),
			ledger:           make(map[common.Hash]Contribution, len(s.Ledger)),
		}
		for _, entry := range s.Ledger {
			sale.ledger[entry.TxID] = Contribution{
				Contributor:       entry.Contributor,
				Amount:            int64(entry.Amount),
				Week:              int64(entry.Week),
				ParticipantTokens: int64(entry.ParticipantTokens),
				IssuerTokens:      int64(entry.IssuerTokens),
			}
		}
		e.sales[sale.PropertyID] = sale
	}
	return nil
}

// SectionKey identifies the engine's slot in the snapshot layout.
func (e *Engine) SectionKey() []byte { return []byte("crowdsale") }
