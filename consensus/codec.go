package consensus

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// persistedFeatures lists every feature id whose activation height the
// gate can rewrite, in snapshot order.
var persistedFeatures = []uint16{
	FeatureMetaDEx,
	FeatureBetting,
	FeatureGrantEffects,
	FeatureDExMath,
	FeatureSendAll,
	FeatureCrowdCrossover,
	FeatureTradeAllPairs,
	FeatureFees,
	FeatureSendToOwnersV1,
	FeatureFreezeNotice,
}

type storedFeature struct {
	FeatureID uint16
	Block     uint64
}

type storedPending struct {
	FeatureID        uint16
	ActivationBlock  uint64
	MinClientVersion uint32
	Name             string
}

type storedCompleted struct {
	FeatureID       uint16
	ActivationBlock uint64
	Name            string
}

type storedAlert struct {
	Source string
	Type   uint16
	Expiry uint64
	Text   string
}

type storedGate struct {
	Features  []storedFeature
	Pending   []storedPending
	Completed []storedCompleted
	Alerts    []storedAlert
}

// EncodeSection serialises the gate-mutable activation heights, the
// pending and completed activation lists and the live alerts for the
// state snapshot. The rest of Params is fixed at construction and does
// not need persisting.
func (g *Gate) EncodeSection() ([]byte, error) {
	stored := storedGate{}
	for _, id := range persistedFeatures {
		stored.Features = append(stored.Features, storedFeature{
			FeatureID: id,
			Block:     uint64(*g.featureSlot(id)),
		})
	}
	for _, p := range g.pending {
		stored.Pending = append(stored.Pending, storedPending{
			FeatureID:        p.FeatureID,
			ActivationBlock:  uint64(p.ActivationBlock),
			MinClientVersion: p.MinClientVersion,
			Name:             p.Name,
		})
	}
	for _, c := range g.completed {
		stored.Completed = append(stored.Completed, storedCompleted{
			FeatureID:       c.FeatureID,
			ActivationBlock: uint64(c.ActivationBlock),
			Name:            c.Name,
		})
	}
	for _, a := range g.alerts.Active() {
		stored.Alerts = append(stored.Alerts, storedAlert{
			Source: a.Source,
			Type:   a.Type,
			Expiry: uint64(a.Expiry),
			Text:   a.Text,
		})
	}
	return rlp.EncodeToBytes(stored)
}

// DecodeSection rewrites the activation heights and replaces the pending,
// completed and alert lists with the snapshot's.
func (g *Gate) DecodeSection(data []byte) error {
	var stored storedGate
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return fmt.Errorf("consensus: decode gate snapshot: %w", err)
	}
	for _, f := range stored.Features {
		slot := g.featureSlot(f.FeatureID)
		if slot == nil {
			return fmt.Errorf("consensus: gate snapshot holds unknown feature %d", f.FeatureID)
		}
		*slot = int64(f.Block)
	}
	g.pending = nil
	for _, p := range stored.Pending {
		g.pending = append(g.pending, PendingActivation{
			FeatureID:        p.FeatureID,
			ActivationBlock:  int64(p.ActivationBlock),
			MinClientVersion: p.MinClientVersion,
			Name:             p.Name,
		})
	}
	g.completed = nil
	for _, c := range stored.Completed {
		g.completed = append(g.completed, CompletedActivation{
			FeatureID:       c.FeatureID,
			ActivationBlock: int64(c.ActivationBlock),
			Name:            c.Name,
		})
	}
	g.alerts.alerts = nil
	for _, a := range stored.Alerts {
		g.alerts.Add(Alert{
			Source: a.Source,
			Type:   a.Type,
			Expiry: int64(a.Expiry),
			Text:   a.Text,
		})
	}
	return nil
}

// SectionKey identifies the gate's slot in the snapshot layout.
func (g *Gate) SectionKey() []byte { return []byte("gate") }
