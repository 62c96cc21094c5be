package consensus

import (
	"fmt"
	"log/slog"

	"tokenlayer/core/types"
)

// Feature ids subject to the activation gate.
const (
	FeatureClassC         uint16 = 1
	FeatureMetaDEx        uint16 = 2
	FeatureBetting        uint16 = 3
	FeatureGrantEffects   uint16 = 4
	FeatureDExMath        uint16 = 5
	FeatureSendAll        uint16 = 6
	FeatureCrowdCrossover uint16 = 7
	FeatureTradeAllPairs  uint16 = 8
	FeatureFees           uint16 = 9
	FeatureSendToOwnersV1 uint16 = 10
	FeatureFreezeNotice   uint16 = 14
)

// ClientVersion is the numeric build version compared against the minimum
// client version demanded by activation transactions.
const ClientVersion uint32 = 1000000

// PendingActivation records a scheduled feature activation that has not yet
// reached its height.
type PendingActivation struct {
	FeatureID        uint16
	ActivationBlock  int64
	MinClientVersion uint32
	Name             string
}

// CompletedActivation records a feature activation whose height has been
// reached.
type CompletedActivation struct {
	FeatureID       uint16
	ActivationBlock int64
	Name            string
}

// Gate applies feature activations and answers whether transaction types
// and features are live at a given height. It is the only component allowed
// to mutate Params after construction.
type Gate struct {
	params *Params
	logger *slog.Logger

	pending   []PendingActivation
	completed []CompletedActivation
	alerts    *AlertBoard
}

// NewGate wraps the supplied parameter set. The alert board receives the
// shutdown warnings raised for unsupported activations.
func NewGate(params *Params, alerts *AlertBoard, logger *slog.Logger) *Gate {
	if alerts == nil {
		alerts = NewAlertBoard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{params: params, alerts: alerts, logger: logger}
}

// Params exposes the parameter set governed by the gate.
func (g *Gate) Params() *Params { return g.params }

// Alerts exposes the alert board the gate raises warnings on.
func (g *Gate) Alerts() *AlertBoard { return g.alerts }

// featureSlot maps a feature id to the parameter field it controls. A nil
// return means the feature id is not recognised by this build.
func (g *Gate) featureSlot(featureID uint16) *int64 {
	switch featureID {
	case FeatureMetaDEx:
		return &g.params.MetaDExBlock
	case FeatureBetting:
		return &g.params.BetBlock
	case FeatureGrantEffects:
		return &g.params.GrantEffectsBlock
	case FeatureDExMath:
		return &g.params.DExMathBlock
	case FeatureSendAll:
		return &g.params.SendAllBlock
	case FeatureCrowdCrossover:
		return &g.params.CrowdCrossoverBlock
	case FeatureTradeAllPairs:
		return &g.params.TradeAllPairsBlock
	case FeatureFees:
		return &g.params.FeesBlock
	case FeatureSendToOwnersV1:
		return &g.params.SendToOwnersV1Block
	case FeatureFreezeNotice:
		return &g.params.FreezeNoticeBlock
	}
	return nil
}

// FeatureName returns the display name of a feature id.
func FeatureName(featureID uint16) string {
	switch featureID {
	case FeatureClassC:
		return "Class C transaction encoding"
	case FeatureMetaDEx:
		return "Distributed token exchange"
	case FeatureBetting:
		return "Bet transactions"
	case FeatureGrantEffects:
		return "Remove grant side effects"
	case FeatureDExMath:
		return "DEx integer math update"
	case FeatureSendAll:
		return "Send All transactions"
	case FeatureCrowdCrossover:
		return "Disable crowdsale ecosystem crossovers"
	case FeatureTradeAllPairs:
		return "Allow trading all pairs on the distributed exchange"
	case FeatureFees:
		return "Fee system for non-base trading pairs"
	case FeatureSendToOwnersV1:
		return "Cross-property send to owners"
	case FeatureFreezeNotice:
		return "Waiting period for enabling freezing"
	}
	return "Unknown feature"
}

// IsFeatureActivated reports whether the feature is live at the given
// block.
func (g *Gate) IsFeatureActivated(featureID uint16, block int64) bool {
	slot := g.featureSlot(featureID)
	if slot == nil {
		return false
	}
	return block >= *slot
}

// IsTransactionTypeAllowed walks the restriction table. A match requires
// the same type and either the same version or a TxVersionAny row; the
// wildcard property id 0 additionally requires the row to allow
// wildcards. Test-ecosystem transactions are always allowed, without
// height gating, to support pre-release testing.
func (g *Gate) IsTransactionTypeAllowed(block int64, property uint32, txType, txVersion uint16) bool {
	for _, entry := range g.params.Restrictions() {
		if entry.TxType != txType {
			continue
		}
		if entry.TxVersion != types.TxVersionAny && entry.TxVersion != txVersion {
			continue
		}
		if property == types.PropertyIDWildcard && !entry.AllowWildcard {
			continue
		}
		if types.IsTestEcosystemProperty(property) {
			return true
		}
		if block >= entry.ActivationBlock {
			return true
		}
	}
	return false
}

// ActivateFeature schedules a feature activation. The requested height must
// respect the network's notice window relative to the requesting
// transaction's block, and the feature must not already be live. When the
// running client is older than minClientVersion a shutdown warning is
// raised so an outdated node halts instead of diverging.
func (g *Gate) ActivateFeature(featureID uint16, activationBlock int64, minClientVersion uint32, txBlock int64) error {
	g.logger.Info("feature activation requested",
		slog.Int("feature", int(featureID)), slog.Int64("activationBlock", activationBlock))

	if activationBlock < txBlock+g.params.MinActivationBlocks ||
		activationBlock > txBlock+g.params.MaxActivationBlocks {
		return fmt.Errorf("activation of feature %d refused: height %d outside notice window [%d, %d]",
			featureID, activationBlock, txBlock+g.params.MinActivationBlocks, txBlock+g.params.MaxActivationBlocks)
	}
	if g.IsFeatureActivated(featureID, txBlock) {
		return fmt.Errorf("activation of feature %d refused: already live", featureID)
	}

	slot := g.featureSlot(featureID)
	supported := slot != nil && ClientVersion >= minClientVersion
	if slot != nil {
		*slot = activationBlock
	}

	name := FeatureName(featureID)
	g.pending = append(g.pending, PendingActivation{
		FeatureID:        featureID,
		ActivationBlock:  activationBlock,
		MinClientVersion: minClientVersion,
		Name:             name,
	})

	if !supported {
		text := fmt.Sprintf("client must be updated and will shut down at block %d (unsupported feature %d, %q, activated)",
			activationBlock, featureID, name)
		g.logger.Warn("unsupported feature activated", slog.String("alert", text))
		g.alerts.Add(Alert{Source: "consensus", Type: AlertBlockExpiry, Expiry: activationBlock, Text: text})
	}
	return nil
}

// DeactivateFeature disables a live feature immediately. There is no notice
// period: deactivation is an emergency kill-switch, requires no client
// upgrade, and demands no user action.
func (g *Gate) DeactivateFeature(featureID uint16, txBlock int64) error {
	if !g.IsFeatureActivated(featureID, txBlock) {
		return fmt.Errorf("deactivation of feature %d refused: not live", featureID)
	}
	slot := g.featureSlot(featureID)
	if slot == nil {
		return fmt.Errorf("deactivation of feature %d refused: unknown feature", featureID)
	}
	*slot = NeverBlock

	name := FeatureName(featureID)
	g.logger.Warn("feature deactivated", slog.Int("feature", int(featureID)), slog.String("name", name))
	g.alerts.Add(Alert{
		Source: "consensus",
		Type:   AlertBlockExpiry,
		Expiry: txBlock + 1024,
		Text:   fmt.Sprintf("emergency deactivation of feature %d (%s)", featureID, name),
	})
	return nil
}

// CheckLiveActivations moves pending activations whose height has been
// reached onto the completed list. Called once per connected block.
func (g *Gate) CheckLiveActivations(block int64) {
	remaining := g.pending[:0]
	for _, p := range g.pending {
		if block < p.ActivationBlock {
			remaining = append(remaining, p)
			continue
		}
		g.completed = append(g.completed, CompletedActivation{
			FeatureID:       p.FeatureID,
			ActivationBlock: p.ActivationBlock,
			Name:            p.Name,
		})
		g.logger.Info("feature activation live",
			slog.Int("feature", int(p.FeatureID)), slog.String("name", p.Name))
	}
	g.pending = remaining
}

// PendingActivations returns a copy of the not-yet-live activations.
func (g *Gate) PendingActivations() []PendingActivation {
	out := make([]PendingActivation, len(g.pending))
	copy(out, g.pending)
	return out
}

// CompletedActivations returns a copy of the activations that have gone
// live.
func (g *Gate) CompletedActivations() []CompletedActivation {
	out := make([]CompletedActivation, len(g.completed))
	copy(out, g.completed)
	return out
}
