package core

import (
	"errors"
	"log/slog"
	"math/big"

	"tokenlayer/consensus"
	"tokenlayer/core/state"
	"tokenlayer/core/types"
	"tokenlayer/native/crowdsale"
	"tokenlayer/native/dex"
	"tokenlayer/native/metadex"
)

// outcomeForLedgerErr maps ledger failures onto rejection codes.
func outcomeForLedgerErr(err error) types.OutcomeCode {
	switch {
	case errors.Is(err, state.ErrInsufficientFunds):
		return types.OutcomeInsufficientFunds
	case errors.Is(err, state.ErrAmountRange):
		return types.OutcomeInvalidAmount
	case errors.Is(err, state.ErrUnknownProperty):
		return types.OutcomeUnknownProperty
	}
	return types.OutcomeInvalidParameters
}

func (e *Engine) handleSimpleSend(tx *types.Transaction, blockTime, block int64) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if !e.registry.Exists(tx.Property) {
		return types.OutcomeUnknownProperty
	}
	if e.registry.IsFrozen(tx.Property, tx.Sender) {
		return types.OutcomeFrozenSender
	}
	if err := e.ledger.Debit(tx.Sender, tx.Property, state.BucketAvailable, tx.Amount); err != nil {
		return outcomeForLedgerErr(err)
	}
	if err := e.ledger.Credit(tx.Receiver, tx.Property, state.BucketAvailable, tx.Amount); err != nil {
		// Credit after a successful debit only fails on overflow; restore.
		_ = e.ledger.Credit(tx.Sender, tx.Property, state.BucketAvailable, tx.Amount)
		return outcomeForLedgerErr(err)
	}

	// A send of the payment property to an active crowdsale's issuer is a
	// contribution, not a plain transfer.
	if sale := e.crowdsales.FindByPayment(tx.Receiver, tx.Property, blockTime); sale != nil {
		issuerBonus := !e.gate.IsFeatureActivated(consensus.FeatureGrantEffects, block)
		entry, err := e.crowdsales.Participate(tx.Hash, tx.Sender, sale.PropertyID, tx.Amount, blockTime, issuerBonus)
		if err != nil {
			e.logger.Error("crowdsale participation failed",
				slog.String("tx", tx.Hash.Hex()), slog.Any("error", err))
			return types.OutcomeInvalidParameters
		}
		e.logger.Info("crowdsale contribution",
			slog.String("tx", tx.Hash.Hex()),
			slog.Uint64("property", uint64(sale.PropertyID)),
			slog.Int64("granted", entry.ParticipantTokens))
	}
	return types.OutcomeOK
}

// handleSendToOwners distributes the amount pro-rata to the current
// holders of the distribution property, excluding the sender. Version 1
// (activation gated) allows the distribution property to differ from the
// sent property.
func (e *Engine) handleSendToOwners(tx *types.Transaction) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if !e.registry.Exists(tx.Property) {
		return types.OutcomeUnknownProperty
	}
	distProperty := tx.Property
	if tx.Version == types.TxVersion1 && tx.DesiredProperty != types.PropertyIDWildcard {
		distProperty = tx.DesiredProperty
		if !e.registry.Exists(distProperty) {
			return types.OutcomeUnknownProperty
		}
	}
	if e.registry.IsFrozen(tx.Property, tx.Sender) {
		return types.OutcomeFrozenSender
	}

	holders, weights := e.ledger.Holders(distProperty)
	var totalWeight int64
	recipients := holders[:0]
	for _, addr := range holders {
		if addr == tx.Sender {
			continue
		}
		recipients = append(recipients, addr)
		totalWeight += weights[addr]
	}
	if len(recipients) == 0 || totalWeight <= 0 {
		return types.OutcomeInvalidParameters
	}

	// Floor-division shares; the remainder stays with the sender.
	bigAmount := big.NewInt(tx.Amount)
	bigWeight := big.NewInt(totalWeight)
	var paid int64
	shares := make([]int64, len(recipients))
	for i, addr := range recipients {
		share := new(big.Int).Mul(bigAmount, big.NewInt(weights[addr]))
		shares[i] = share.Quo(share, bigWeight).Int64()
		paid += shares[i]
	}
	if paid == 0 {
		return types.OutcomeInvalidAmount
	}
	if err := e.ledger.Debit(tx.Sender, tx.Property, state.BucketAvailable, paid); err != nil {
		return outcomeForLedgerErr(err)
	}
	for i, addr := range recipients {
		if shares[i] == 0 {
			continue
		}
		if err := e.ledger.Credit(addr, tx.Property, state.BucketAvailable, shares[i]); err != nil {
			e.logger.Error("send-to-owners credit failed", slog.Any("error", err))
			return types.OutcomeInvalidParameters
		}
	}
	return types.OutcomeOK
}

// handleSendAll sweeps every available balance of the transaction's
// ecosystem from sender to receiver. Properties for which the sender is
// frozen are skipped; moving nothing at all invalidates the transaction.
func (e *Engine) handleSendAll(tx *types.Transaction) types.OutcomeCode {
	eco := tx.Ecosystem
	if eco != types.EcosystemMain && eco != types.EcosystemTest {
		return types.OutcomeInvalidParameters
	}
	var moved bool
	for _, propertyID := range e.ledger.PropertiesOwned(tx.Sender) {
		if types.EcosystemOf(propertyID) != eco {
			continue
		}
		if e.registry.IsFrozen(propertyID, tx.Sender) {
			continue
		}
		amount := e.ledger.Get(tx.Sender, propertyID).Available
		if amount == 0 {
			continue
		}
		if err := e.ledger.Debit(tx.Sender, propertyID, state.BucketAvailable, amount); err != nil {
			return outcomeForLedgerErr(err)
		}
		if err := e.ledger.Credit(tx.Receiver, propertyID, state.BucketAvailable, amount); err != nil {
			_ = e.ledger.Credit(tx.Sender, propertyID, state.BucketAvailable, amount)
			return outcomeForLedgerErr(err)
		}
		moved = true
	}
	if !moved {
		return types.OutcomeInsufficientFunds
	}
	return types.OutcomeOK
}

func (e *Engine) handleDExSellOffer(tx *types.Transaction, block int64) types.OutcomeCode {
	if !e.registry.Exists(tx.Property) {
		return types.OutcomeUnknownProperty
	}
	switch tx.Action {
	case types.DExActionNew, types.DExActionUpdate:
		if tx.Amount <= 0 || tx.DesiredAmount <= 0 {
			return types.OutcomeInvalidAmount
		}
		if e.registry.IsFrozen(tx.Property, tx.Sender) {
			return types.OutcomeFrozenSender
		}
		offer := dex.Offer{
			TxID:          tx.Hash,
			Seller:        tx.Sender,
			PropertyID:    tx.Property,
			AmountForSale: tx.Amount,
			AmountDesired: tx.DesiredAmount,
			PaymentWindow: tx.PaymentWindow,
			MinimumFee:    tx.MinimumFee,
			Block:         block,
		}
		var err error
		if tx.Action == types.DExActionNew {
			err = e.exchange.PostOffer(offer)
		} else {
			err = e.exchange.UpdateOffer(offer)
		}
		switch {
		case err == nil:
			return types.OutcomeOK
		case errors.Is(err, dex.ErrDuplicateOffer):
			return types.OutcomeDuplicateOffer
		case errors.Is(err, dex.ErrNoOffer):
			return types.OutcomeNoSuchOffer
		case errors.Is(err, state.ErrInsufficientFunds):
			return types.OutcomeInsufficientFunds
		default:
			return types.OutcomeInvalidParameters
		}
	case types.DExActionCancel:
		if err := e.exchange.CancelOffer(tx.Sender, tx.Property); err != nil {
			return types.OutcomeNoSuchOffer
		}
		return types.OutcomeOK
	}
	return types.OutcomeInvalidParameters
}

func (e *Engine) handleDExAccept(tx *types.Transaction, block int64) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	accepted, err := e.exchange.AcceptOffer(tx.Sender, tx.Receiver, tx.Property, tx.Amount, block)
	switch {
	case err == nil && accepted > 0:
		return types.OutcomeOK
	case errors.Is(err, dex.ErrNoOffer):
		return types.OutcomeNoSuchOffer
	default:
		return types.OutcomeInvalidParameters
	}
}

func (e *Engine) handleMetaDExTrade(tx *types.Transaction, block int64, idx uint32) types.OutcomeCode {
	if tx.Amount <= 0 || tx.DesiredAmount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if tx.Property == tx.DesiredProperty {
		return types.OutcomeSamePropertyTrade
	}
	if !e.registry.Exists(tx.Property) || !e.registry.Exists(tx.DesiredProperty) {
		return types.OutcomeUnknownProperty
	}
	if !types.SameEcosystem(tx.Property, tx.DesiredProperty) {
		return types.OutcomeCrossEcosystem
	}
	if !e.gate.IsFeatureActivated(consensus.FeatureTradeAllPairs, block) &&
		tx.Property != types.PropertyIDBase && tx.DesiredProperty != types.PropertyIDBase &&
		tx.Property != types.PropertyIDTestBase && tx.DesiredProperty != types.PropertyIDTestBase {
		return types.OutcomeNotActivated
	}
	if e.registry.IsFrozen(tx.Property, tx.Sender) {
		return types.OutcomeFrozenSender
	}
	if err := e.ledger.Move(tx.Sender, tx.Property, state.BucketAvailable, state.BucketReserved, tx.Amount); err != nil {
		return outcomeForLedgerErr(err)
	}

	flags := metadex.Flags{
		DExMath:     e.gate.IsFeatureActivated(consensus.FeatureDExMath, block),
		CollectFees: e.gate.IsFeatureActivated(consensus.FeatureFees, block),
	}
	result, err := e.book.Trade(metadex.Order{
		TxID:            tx.Hash,
		Address:         tx.Sender,
		PropertyForSale: tx.Property,
		PropertyDesired: tx.DesiredProperty,
		AmountForSale:   tx.Amount,
		AmountDesired:   tx.DesiredAmount,
		Block:           block,
		Idx:             idx,
	}, flags)
	if err != nil {
		// Structural problems were screened above; a trade error here is a
		// ledger fault and the reservation is returned.
		_ = e.ledger.Move(tx.Sender, tx.Property, state.BucketReserved, state.BucketAvailable, tx.Amount)
		e.logger.Error("metadex trade failed", slog.String("tx", tx.Hash.Hex()), slog.Any("error", err))
		return types.OutcomeInvalidParameters
	}
	e.metrics.TradesMatched(len(result.Fills))
	return types.OutcomeOK
}

func (e *Engine) handleMetaDExCancel(tx *types.Transaction) types.OutcomeCode {
	var cancelled []metadex.Cancelled
	var err error
	switch tx.Type {
	case types.TxTypeMetaDExCancelPrice:
		cancelled, err = e.book.CancelAtPrice(tx.Sender, tx.Property, tx.DesiredProperty, tx.Amount, tx.DesiredAmount)
	case types.TxTypeMetaDExCancelPair:
		cancelled, err = e.book.CancelPair(tx.Sender, tx.Property, tx.DesiredProperty)
	default:
		cancelled, err = e.book.CancelEcosystem(tx.Sender, tx.Ecosystem)
	}
	if err != nil {
		e.logger.Error("metadex cancel failed", slog.String("tx", tx.Hash.Hex()), slog.Any("error", err))
		return types.OutcomeInvalidParameters
	}
	if len(cancelled) == 0 {
		return types.OutcomeNoSuchOffer
	}
	return types.OutcomeOK
}

func (e *Engine) handleCreateFixed(tx *types.Transaction) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if tx.Name == "" {
		return types.OutcomeInvalidParameters
	}
	id, err := e.registry.Create(tx.Ecosystem, state.Property{
		Name:        tx.Name,
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
		URL:         tx.URL,
		Data:        tx.Data,
		Divisible:   tx.Divisible,
		Issuer:      tx.Sender,
		Fixed:       true,
		CreationTx:  tx.Hash,
	})
	if err != nil {
		return types.OutcomeInvalidParameters
	}
	if err := e.ledger.Credit(tx.Sender, id, state.BucketAvailable, tx.Amount); err != nil {
		return outcomeForLedgerErr(err)
	}
	if err := e.registry.AdjustSupply(id, tx.Amount); err != nil {
		return types.OutcomeInvalidParameters
	}
	e.logger.Info("property created",
		slog.Uint64("property", uint64(id)), slog.String("name", tx.Name), slog.Int64("supply", tx.Amount))
	return types.OutcomeOK
}

func (e *Engine) handleCreateCrowdsale(tx *types.Transaction, block, blockTime int64) types.OutcomeCode {
	if tx.Name == "" || tx.TokensPerUnit <= 0 {
		return types.OutcomeInvalidParameters
	}
	if tx.Deadline <= blockTime {
		return types.OutcomeInvalidParameters
	}
	if !e.registry.Exists(tx.DesiredProperty) {
		return types.OutcomeUnknownProperty
	}
	// Crowdsales historically could collect payment across ecosystems; the
	// crossover feature forbids new ones from doing so.
	if e.gate.IsFeatureActivated(consensus.FeatureCrowdCrossover, block) &&
		types.EcosystemOf(tx.DesiredProperty) != tx.Ecosystem {
		return types.OutcomeCrossEcosystem
	}
	id, err := e.registry.Create(tx.Ecosystem, state.Property{
		Name:            tx.Name,
		Category:        tx.Category,
		Subcategory:     tx.Subcategory,
		URL:             tx.URL,
		Data:            tx.Data,
		Divisible:       tx.Divisible,
		Issuer:          tx.Sender,
		CrowdsaleOrigin: true,
		CreationTx:      tx.Hash,
	})
	if err != nil {
		return types.OutcomeInvalidParameters
	}
	if err := e.crowdsales.Start(crowdsale.Crowdsale{
		PropertyID:       id,
		DesiredProperty:  tx.DesiredProperty,
		Issuer:           tx.Sender,
		TokensPerUnit:    tx.TokensPerUnit,
		EarlyBirdBonus:   tx.EarlyBirdBonus,
		IssuerPercentage: tx.IssuerPercentage,
		StartTime:        blockTime,
		Deadline:         tx.Deadline,
	}); err != nil {
		return types.OutcomeInvalidParameters
	}
	return types.OutcomeOK
}

func (e *Engine) handleCloseCrowdsale(tx *types.Transaction, blockTime int64) types.OutcomeCode {
	err := e.crowdsales.Close(tx.Property, tx.Sender, tx.Hash, blockTime)
	switch {
	case err == nil:
		return types.OutcomeOK
	case errors.Is(err, crowdsale.ErrNotIssuer):
		return types.OutcomeNotIssuer
	case errors.Is(err, crowdsale.ErrNotActive):
		return types.OutcomeCrowdsaleClosed
	}
	return types.OutcomeInvalidParameters
}

func (e *Engine) handleCreateManaged(tx *types.Transaction) types.OutcomeCode {
	if tx.Name == "" {
		return types.OutcomeInvalidParameters
	}
	id, err := e.registry.Create(tx.Ecosystem, state.Property{
		Name:        tx.Name,
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
		URL:         tx.URL,
		Data:        tx.Data,
		Divisible:   tx.Divisible,
		Issuer:      tx.Sender,
		Managed:     true,
		CreationTx:  tx.Hash,
	})
	if err != nil {
		return types.OutcomeInvalidParameters
	}
	e.logger.Info("managed property created",
		slog.Uint64("property", uint64(id)), slog.String("name", tx.Name))
	return types.OutcomeOK
}

// managedByIssuer screens the common preconditions of the managed-property
// administration transactions.
func (e *Engine) managedByIssuer(propertyID uint32, sender string) (types.OutcomeCode, bool) {
	prop, err := e.registry.Get(propertyID)
	if err != nil {
		return types.OutcomeUnknownProperty, false
	}
	if !prop.Managed {
		return types.OutcomeInvalidParameters, false
	}
	if prop.Issuer != sender {
		return types.OutcomeNotIssuer, false
	}
	return types.OutcomeOK, true
}

func (e *Engine) handleGrant(tx *types.Transaction) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	receiver := tx.Receiver
	if receiver == "" {
		receiver = tx.Sender
	}
	if err := e.ledger.Credit(receiver, tx.Property, state.BucketAvailable, tx.Amount); err != nil {
		return outcomeForLedgerErr(err)
	}
	if err := e.registry.AdjustSupply(tx.Property, tx.Amount); err != nil {
		_ = e.ledger.Debit(receiver, tx.Property, state.BucketAvailable, tx.Amount)
		return types.OutcomeInvalidAmount
	}
	return types.OutcomeOK
}

func (e *Engine) handleRevoke(tx *types.Transaction) types.OutcomeCode {
	if tx.Amount <= 0 {
		return types.OutcomeInvalidAmount
	}
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	if err := e.ledger.Debit(tx.Sender, tx.Property, state.BucketAvailable, tx.Amount); err != nil {
		return outcomeForLedgerErr(err)
	}
	if err := e.registry.AdjustSupply(tx.Property, -tx.Amount); err != nil {
		_ = e.ledger.Credit(tx.Sender, tx.Property, state.BucketAvailable, tx.Amount)
		return types.OutcomeInvalidAmount
	}
	return types.OutcomeOK
}

func (e *Engine) handleChangeIssuer(tx *types.Transaction) types.OutcomeCode {
	if tx.Receiver == "" {
		return types.OutcomeInvalidParameters
	}
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	if err := e.registry.SetIssuer(tx.Property, tx.Receiver); err != nil {
		return types.OutcomeInvalidParameters
	}
	return types.OutcomeOK
}

func (e *Engine) handleEnableFreezing(tx *types.Transaction, block int64) types.OutcomeCode {
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	prop, _ := e.registry.Get(tx.Property)
	if prop.FreezingEnabled {
		return types.OutcomeInvalidParameters
	}
	liveBlock := block
	if e.gate.IsFeatureActivated(consensus.FeatureFreezeNotice, block) {
		liveBlock += e.params.FreezeWaitPeriod
	}
	if err := e.registry.EnableFreezing(tx.Property, liveBlock); err != nil {
		return types.OutcomeInvalidParameters
	}
	return types.OutcomeOK
}

func (e *Engine) handleDisableFreezing(tx *types.Transaction) types.OutcomeCode {
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	prop, _ := e.registry.Get(tx.Property)
	if !prop.FreezingEnabled {
		return types.OutcomeFreezingDisabled
	}
	released, err := e.registry.DisableFreezing(tx.Property)
	if err != nil {
		return types.OutcomeInvalidParameters
	}
	for _, addr := range released {
		frozen := e.ledger.Get(addr, tx.Property).Frozen
		if frozen > 0 {
			if err := e.ledger.Move(addr, tx.Property, state.BucketFrozen, state.BucketAvailable, frozen); err != nil {
				e.logger.Error("unfreeze on disable failed", slog.String("address", addr), slog.Any("error", err))
			}
		}
	}
	return types.OutcomeOK
}

func (e *Engine) handleFreeze(tx *types.Transaction, block int64) types.OutcomeCode {
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	if !e.registry.FreezingLive(tx.Property, block) {
		return types.OutcomeFreezingDisabled
	}
	if tx.Receiver == "" || e.registry.IsFrozen(tx.Property, tx.Receiver) {
		return types.OutcomeInvalidParameters
	}
	e.registry.Freeze(tx.Property, tx.Receiver)
	available := e.ledger.Get(tx.Receiver, tx.Property).Available
	if available > 0 {
		if err := e.ledger.Move(tx.Receiver, tx.Property, state.BucketAvailable, state.BucketFrozen, available); err != nil {
			return outcomeForLedgerErr(err)
		}
	}
	return types.OutcomeOK
}

func (e *Engine) handleUnfreeze(tx *types.Transaction, block int64) types.OutcomeCode {
	if outcome, ok := e.managedByIssuer(tx.Property, tx.Sender); !ok {
		return outcome
	}
	if !e.registry.FreezingLive(tx.Property, block) {
		return types.OutcomeFreezingDisabled
	}
	if tx.Receiver == "" || !e.registry.IsFrozen(tx.Property, tx.Receiver) {
		return types.OutcomeInvalidParameters
	}
	e.registry.Unfreeze(tx.Property, tx.Receiver)
	frozen := e.ledger.Get(tx.Receiver, tx.Property).Frozen
	if frozen > 0 {
		if err := e.ledger.Move(tx.Receiver, tx.Property, state.BucketFrozen, state.BucketAvailable, frozen); err != nil {
			return outcomeForLedgerErr(err)
		}
	}
	return types.OutcomeOK
}

func (e *Engine) handleActivateFeature(tx *types.Transaction, block int64) types.OutcomeCode {
	if err := e.gate.ActivateFeature(tx.FeatureID, tx.ActivationBlock, tx.MinClientVersion, block); err != nil {
		e.logger.Warn("feature activation rejected", slog.Any("error", err))
		return types.OutcomeInvalidParameters
	}
	return types.OutcomeOK
}

func (e *Engine) handleDeactivateFeature(tx *types.Transaction, block int64) types.OutcomeCode {
	if err := e.gate.DeactivateFeature(tx.FeatureID, block); err != nil {
		e.logger.Warn("feature deactivation rejected", slog.Any("error", err))
		return types.OutcomeInvalidParameters
	}
	return types.OutcomeOK
}

// handleAlert records an operator alert. Sender authorization happens in
// the decoding layer; by the time an alert reaches the engine it is
// trusted.
func (e *Engine) handleAlert(tx *types.Transaction) types.OutcomeCode {
	if tx.AlertText == "" {
		return types.OutcomeInvalidParameters
	}
	e.alerts.Add(consensus.Alert{
		Source: tx.Sender,
		Type:   tx.AlertType,
		Expiry: tx.AlertExpiry,
		Text:   tx.AlertText,
	})
	return types.OutcomeOK
}
