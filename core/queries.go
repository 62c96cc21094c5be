package core

import (
	"github.com/ethereum/go-ethereum/common"

	"tokenlayer/consensus"
	"tokenlayer/core/state"
	"tokenlayer/native/crowdsale"
	"tokenlayer/native/dex"
	"tokenlayer/native/fees"
	"tokenlayer/native/metadex"
)

// consensusHashLocked folds every piece of consensus-relevant state into a
// single digest. The fold order is fixed: balances, properties, open
// MetaDEx orders, open DEx offers with their accepts, crowdsales with
// their contribution ledgers, then cached fees. Iteration everywhere is
// over sorted keys so that two nodes with equal state produce equal
// hashes. Caller holds at least the read lock.
func (e *Engine) consensusHashLocked() common.Hash {
	h := consensus.NewHasher()

	e.ledger.ForEachSorted(func(address string, propertyID uint32, bal state.Balance) {
		h.Fold("balance", address, propertyID, bal.Available, bal.Reserved, bal.Frozen)
	})

	for _, id := range e.registry.List() {
		prop, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		h.Fold("property", id, prop.Issuer, prop.TotalSupply,
			prop.Divisible, prop.Fixed, prop.Managed, prop.FreezingEnabled)
		for _, addr := range e.registry.FrozenAddresses(id) {
			h.Fold("frozen", id, addr)
		}
	}

	e.book.ForEachSorted(func(o metadex.Order) {
		h.Fold("mdexorder", o.TxID.Hex(), o.Address,
			o.PropertyForSale, o.PropertyDesired,
			o.AmountForSale, o.AmountDesired, o.AmountRemaining,
			o.Block, o.Idx)
	})

	e.exchange.ForEachSorted(func(o dex.Offer, accepts []dex.Accept) {
		h.Fold("dexoffer", o.TxID.Hex(), o.Seller, o.PropertyID,
			o.AmountForSale, o.AmountDesired, o.AmountRemaining,
			o.PaymentWindow, o.MinimumFee)
		for _, a := range accepts {
			h.Fold("dexaccept", o.Seller, o.PropertyID, a.Buyer, a.Amount, a.AcceptBlock)
		}
	})

	e.crowdsales.ForEachSorted(func(sale crowdsale.Crowdsale, txids []common.Hash) {
		h.Fold("crowdsale", sale.PropertyID, sale.DesiredProperty, sale.Issuer,
			sale.TokensPerUnit, sale.EarlyBirdBonus, sale.IssuerPercentage,
			sale.StartTime, sale.Deadline, sale.Closed,
			sale.ParticipantTotal, sale.IssuerTotal)
		for _, txid := range txids {
			entry, ok := e.crowdsales.ContributionOf(sale.PropertyID, txid)
			if !ok {
				continue
			}
			h.Fold("contribution", sale.PropertyID, txid.Hex(),
				entry.Contributor, entry.Amount, entry.ParticipantTokens, entry.IssuerTokens)
		}
	})

	e.feeCache.ForEachSorted(func(propertyID uint32, cached int64) {
		h.Fold("feecache", propertyID, cached)
	})

	return h.Sum()
}

// ConsensusHash digests the current state for cross-node comparison.
func (e *Engine) ConsensusHash() common.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.consensusHashLocked()
}

// VerifyTransactionExistence confirms the block's hard-coded transaction
// set against the processed-transaction index.
func (e *Engine) VerifyTransactionExistence(block int64) error {
	return e.params.VerifyTransactionExistence(block, e, e.logger)
}

// GetBalance returns the three balance buckets of an address for a
// property. Unknown pairs read as zero.
func (e *Engine) GetBalance(address string, propertyID uint32) state.Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Get(address, propertyID)
}

// GetAllBalances lists the properties an address holds with their buckets.
func (e *Engine) GetAllBalances(address string) map[uint32]state.Balance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uint32]state.Balance)
	for _, id := range e.ledger.PropertiesOwned(address) {
		out[id] = e.ledger.Get(address, id)
	}
	return out
}

// GetProperty returns a property's registry record.
func (e *Engine) GetProperty(propertyID uint32) (state.Property, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	prop, err := e.registry.Get(propertyID)
	if err != nil {
		return state.Property{}, err
	}
	return *prop, nil
}

// ListProperties returns every known property id in ascending order.
func (e *Engine) ListProperties() []uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.List()
}

// GetOrderBook returns the resting MetaDEx orders for a trading pair in
// match priority order.
func (e *Engine) GetOrderBook(propertyForSale, propertyDesired uint32) []metadex.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.OrdersForPair(propertyForSale, propertyDesired)
}

// GetOrdersByAddress returns an address's open MetaDEx orders.
func (e *Engine) GetOrdersByAddress(address string) []metadex.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.OrdersByAddress(address)
}

// GetActiveDExOffers lists open bilateral-exchange offers, optionally
// filtered to one seller.
func (e *Engine) GetActiveDExOffers(addressFilter string) []dex.Offer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exchange.Offers(addressFilter)
}

// GetDExAccept returns a buyer's open accept against a seller's offer.
func (e *Engine) GetDExAccept(buyer, seller string, propertyID uint32) (dex.Accept, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exchange.AcceptOf(buyer, seller, propertyID)
}

// GetCrowdsale returns the crowdsale issuing the given property.
func (e *Engine) GetCrowdsale(propertyID uint32) (crowdsale.Crowdsale, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.crowdsales.Get(propertyID)
}

// GetFeeCache returns the undistributed fee total for a property.
func (e *Engine) GetFeeCache(propertyID uint32) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeCache.CachedAmount(propertyID)
}

// GetFeeThreshold returns the distribution trigger for a property.
func (e *Engine) GetFeeThreshold(propertyID uint32) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeCache.Threshold(propertyID)
}

// GetFeeDistributions lists historical fee distributions, all of them when
// propertyID is zero.
func (e *Engine) GetFeeDistributions(propertyID uint32) []fees.Distribution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeCache.Distributions(propertyID)
}

// GetFeeDistribution looks up one distribution by id.
func (e *Engine) GetFeeDistribution(id uint64) (fees.Distribution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeCache.DistributionByID(id)
}

// ActiveAlerts returns the live operator alerts.
func (e *Engine) ActiveAlerts() []consensus.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alerts.Active()
}

// PendingActivations returns the scheduled feature activations that have
// not reached their height.
func (e *Engine) PendingActivations() []consensus.PendingActivation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate.PendingActivations()
}

// CompletedActivations returns the feature activations that went live.
func (e *Engine) CompletedActivations() []consensus.CompletedActivation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gate.CompletedActivations()
}
