// Package core wires the consensus subsystems into one engine: the single
// mutation entry point for confirmed transactions, the block lifecycle, and
// the read-only query surface. All derived state is a pure function of the
// confirmed transaction history; any two nodes replaying the same chain
// must converge on bit-identical state.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tokenlayer/consensus"
	"tokenlayer/core/state"
	"tokenlayer/core/types"
	"tokenlayer/native/crowdsale"
	"tokenlayer/native/dex"
	"tokenlayer/native/fees"
	"tokenlayer/native/metadex"
	"tokenlayer/observability"
	"tokenlayer/storage"
)

// Engine owns every piece of derived token-layer state. One RWMutex (the
// tally lock) serializes all mutation; block processing is strictly
// sequential by transaction position because later transactions' validity
// can depend on earlier effects within the same block. Snapshot queries
// take the read side for the duration of the read.
type Engine struct {
	mu     sync.RWMutex
	logger *slog.Logger

	params *consensus.Params
	gate   *consensus.Gate
	alerts *consensus.AlertBoard

	ledger   *state.Ledger
	registry *state.Registry

	book       *metadex.Book
	exchange   *dex.Exchange
	crowdsales *crowdsale.Engine
	feeCache   *fees.Cache

	processed map[common.Hash]bool

	currentBlock int64
	currentTime  int64
	blockStarted time.Time

	metrics *observability.EngineMetrics
}

// NewEngine constructs an engine for the named network (main, test or
// regtest) with empty state.
func NewEngine(network string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:    logger.With(slog.String("component", "engine"), slog.String("network", network)),
		params:    consensus.ParamsFor(network),
		alerts:    consensus.NewAlertBoard(),
		ledger:    state.NewLedger(),
		registry:  state.NewRegistry(),
		processed: make(map[common.Hash]bool),
	}
	e.gate = consensus.NewGate(e.params, e.alerts, e.logger)
	funds := ledgerFunds{e.ledger}
	e.book = metadex.NewBook(funds)
	e.book.SetFeeSink(feeSink{e})
	e.exchange = dex.NewExchange(funds)
	e.crowdsales = crowdsale.NewEngine(crowdsaleState{e})
	e.feeCache = fees.NewCache(feeState{e})
	return e
}

// SetMetrics attaches the operational metrics registry. Optional; a nil
// registry records nothing.
func (e *Engine) SetMetrics(m *observability.EngineMetrics) { e.metrics = m }

// Gate exposes the feature activation gate for read-only inspection.
func (e *Engine) Gate() *consensus.Gate { return e.gate }

// ledgerFunds adapts the balance ledger to the narrow funds interfaces the
// exchange engines consume. The ledger owns every reservation; order
// records never hold balances.
type ledgerFunds struct {
	l *state.Ledger
}

func (f ledgerFunds) CreditAvailable(address string, propertyID uint32, amount int64) error {
	return f.l.Credit(address, propertyID, state.BucketAvailable, amount)
}

func (f ledgerFunds) DebitReserved(address string, propertyID uint32, amount int64) error {
	return f.l.Debit(address, propertyID, state.BucketReserved, amount)
}

func (f ledgerFunds) Reserve(address string, propertyID uint32, amount int64) error {
	return f.l.Move(address, propertyID, state.BucketAvailable, state.BucketReserved, amount)
}

func (f ledgerFunds) ReleaseReserve(address string, propertyID uint32, amount int64) error {
	return f.l.Move(address, propertyID, state.BucketReserved, state.BucketAvailable, amount)
}

// feeSink routes MetaDEx trading fees into the fee cache at the block
// currently being processed.
type feeSink struct {
	e *Engine
}

func (s feeSink) AddFee(propertyID uint32, amount int64) {
	before := len(s.e.feeCache.Distributions(0))
	if err := s.e.feeCache.AddFee(propertyID, amount, s.e.currentBlock); err != nil {
		s.e.logger.Error("fee cache rejected trading fee",
			slog.Uint64("property", uint64(propertyID)), slog.Any("error", err))
		return
	}
	if len(s.e.feeCache.Distributions(0)) > before {
		s.e.metrics.FeeDistribution()
	}
}

// crowdsaleState gives the crowdsale engine paired token-grant and
// supply-adjustment access.
type crowdsaleState struct {
	e *Engine
}

func (s crowdsaleState) CreditAvailable(address string, propertyID uint32, amount int64) error {
	return s.e.ledger.Credit(address, propertyID, state.BucketAvailable, amount)
}

func (s crowdsaleState) AdjustSupply(propertyID uint32, delta int64) error {
	return s.e.registry.AdjustSupply(propertyID, delta)
}

// feeState gives the fee cache its recipient snapshot, thresholds and
// payout credit. Qualifying balance is available plus reserved; frozen
// balances do not participate in distributions.
type feeState struct {
	e *Engine
}

func (s feeState) QualifyingHolders(propertyID uint32) ([]string, map[string]int64) {
	holders, _ := s.e.ledger.Holders(propertyID)
	weights := make(map[string]int64, len(holders))
	qualified := holders[:0]
	for _, addr := range holders {
		bal := s.e.ledger.Get(addr, propertyID)
		if w := bal.Available + bal.Reserved; w > 0 {
			weights[addr] = w
			qualified = append(qualified, addr)
		}
	}
	return qualified, weights
}

func (s feeState) TotalSupply(propertyID uint32) (int64, error) {
	prop, err := s.e.registry.Get(propertyID)
	if err != nil {
		return 0, err
	}
	return prop.TotalSupply, nil
}

func (s feeState) CreditAvailable(address string, propertyID uint32, amount int64) error {
	return s.e.ledger.Credit(address, propertyID, state.BucketAvailable, amount)
}

// BeginBlock marks the start of a block's transaction sequence.
func (e *Engine) BeginBlock(block int64, blockTime int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentBlock = block
	e.currentTime = blockTime
	e.blockStarted = time.Now()
}

// EndBlock runs the per-block sweeps and verifies the height against any
// consensus checkpoint. A non-nil error is consensus divergence: the node
// must halt rather than advance past it.
func (e *Engine) EndBlock(block int64, blockHash common.Hash, blockTime int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.exchange.ExpireAccepts(block)
	for _, id := range e.crowdsales.SweepDeadlines(blockTime) {
		e.logger.Info("crowdsale deadline reached", slog.Uint64("property", uint64(id)))
	}
	e.gate.CheckLiveActivations(block)
	e.alerts.Expire(block, blockTime)

	if err := e.params.VerifyCheckpoint(block, blockHash, e.consensusHashLocked, e.logger); err != nil {
		return err
	}
	e.metrics.BlockConnected(time.Since(e.blockStarted).Seconds())
	return nil
}

// ApplyTransaction is the single mutation entry point: it gates the
// transaction's (type, version) against the activation table and, on
// success, dispatches to the type's handler. Rejections are local: block
// processing continues with the next transaction.
func (e *Engine) ApplyTransaction(tx *types.Transaction, block int64, blockTime int64, idx uint32) types.OutcomeCode {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentBlock = block
	e.currentTime = blockTime

	outcome := e.applyLocked(tx, block, blockTime, idx)
	if outcome.Valid() {
		e.processed[tx.Hash] = true
	} else {
		e.logger.Debug("transaction rejected",
			slog.String("tx", tx.Hash.Hex()),
			slog.Int("type", int(tx.Type)),
			slog.String("reason", outcome.String()))
	}
	e.metrics.Transaction(outcome.String())
	return outcome
}

func (e *Engine) applyLocked(tx *types.Transaction, block int64, blockTime int64, idx uint32) types.OutcomeCode {
	// Transactions that create properties or sweep an ecosystem carry no
	// property id; they are gated on the ecosystem instead, which also
	// keeps test-ecosystem issuance exempt from height gating.
	gateProperty := tx.Property
	switch tx.Type {
	case types.TxTypeCreatePropertyFixed, types.TxTypeCreateCrowdsale,
		types.TxTypeCreatePropertyManaged, types.TxTypeSendAll:
		gateProperty = uint32(tx.Ecosystem)
	}
	if !e.gate.IsTransactionTypeAllowed(block, gateProperty, tx.Type, tx.Version) {
		return types.OutcomeNotActivated
	}

	switch tx.Type {
	case types.TxTypeSimpleSend:
		return e.handleSimpleSend(tx, blockTime, block)
	case types.TxTypeSendToOwners:
		return e.handleSendToOwners(tx)
	case types.TxTypeSendAll:
		return e.handleSendAll(tx)
	case types.TxTypeDExSellOffer:
		return e.handleDExSellOffer(tx, block)
	case types.TxTypeDExAccept:
		return e.handleDExAccept(tx, block)
	case types.TxTypeMetaDExTrade:
		return e.handleMetaDExTrade(tx, block, idx)
	case types.TxTypeMetaDExCancelPrice, types.TxTypeMetaDExCancelPair, types.TxTypeMetaDExCancelEcosystem:
		return e.handleMetaDExCancel(tx)
	case types.TxTypeCreatePropertyFixed:
		return e.handleCreateFixed(tx)
	case types.TxTypeCreateCrowdsale:
		return e.handleCreateCrowdsale(tx, block, blockTime)
	case types.TxTypeCloseCrowdsale:
		return e.handleCloseCrowdsale(tx, blockTime)
	case types.TxTypeCreatePropertyManaged:
		return e.handleCreateManaged(tx)
	case types.TxTypeGrantTokens:
		return e.handleGrant(tx)
	case types.TxTypeRevokeTokens:
		return e.handleRevoke(tx)
	case types.TxTypeChangeIssuer:
		return e.handleChangeIssuer(tx)
	case types.TxTypeEnableFreezing:
		return e.handleEnableFreezing(tx, block)
	case types.TxTypeDisableFreezing:
		return e.handleDisableFreezing(tx)
	case types.TxTypeFreezeTokens:
		return e.handleFreeze(tx, block)
	case types.TxTypeUnfreezeTokens:
		return e.handleUnfreeze(tx, block)
	case types.TxTypeActivateFeature:
		return e.handleActivateFeature(tx, block)
	case types.TxTypeDeactivateFeature:
		return e.handleDeactivateFeature(tx, block)
	case types.TxTypeAlert:
		return e.handleAlert(tx)
	}
	return types.OutcomeUnknownType
}

// ApplyPayment settles part of a DEx accept after the chain layer observed
// a settlement-asset payment of value units from buyer to seller.
func (e *Engine) ApplyPayment(buyer, seller string, propertyID uint32, value int64, block int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dexMath := e.gate.IsFeatureActivated(consensus.FeatureDExMath, block)
	return e.exchange.NotifyPayment(buyer, seller, propertyID, value, dexMath)
}

// HasTransaction reports whether the engine has processed the transaction.
// Implements consensus.TransactionIndex.
func (e *Engine) HasTransaction(txHash common.Hash) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.processed[txHash]
}

// snapshotSections lists every persistable state component in a fixed
// order.
func (e *Engine) snapshotSections() []state.Section {
	return []state.Section{
		e.ledger,
		e.registry,
		e.book,
		e.exchange,
		e.crowdsales,
		e.feeCache,
		e.gate,
		(*txIndexSection)(&e.processed),
	}
}

// Persist writes a full-state snapshot at the given height.
func (e *Engine) Persist(db storage.Database, height int64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return state.SaveSnapshot(db, height, e.snapshotSections()...)
}

// Restore replaces all state from the database's snapshot and returns its
// height. A corrupted snapshot is fatal.
func (e *Engine) Restore(db storage.Database) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.LoadSnapshot(db, e.snapshotSections()...)
}
