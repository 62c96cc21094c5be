// Package consensus holds the per-network parameter tables, the feature
// activation gate and the checkpoint verifier. Every rule here is consensus
// critical: two nodes disagreeing on any value in this package will diverge.
package consensus

import (
	"github.com/ethereum/go-ethereum/common"

	"tokenlayer/core/types"
)

// NeverBlock is the sentinel height assigned to features and transaction
// types that are not scheduled for activation.
const NeverBlock int64 = 999999

// CheckpointInterval is the spacing of consensus checkpoints; heights that
// are not a multiple of it are never checked.
const CheckpointInterval int64 = 10000

// TransactionRestriction maps one (type, version) pair to the block at
// which it becomes valid.
type TransactionRestriction struct {
	TxType          uint16
	TxVersion       uint16
	AllowWildcard   bool
	ActivationBlock int64
}

// Checkpoint pins the expected consensus hash at a block height.
type Checkpoint struct {
	Height        int64
	BlockHash     common.Hash
	ConsensusHash common.Hash
}

// TransactionCheckpoint pins the existence of a processed transaction at or
// below a block height.
type TransactionCheckpoint struct {
	Height int64
	TxHash common.Hash
}

// Params carries every per-network consensus constant. The activation
// heights are mutable, but only through the feature activation gate; all
// other fields are fixed at construction.
type Params struct {
	Network string

	GenesisBlock int64

	// Notice window for feature activations, in blocks.
	MinActivationBlocks int64
	MaxActivationBlocks int64

	// Blocks between an enable-freezing transaction and freezing becoming
	// usable, once the freeze-notice feature is live.
	FreezeWaitPeriod int64

	// Transaction-type activation heights.
	AlertBlock          int64
	SimpleSendBlock     int64
	DExBlock            int64
	PropertyBlock       int64
	ManagedBlock        int64
	SendToOwnersBlock   int64
	MetaDExBlock        int64
	SendAllBlock        int64
	BetBlock            int64
	SendToOwnersV1Block int64

	// Feature activation heights without a dedicated transaction type.
	GrantEffectsBlock   int64
	DExMathBlock        int64
	CrowdCrossoverBlock int64
	TradeAllPairsBlock  int64
	FeesBlock           int64
	FreezeNoticeBlock   int64

	checkpoints   []Checkpoint
	txCheckpoints []TransactionCheckpoint
}

// Restrictions returns the transaction restriction table derived from the
// current activation heights. The table is rebuilt on each call so feature
// activations are reflected immediately.
func (p *Params) Restrictions() []TransactionRestriction {
	return []TransactionRestriction{
		{types.TxTypeAlert, types.TxVersionAny, true, p.AlertBlock},
		{types.TxTypeActivateFeature, types.TxVersionAny, true, p.AlertBlock},
		{types.TxTypeDeactivateFeature, types.TxVersionAny, true, p.AlertBlock},

		{types.TxTypeSimpleSend, types.TxVersion0, false, p.SimpleSendBlock},

		{types.TxTypeDExSellOffer, types.TxVersion0, false, p.DExBlock},
		{types.TxTypeDExSellOffer, types.TxVersion1, false, p.DExBlock},
		{types.TxTypeDExAccept, types.TxVersion0, false, p.DExBlock},

		{types.TxTypeCreatePropertyFixed, types.TxVersion0, false, p.PropertyBlock},
		{types.TxTypeCreateCrowdsale, types.TxVersion0, false, p.PropertyBlock},
		{types.TxTypeCreateCrowdsale, types.TxVersion1, false, p.PropertyBlock},
		{types.TxTypeCloseCrowdsale, types.TxVersion0, false, p.PropertyBlock},

		{types.TxTypeCreatePropertyManaged, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeGrantTokens, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeRevokeTokens, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeChangeIssuer, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeEnableFreezing, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeDisableFreezing, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeFreezeTokens, types.TxVersion0, false, p.ManagedBlock},
		{types.TxTypeUnfreezeTokens, types.TxVersion0, false, p.ManagedBlock},

		{types.TxTypeSendToOwners, types.TxVersion0, false, p.SendToOwnersBlock},
		{types.TxTypeSendToOwners, types.TxVersion1, false, p.SendToOwnersV1Block},

		{types.TxTypeMetaDExTrade, types.TxVersion0, false, p.MetaDExBlock},
		{types.TxTypeMetaDExCancelPrice, types.TxVersion0, false, p.MetaDExBlock},
		{types.TxTypeMetaDExCancelPair, types.TxVersion0, false, p.MetaDExBlock},
		{types.TxTypeMetaDExCancelEcosystem, types.TxVersion0, false, p.MetaDExBlock},

		{types.TxTypeSendAll, types.TxVersion0, false, p.SendAllBlock},
	}
}

// Checkpoints returns the hardcoded consensus checkpoints for the network.
func (p *Params) Checkpoints() []Checkpoint { return p.checkpoints }

// TransactionCheckpoints returns the hardcoded transaction-existence
// checkpoints for the network.
func (p *Params) TransactionCheckpoints() []TransactionCheckpoint { return p.txCheckpoints }

// MainParams constructs the production-network parameter set.
func MainParams() *Params {
	return &Params{
		Network:             "main",
		GenesisBlock:        4020000,
		MinActivationBlocks: 28800,  // ~2 weeks
		MaxActivationBlocks: 172800, // ~12 weeks
		FreezeWaitPeriod:    57600,  // ~4 weeks

		AlertBlock:          0,
		SimpleSendBlock:     4020000,
		DExBlock:            4032000,
		PropertyBlock:       4032000,
		ManagedBlock:        4032000,
		SendToOwnersBlock:   4032000,
		MetaDExBlock:        4032000,
		SendAllBlock:        4032000,
		BetBlock:            9999999,
		SendToOwnersV1Block: 9999999,

		GrantEffectsBlock:   4032000,
		DExMathBlock:        4032000,
		CrowdCrossoverBlock: 4032000,
		TradeAllPairsBlock:  4032000,
		FeesBlock:           9999999,
		FreezeNoticeBlock:   9999999,

		checkpoints: []Checkpoint{
			{
				Height:        4020000,
				BlockHash:     common.HexToHash("0000000026736ec890b8b1df451e12de93d63cf33987acae4bf4add58d158bf9"),
				ConsensusHash: common.HexToHash("b6503145f1cdc561c87cb3e1b8fccdf3e2dd182c35c1aab3840ef584d8841376"),
			},
			{
				Height:        4034903,
				BlockHash:     common.HexToHash("000000003afefa6963243fd0f968728c9ef887cf418bd21da2d273f60bab0b66"),
				ConsensusHash: common.HexToHash("63e79dba25d4db0a920af8517746ad8eaf087a72e177047a12e01f9e3b15843a"),
			},
		},
		txCheckpoints: []TransactionCheckpoint{
			{4032090, common.HexToHash("84c7eb3ced6c54340a839f046952f67787ca4f4e543ca145c3560d60da9b68f6")},
			{4032097, common.HexToHash("099dc32075d67212426d5139c47e17aa2bdcb23d1baabb7b29bae16471e303b1")},
			{4032249, common.HexToHash("3a0a1904722eba4e91918d53a0939b99e2ca1f8489fb05b87a7ab2f42724a0a2")},
			{4032249, common.HexToHash("bcc5f5b9574e1d1ed465f362f9d744adcc1a18f4cf80ebe497eb1571258eedba")},
			{4032252, common.HexToHash("94c2c694bf20eb6da98cdda52576734412df458844931a64aaad757335e5a8ef")},
			{4032553, common.HexToHash("e63f5a79b5003c0a88eb80b8165c673d28be83fd73055ec37563b4a32f22f26e")},
		},
	}
}

// TestNetParams constructs the public test network parameter set. Nearly
// everything is live from genesis so new transaction logic can be exercised
// without waiting for activations.
func TestNetParams() *Params {
	return &Params{
		Network:             "test",
		GenesisBlock:        263000,
		MinActivationBlocks: 0,
		MaxActivationBlocks: 999999,
		FreezeWaitPeriod:    0,

		AlertBlock:          0,
		SimpleSendBlock:     0,
		DExBlock:            0,
		PropertyBlock:       0,
		ManagedBlock:        0,
		SendToOwnersBlock:   0,
		MetaDExBlock:        0,
		SendAllBlock:        0,
		BetBlock:            999999,
		SendToOwnersV1Block: 0,

		GrantEffectsBlock:   0,
		DExMathBlock:        0,
		CrowdCrossoverBlock: 0,
		TradeAllPairsBlock:  0,
		FeesBlock:           0,
		FreezeNoticeBlock:   0,
	}
}

// RegTestParams constructs the regression-test parameter set. Feature
// blocks start unscheduled so activation paths themselves can be tested,
// and the notice window is a handful of blocks.
func RegTestParams() *Params {
	return &Params{
		Network:             "regtest",
		GenesisBlock:        101,
		MinActivationBlocks: 5,
		MaxActivationBlocks: 10,
		FreezeWaitPeriod:    10,

		AlertBlock:          0,
		SimpleSendBlock:     0,
		DExBlock:            0,
		PropertyBlock:       0,
		ManagedBlock:        0,
		SendToOwnersBlock:   0,
		MetaDExBlock:        0,
		SendAllBlock:        0,
		BetBlock:            NeverBlock,
		SendToOwnersV1Block: NeverBlock,

		GrantEffectsBlock:   NeverBlock,
		DExMathBlock:        NeverBlock,
		CrowdCrossoverBlock: NeverBlock,
		TradeAllPairsBlock:  NeverBlock,
		FeesBlock:           NeverBlock,
		FreezeNoticeBlock:   NeverBlock,
	}
}

// ParamsFor returns a fresh parameter set for the named network. Unknown
// names fall back to mainnet.
func ParamsFor(network string) *Params {
	switch network {
	case "test":
		return TestNetParams()
	case "regtest":
		return RegTestParams()
	default:
		return MainParams()
	}
}
