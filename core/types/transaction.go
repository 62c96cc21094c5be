package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Transaction type codes understood by the engine. The numbering is part of
// consensus and must never be reordered.
const (
	TxTypeSimpleSend             uint16 = 0
	TxTypeSendToOwners           uint16 = 3
	TxTypeSendAll                uint16 = 4
	TxTypeDExSellOffer           uint16 = 20
	TxTypeDExAccept              uint16 = 22
	TxTypeMetaDExTrade           uint16 = 25
	TxTypeMetaDExCancelPrice     uint16 = 26
	TxTypeMetaDExCancelPair      uint16 = 27
	TxTypeMetaDExCancelEcosystem uint16 = 28
	TxTypeCreatePropertyFixed    uint16 = 50
	TxTypeCreateCrowdsale        uint16 = 51
	TxTypeCloseCrowdsale         uint16 = 53
	TxTypeCreatePropertyManaged  uint16 = 54
	TxTypeGrantTokens            uint16 = 55
	TxTypeRevokeTokens           uint16 = 56
	TxTypeChangeIssuer           uint16 = 70
	TxTypeEnableFreezing         uint16 = 71
	TxTypeDisableFreezing        uint16 = 72
	TxTypeFreezeTokens           uint16 = 185
	TxTypeUnfreezeTokens         uint16 = 186
	TxTypeDeactivateFeature      uint16 = 65533
	TxTypeActivateFeature        uint16 = 65534
	TxTypeAlert                  uint16 = 65535
)

// Payload packet versions.
const (
	TxVersion0 uint16 = 0
	TxVersion1 uint16 = 1

	// TxVersionAny marks administrative restriction-table rows that match
	// every packet version.
	TxVersionAny uint16 = 0xFFFF
)

// DEx sell-offer sub-actions.
const (
	DExActionNew    uint8 = 1
	DExActionUpdate uint8 = 2
	DExActionCancel uint8 = 3
)

// MetaDEx trade actions. ActionTrade adds liquidity; the cancel actions
// widen progressively from a single price level to a whole ecosystem.
const (
	MetaDExActionTrade           uint8 = 1
	MetaDExActionCancelPrice     uint8 = 2
	MetaDExActionCancelPair      uint8 = 3
	MetaDExActionCancelEcosystem uint8 = 4
)

// Transaction is a fully decoded token-layer payload together with the
// identity of the carrying on-chain transaction. Payload decoding happens
// upstream; by the time a Transaction reaches the engine every field is
// already typed and validated for shape (not for consensus rules).
//
// Only the fields relevant to the transaction's type carry meaning; the
// rest are zero.
type Transaction struct {
	Hash    common.Hash
	Sender  string
	Type    uint16
	Version uint16

	// Receiver of sends, grants and issuer changes; the seller for DEx
	// accepts; the frozen address for freeze/unfreeze.
	Receiver string

	// Primary property and amount. For MetaDEx trades this is the side
	// offered for sale.
	Property uint32
	Amount   int64

	// Counter-side of a MetaDEx trade, or the distribution property of a
	// cross-property send-to-owners.
	DesiredProperty uint32
	DesiredAmount   int64

	// DEx sell-offer parameters.
	Action        uint8
	PaymentWindow uint8
	MinimumFee    int64

	// Issuance parameters.
	Ecosystem        Ecosystem
	Divisible        bool
	Name             string
	Category         string
	Subcategory      string
	URL              string
	Data             string
	TokensPerUnit    int64
	Deadline         int64
	EarlyBirdBonus   uint8
	IssuerPercentage uint8

	// Feature administration parameters.
	FeatureID        uint16
	ActivationBlock  int64
	MinClientVersion uint32

	// Alert parameters.
	AlertType   uint16
	AlertExpiry int64
	AlertText   string
}
