package types

import "fmt"

// OutcomeCode classifies the result of applying one transaction. Zero means
// the transaction was valid and its ledger effects are committed; every
// other code means the transaction was rejected with no state change.
type OutcomeCode int

const (
	OutcomeOK OutcomeCode = iota

	// Authorization failures.
	OutcomeNotActivated
	OutcomeUnknownType
	OutcomeUnknownProperty
	OutcomeNotIssuer

	// Funds failures.
	OutcomeInsufficientFunds
	OutcomeFrozenSender

	// Structural failures.
	OutcomeInvalidAmount
	OutcomeSamePropertyTrade
	OutcomeCrossEcosystem
	OutcomeDuplicateOffer
	OutcomeNoSuchOffer
	OutcomeNoSuchCrowdsale
	OutcomeCrowdsaleClosed
	OutcomeFreezingDisabled
	OutcomeInvalidParameters
)

var outcomeNames = map[OutcomeCode]string{
	OutcomeOK:                "ok",
	OutcomeNotActivated:      "transaction type not activated",
	OutcomeUnknownType:       "unknown transaction type",
	OutcomeUnknownProperty:   "property does not exist",
	OutcomeNotIssuer:         "sender is not the property issuer",
	OutcomeInsufficientFunds: "insufficient funds",
	OutcomeFrozenSender:      "sender address is frozen",
	OutcomeInvalidAmount:     "invalid amount",
	OutcomeSamePropertyTrade: "trade references the same property twice",
	OutcomeCrossEcosystem:    "properties belong to different ecosystems",
	OutcomeDuplicateOffer:    "an open offer already exists",
	OutcomeNoSuchOffer:       "no matching open offer",
	OutcomeNoSuchCrowdsale:   "no active crowdsale",
	OutcomeCrowdsaleClosed:   "crowdsale already closed",
	OutcomeFreezingDisabled:  "freezing is not enabled for the property",
	OutcomeInvalidParameters: "invalid transaction parameters",
}

// Valid reports whether the outcome represents an accepted transaction.
func (c OutcomeCode) Valid() bool { return c == OutcomeOK }

func (c OutcomeCode) String() string {
	if name, ok := outcomeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(c))
}
