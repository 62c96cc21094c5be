package types

// Property identifiers are 32-bit and partitioned into two disjoint
// ecosystems so that experimental tokens can never collide with production
// ones.
const (
	// PropertyIDWildcard is used by administrative transactions that do not
	// target a concrete property.
	PropertyIDWildcard uint32 = 0

	// PropertyIDBase is the production-ecosystem settlement token.
	PropertyIDBase uint32 = 1

	// PropertyIDTestBase is the divisible settlement token of the test
	// ecosystem.
	PropertyIDTestBase uint32 = 2

	// MaxMainPropertyID is the largest production-ecosystem identifier.
	MaxMainPropertyID uint32 = 0x7FFFFFFF

	// FirstTestPropertyID is the smallest identifier handed out to a newly
	// issued test-ecosystem property.
	FirstTestPropertyID uint32 = 0x80000003

	// FirstMainPropertyID is the first identifier handed out to a newly
	// issued production-ecosystem property.
	FirstMainPropertyID uint32 = 3
)

// Ecosystem distinguishes the production and test property-id ranges.
type Ecosystem uint8

const (
	EcosystemMain Ecosystem = 1
	EcosystemTest Ecosystem = 2
)

// IsTestEcosystemProperty reports whether the property id belongs to the
// test ecosystem. The reserved test settlement token counts as test.
func IsTestEcosystemProperty(propertyID uint32) bool {
	return propertyID == PropertyIDTestBase || propertyID >= FirstTestPropertyID
}

// IsMainEcosystemProperty reports whether the property id belongs to the
// production ecosystem.
func IsMainEcosystemProperty(propertyID uint32) bool {
	return propertyID > PropertyIDWildcard && !IsTestEcosystemProperty(propertyID)
}

// EcosystemOf maps a property id onto its ecosystem.
func EcosystemOf(propertyID uint32) Ecosystem {
	if IsTestEcosystemProperty(propertyID) {
		return EcosystemTest
	}
	return EcosystemMain
}

// SameEcosystem reports whether two property ids may legally appear on the
// two sides of a trade.
func SameEcosystem(a, b uint32) bool {
	return EcosystemOf(a) == EcosystemOf(b)
}
