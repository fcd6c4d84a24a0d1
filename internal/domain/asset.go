package domain

import "math"

// AssetStatus is the lifecycle state of a tokenized asset.
type AssetStatus string

const (
	AssetStatusPendingReview AssetStatus = "PENDING_REVIEW"
	AssetStatusApproved      AssetStatus = "APPROVED"
	AssetStatusRejected      AssetStatus = "REJECTED"
	AssetStatusTokenized     AssetStatus = "TOKENIZED"
	AssetStatusSoldOut       AssetStatus = "SOLD_OUT"
)

// AssetKind categorizes the underlying real-world asset.
type AssetKind string

const (
	AssetKindApartment AssetKind = "APARTMENT"
	AssetKindVilla     AssetKind = "VILLA"
	AssetKindOffice    AssetKind = "OFFICE"
	AssetKindRetail    AssetKind = "RETAIL"
	AssetKindWarehouse AssetKind = "WAREHOUSE"
)

// UnitsPerSizeUnit is the issuance ratio: an asset of size S carries
// floor(S * 10000) ownership units.
const UnitsPerSizeUnit = 10000

// Asset represents a real-world asset converted (or convertible) into a
// fixed supply of fungible ownership units.
//
// TotalUnits and UnitPrice are derived once at submission via
// CalculateUnits and are immutable afterwards; tokenization never
// recomputes them. UnitsSold is a cached projection of the transaction
// log and must never be treated as authoritative.
type Asset struct {
	ID          string
	Title       string
	Description string
	Kind        AssetKind

	// Financials
	TotalValue float64 // asset valuation in fiat
	SizeMetric float64 // size in square meters

	// Derived unit economics (set once by CalculateUnits)
	TotalUnits int64
	UnitPrice  float64
	UnitsSold  int64 // cached projection only

	// Rental economics
	MonthlyRent float64
	AnnualYield float64

	// Issuance
	Symbol        string
	SellerID      string
	IssuerAccount string
	IssuanceOpRef string

	Status      AssetStatus
	ReviewNotes string

	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}

// CalculateUnits derives TotalUnits and UnitPrice from the invariant
// formula. Called once at submission; values are immutable afterwards.
func (a *Asset) CalculateUnits() {
	a.TotalUnits = int64(math.Floor(a.SizeMetric * UnitsPerSizeUnit))
	if a.TotalUnits > 0 {
		a.UnitPrice = a.TotalValue / float64(a.TotalUnits)
	} else {
		a.UnitPrice = 0
	}
}

// Tokenized reports whether issuance has been recorded for the asset.
func (a *Asset) Tokenized() bool {
	return a.IssuanceOpRef != ""
}

// Purchasable reports whether the asset may accept primary-market
// purchases in its current state.
func (a *Asset) Purchasable() bool {
	return a.Status == AssetStatusApproved || a.Status == AssetStatusTokenized
}
