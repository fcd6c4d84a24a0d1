package domain

// Holding is the derived position of a (holder, asset) pair. It is a
// materialized view over Completed transaction rows and is never
// persisted.
type Holding struct {
	HolderID string
	AssetID  string

	UnitsOwned int64
	// CostBasis is the fiat amount paid for the currently owned units,
	// reduced proportionally on partial sale (average-cost method).
	CostBasis float64
}

// TradeTick is one executed secondary-market fill, recorded for
// market history and analytics.
type TradeTick struct {
	AssetID     string
	Price       float64
	Units       int64
	BuyOrderID  string
	SellOrderID string
	Timestamp   int64 // unix ms
}
