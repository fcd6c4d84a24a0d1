package domain

// OrderSide is the direction of a resting trade intent.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus is the lifecycle state of an order. Filled and Cancelled
// are terminal.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "ACTIVE"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Open reports whether the order can still participate in matching.
func (s OrderStatus) Open() bool {
	return s == OrderStatusActive || s == OrderStatusPartial
}

// Order is a resting intent to trade units on the secondary market.
// Fill bookkeeping is mutated only by the matching engine; cancellation
// only by the owning holder.
type Order struct {
	ID       string
	HolderID string
	AssetID  string
	Side     OrderSide

	Units       int64   // requested units
	LimitPrice  float64 // limit price per unit
	UnitsFilled int64

	Status OrderStatus

	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}

// Remaining returns the unfilled unit count.
func (o *Order) Remaining() int64 {
	return o.Units - o.UnitsFilled
}

// RecomputeStatus updates Status from fill bookkeeping. Terminal
// Cancelled is never overwritten.
func (o *Order) RecomputeStatus() {
	if o.Status == OrderStatusCancelled {
		return
	}
	switch {
	case o.UnitsFilled >= o.Units:
		o.Status = OrderStatusFilled
	case o.UnitsFilled > 0:
		o.Status = OrderStatusPartial
	default:
		o.Status = OrderStatusActive
	}
}
