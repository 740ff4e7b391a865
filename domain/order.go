package domain

import "sync"

// Order is the unit of intent: a maker limit order resting in, or a taker
// order crossing, a price level. Hot fields touched on every match sit
// first; cid/owner/timestamps are touched only at creation and on event
// emission.
type Order struct {
	ID    OrderID
	CID   ClientID
	Owner Owner
	IsBid bool

	Price uint64 // non-zero, scaled 1e8
	Amnt  uint64 // original total size
	Iqty  uint64 // hidden quantity, 0 = not iceberg
	Pqty  uint64 // currently public remaining
	Cqty  uint64 // currently total remaining

	Timestamp int64 // ms since epoch
	ExpiresAt int64 // ms since epoch; <= 0 means "never"
	FeeBps    uint32
}

// can replace with a zero-gc allocator later, pooling is enough for now
var orderPool sync.Pool

func init() {
	orderPool.New = func() any {
		return &Order{}
	}
}

// NewOrder builds an Order from pooled memory. iqty must already be
// verified <= amnt by the caller (L3.CreateOrder).
func NewOrder(id OrderID, cid ClientID, owner Owner, isBid bool, price, amnt, iqty uint64, timestamp, expiresAt int64, feeBps uint32) *Order {
	o := orderPool.Get().(*Order)
	o.ID = id
	o.CID = cid
	o.Owner = owner
	o.IsBid = isBid
	o.Price = price
	o.Amnt = amnt
	o.Iqty = iqty
	o.Pqty = amnt - iqty
	o.Cqty = amnt
	o.Timestamp = timestamp
	o.ExpiresAt = expiresAt
	o.FeeBps = feeBps
	return o
}

// Clone returns a value copy suitable for event emission; events never
// alias engine state.
func (o *Order) Clone() Order {
	return *o
}

// Release returns the order to the pool. Only L3, which owns order
// identity, may call this.
func (o *Order) Release() {
	*o = Order{}
	orderPool.Put(o)
}

// IsExpired reports whether the order's hard deadline has passed as of now.
func (o *Order) IsExpired(now int64) bool {
	return o.ExpiresAt > 0 && o.ExpiresAt <= now
}
