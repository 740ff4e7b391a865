// Package transport defines the structured request/response contract
// between spotbookd and its callers. The wire format and transport
// socket are out of the core's scope (spec.md's non-goals leave the
// ROUTER/PUB binding to the caller); this package only fixes the Go
// shapes a binding adapts to and from whatever wire encoding it chooses.
package transport

import (
	"spotbook/domain"
	"spotbook/events"
)

// Op names one matching-engine operation. Bindings route on this field.
type Op string

const (
	OpAddPair            Op = "add_pair"
	OpLimitBuy           Op = "limit_buy"
	OpLimitSell          Op = "limit_sell"
	OpMarketBuy          Op = "market_buy"
	OpMarketSell         Op = "market_sell"
	OpCancelOrder        Op = "cancel_order"
	OpSetIcebergQuantity Op = "set_iceberg_quantity"
)

// Request is the structured form of one inbound call. Fields unused by
// the given Op are left zero.
type Request struct {
	Op              Op
	PairID          domain.PairID
	CID             domain.ClientID
	Owner           domain.Owner
	OrderID         domain.OrderID
	ExistingOrderID *domain.OrderID
	BaseAssetID     domain.AssetID
	QuoteAssetID    domain.AssetID
	AdminAccount    string
	FeeAccount      string
	Price           uint64
	Amnt            uint64
	Iqty            uint64
	Timestamp       int64
	ExpiresAt       int64
	MakerFeeBps     uint32
	TakerFeeBps     uint32
	TIF             domain.TimeInForce
	IsBid           bool
}

// Response is the structured form of one outbound reply: the resulting
// order (if any), the error string (empty on success), and the batch of
// events this request produced.
type Response struct {
	OrderID   domain.OrderID
	HasOrder  bool
	Error     string
	Events    []events.Event
}
