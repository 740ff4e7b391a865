// Package events defines the structured event stream emitted by the
// matching core and the bus that accumulates and fans it out. TIF-style
// exhaustive tagging is used here too: one Kind plus the union of all
// fields any variant needs, with unused fields left at their zero value.
package events

import "spotbook/domain"

type Kind int

const (
	KindPairAdded Kind = iota
	KindTransfer
	KindOrderBlockChanged
	KindOrderPlaced
	KindOrderMatched
	KindOrderPartiallyMatched
	KindOrderFullyMatched
	KindOrderCancelled
	KindOrderExpired
	KindOrderFilled
	KindOrderPartiallyFilled
	KindOrderFullyFilled
	KindOrderIcebergQuantityChanged
)

func (k Kind) String() string {
	switch k {
	case KindPairAdded:
		return "SpotPairAdded"
	case KindTransfer:
		return "Transfer"
	case KindOrderBlockChanged:
		return "SpotOrderBlockChanged"
	case KindOrderPlaced:
		return "SpotOrderPlaced"
	case KindOrderMatched:
		return "SpotOrderMatched"
	case KindOrderPartiallyMatched:
		return "SpotOrderPartiallyMatched"
	case KindOrderFullyMatched:
		return "SpotOrderFullyMatched"
	case KindOrderCancelled:
		return "SpotOrderCancelled"
	case KindOrderExpired:
		return "SpotOrderExpired"
	case KindOrderFilled:
		return "SpotOrderFilled"
	case KindOrderPartiallyFilled:
		return "SpotOrderPartiallyFilled"
	case KindOrderFullyFilled:
		return "SpotOrderFullyFilled"
	case KindOrderIcebergQuantityChanged:
		return "SpotOrderIcebergQuantityChanged"
	default:
		return "Unknown"
	}
}

// Event is the single concrete type for every variant in the stream. Core
// fields apply broadly; match/fill-only fields are documented as such and
// are zero on events that don't use them.
type Event struct {
	Kind Kind

	CID      domain.ClientID
	PairID   domain.PairID
	OrderID  domain.OrderID
	IsBid    bool
	Price    uint64
	Amnt     uint64
	Iqty     uint64
	Pqty     uint64
	Cqty     uint64
	Timestamp int64
	ExpiresAt int64

	// Match/fill-only.
	TakerCID     domain.ClientID
	MakerCID     domain.ClientID
	TakerOrderID domain.OrderID
	MakerOrderID domain.OrderID
	TakerOwner   domain.Owner
	MakerOwner   domain.Owner
	IsTaker      bool
	BaseAssetID  domain.AssetID
	QuoteAssetID domain.AssetID
	BaseVolume   uint64
	QuoteVolume  uint64
	BaseFee      uint64
	QuoteFee     uint64
	MakerFeeBps  uint32
	TakerFeeBps  uint32

	// Transfer-only.
	FromAccount string
	ToAccount   string

	// Block-changed-only.
	PqtyAfter uint64
	CqtyAfter uint64

	// Pair-added-only.
	AdminAccount string
	FeeAccount   string
	BaseAsset    domain.AssetID
	QuoteAsset   domain.AssetID
}
