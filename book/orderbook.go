// Package book implements the OrderBook: the single consistent view
// combining L1 market state, L2 price levels, and L3 order storage. It is
// the focus of every invariant that crosses those three layers.
package book

import (
	"spotbook/domain"
	"spotbook/events"
	"spotbook/l1"
	"spotbook/l2"
	"spotbook/l3"
)

// OrderBook owns one L1, one L2, one bid-side and one ask-side L3 store
// (kept separate so a bid and an ask can rest at the same price without
// colliding in the per-price FIFO arena), a fee-recipient map, and a dust
// threshold. It emits events into the Accumulator threaded through every
// call.
type OrderBook struct {
	L1 *l1.State
	L2 *l2.Book

	bidOrders *l3.Store
	askOrders *l3.Store

	feeRecipients map[domain.ClientID]string
	dust          uint64
}

func NewOrderBook(dust uint64) *OrderBook {
	return &OrderBook{
		L1:            l1.New(),
		L2:            l2.NewBook(),
		bidOrders:     l3.NewStore(dust),
		askOrders:     l3.NewStore(dust),
		feeRecipients: make(map[domain.ClientID]string),
		dust:          dust,
	}
}

func (b *OrderBook) storeFor(isBid bool) *l3.Store {
	if isBid {
		return b.bidOrders
	}
	return b.askOrders
}

func (b *OrderBook) SetFeeRecipient(cid domain.ClientID, account string) {
	b.feeRecipients[cid] = account
}

func (b *OrderBook) FeeRecipient(cid domain.ClientID) (string, bool) {
	account, ok := b.feeRecipients[cid]
	return account, ok
}

// GetOrder looks up a live order on the given side by id.
func (b *OrderBook) GetOrder(isBid bool, orderID domain.OrderID) (*domain.Order, bool) {
	return b.storeFor(isBid).GetOrder(orderID)
}

// PlaceBid creates a resting bid order and emits SpotOrderPlaced plus a
// block-changed event for its price level.
func (b *OrderBook) PlaceBid(acc *events.Accumulator, cid domain.ClientID, pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps uint32) (*domain.Order, error) {
	return b.place(acc, true, cid, pairID, baseAssetID, quoteAssetID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps)
}

// PlaceAsk is the symmetric counterpart of PlaceBid.
func (b *OrderBook) PlaceAsk(acc *events.Accumulator, cid domain.ClientID, pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps uint32) (*domain.Order, error) {
	return b.place(acc, false, cid, pairID, baseAssetID, quoteAssetID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps)
}

func (b *OrderBook) place(acc *events.Accumulator, isBid bool, cid domain.ClientID, pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps uint32) (*domain.Order, error) {
	if price == 0 {
		return nil, domain.ErrPriceIsZero
	}
	if amnt == 0 {
		return nil, domain.ErrAmountIsZero
	}
	if amnt-iqty == 0 {
		return nil, domain.ErrPublicAmountIsZero
	}
	order, err := b.storeFor(isBid).CreateOrder(cid, owner, isBid, price, amnt, iqty, timestamp, expiresAt, makerFeeBps)
	if err != nil {
		return nil, err
	}

	acc.Emit(events.Event{
		Kind: events.KindOrderPlaced, CID: cid, PairID: pairID, OrderID: order.ID,
		IsBid: isBid, Price: price, Amnt: amnt, Iqty: iqty, Pqty: order.Pqty, Cqty: order.Cqty,
		Timestamp: timestamp, ExpiresAt: expiresAt,
	})

	if err := b.UpdatePriceLevel(acc, pairID, true, isBid, price, order.Pqty, order.Cqty, false, 0, timestamp); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdatePriceLevel is the sole path by which L2 aggregate depth changes.
// is_placed=true adds deltas (inserting the price if new); is_placed=false
// subtracts them with saturating subtraction and removes the price if
// L3 now reports it empty, or if deletePrice is requested explicitly.
func (b *OrderBook) UpdatePriceLevel(acc *events.Accumulator, pairID domain.PairID, isPlaced, isBid bool, price, deltaPqty, deltaCqty uint64, deletePrice bool, deletePriceValue uint64, now int64) error {
	if isPlaced {
		if !b.L2.PriceExists(isBid, price) {
			b.L2.InsertPrice(isBid, price)
		}
		if err := b.L2.SetPublicLevel(isBid, price, b.L2.PublicLevel(isBid, price)+deltaPqty); err != nil {
			return err
		}
		if err := b.L2.SetCurrentLevel(isBid, price, b.L2.CurrentLevel(isBid, price)+deltaCqty); err != nil {
			return err
		}
	} else {
		newPqty := saturatingSub(b.L2.PublicLevel(isBid, price), deltaPqty)
		newCqty := saturatingSub(b.L2.CurrentLevel(isBid, price), deltaCqty)
		if b.L2.PriceExists(isBid, price) {
			if err := b.L2.SetPublicLevel(isBid, price, newPqty); err != nil {
				return err
			}
			if err := b.L2.SetCurrentLevel(isBid, price, newCqty); err != nil {
				return err
			}
		}
		if newCqty == 0 && b.storeFor(isBid).IsEmpty(price) {
			b.L2.RemovePrice(isBid, price)
		}
		if deletePrice {
			b.L2.RemovePrice(isBid, deletePriceValue)
		}
	}

	pqtyAfter, cqtyAfter := uint64(0), uint64(0)
	if b.L2.PriceExists(isBid, price) {
		pqtyAfter, cqtyAfter = b.L2.PublicLevel(isBid, price), b.L2.CurrentLevel(isBid, price)
	}
	acc.Emit(events.Event{
		Kind: events.KindOrderBlockChanged, PairID: pairID, IsBid: isBid, Price: price,
		PqtyAfter: pqtyAfter, CqtyAfter: cqtyAfter, Timestamp: now,
	})
	return nil
}

// ClearEmptyHead pops L2 heads on the given side whose L3 chain has gone
// empty until a head backed by at least one order is exposed.
func (b *OrderBook) ClearEmptyHead(isBid bool) (uint64, error) {
	for {
		head, ok := b.headFunc(isBid)()
		if !ok {
			return 0, domain.ErrPriceIsZero
		}
		if !b.storeFor(isBid).IsEmpty(head) {
			return head, nil
		}
		b.L2.ClearHead(isBid)
	}
}

func (b *OrderBook) headFunc(isBid bool) func() (uint64, bool) {
	if isBid {
		return b.L2.BidHead
	}
	return b.L2.AskHead
}

// PopFront clears empty heads, lazily expires the live head order if its
// deadline has passed (retrying), and otherwise pops and returns it.
func (b *OrderBook) PopFront(acc *events.Accumulator, pairID domain.PairID, isBid bool, now int64) (*domain.Order, error) {
	for {
		price, err := b.ClearEmptyHead(isBid)
		if err != nil {
			return nil, err
		}
		headID, ok := b.storeFor(isBid).Head(price)
		if !ok {
			continue
		}
		order, ok := b.storeFor(isBid).GetOrder(headID)
		if !ok {
			continue
		}
		if order.IsExpired(now) {
			if err := b.expireOrder(acc, pairID, headID, isBid, now); err != nil {
				return nil, err
			}
			continue
		}
		popped, _ := b.storeFor(isBid).PopFront(price)
		return popped, nil
	}
}

// ExecuteResult carries the post-match remainders needed by the caller's
// matching loop to decide whether to continue.
type ExecuteResult struct {
	TakerCleared bool
	MakerCleared bool
	BaseVolume   uint64
	QuoteVolume  uint64
}

// Execute is the matching primitive for a taker against one resting
// maker. taker is a transient order not (yet) inserted into L3; maker is
// the current L3 head at its price level. taker.Price must already be set
// to the execution price for this fill (the current maker-side level).
func (b *OrderBook) Execute(acc *events.Accumulator, taker *domain.Order, pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, now int64) (ExecuteResult, error) {
	makerIsBid := !taker.IsBid
	makerStore := b.storeFor(makerIsBid)
	makerID, ok := makerStore.Head(taker.Price)
	if !ok {
		return ExecuteResult{}, domain.ErrL2PriceMissing
	}
	maker, ok := makerStore.GetOrder(makerID)
	if !ok {
		return ExecuteResult{}, domain.ErrL2PriceMissing
	}

	price := taker.Price
	converted := domain.ConvertToMakerMeasure(taker.IsBid, taker.Cqty, price)
	makerClear := converted >= maker.Cqty
	takerClear := converted <= maker.Cqty

	var matchAmount uint64
	if takerClear {
		matchAmount = taker.Cqty
	} else {
		matchAmount = domain.GetRequired(taker.IsBid, price, maker.Cqty)
	}

	var base, quote uint64
	if taker.IsBid {
		quote = matchAmount
		base = matchAmount * domain.Scale / price
	} else {
		base = matchAmount
		quote = matchAmount * price / domain.Scale
	}

	if maker.ExpiresAt > 0 && maker.ExpiresAt <= now {
		if err := b.expireOrder(acc, pairID, maker.ID, makerIsBid, now); err != nil {
			return ExecuteResult{}, err
		}
		return ExecuteResult{}, domain.ErrOrderExpired
	}

	makerFeeBps := maker.FeeBps
	takerFeeBps := taker.FeeBps
	var baseFee, quoteFee uint64
	if taker.IsBid {
		baseFee = base * uint64(makerFeeBps) / 10000
		quoteFee = quote * uint64(takerFeeBps) / 10000
	} else {
		baseFee = base * uint64(takerFeeBps) / 10000
		quoteFee = quote * uint64(makerFeeBps) / 10000
	}

	takerBeforePqty, takerBeforeCqty := taker.Pqty, taker.Cqty
	makerBeforePqty, makerBeforeCqty := maker.Pqty, maker.Cqty

	if _, takerDropped := l3.DecreaseInPlace(taker, matchAmount, b.dust, takerClear); takerDropped {
		taker.Cqty, taker.Pqty = 0, 0
	}
	takerAfterCqty := taker.Cqty
	takerAfterPqty := taker.Pqty

	// L3 releases a deleted maker back to the pool, so the fill events read
	// from a copy taken before the decrease.
	makerSnap := maker.Clone()
	makerSent, makerDeleted, makerEmptiedPrice, makerPriceEmptied := makerStore.DecreaseOrder(maker.ID, converted, makerClear)
	_ = makerSent
	makerAfterCqty := saturatingSub(makerBeforeCqty, converted)
	makerAfterPqty := makerAfterCqty
	if makerAfterPqty > makerBeforePqty {
		makerAfterPqty = makerBeforePqty
	}
	if makerDeleted {
		makerAfterCqty, makerAfterPqty = 0, 0
	}

	emitFill := func(orderID domain.OrderID, cid domain.ClientID, owner domain.Owner, isBid bool, amnt, iqty, pqtyAfter, cqtyAfter uint64, expiresAt int64, isTaker bool) {
		kind := events.KindOrderPartiallyFilled
		if cqtyAfter == 0 {
			kind = events.KindOrderFullyFilled
		}
		acc.Emit(events.Event{
			Kind: kind, PairID: pairID, OrderID: orderID, CID: cid, IsBid: isBid,
			Price: price, Amnt: amnt, Iqty: iqty, Pqty: pqtyAfter, Cqty: cqtyAfter,
			Timestamp: now, ExpiresAt: expiresAt,
			TakerCID: taker.CID, MakerCID: makerSnap.CID,
			TakerOrderID: taker.ID, MakerOrderID: makerSnap.ID,
			TakerOwner: taker.Owner, MakerOwner: makerSnap.Owner, IsTaker: isTaker,
			BaseAssetID: baseAssetID, QuoteAssetID: quoteAssetID,
			BaseVolume: base, QuoteVolume: quote, BaseFee: baseFee, QuoteFee: quoteFee,
			MakerFeeBps: makerFeeBps, TakerFeeBps: takerFeeBps,
		})
	}

	emitFill(taker.ID, taker.CID, taker.Owner, taker.IsBid, taker.Amnt, taker.Iqty, takerAfterPqty, takerAfterCqty, taker.ExpiresAt, true)
	emitFill(makerSnap.ID, makerSnap.CID, makerSnap.Owner, makerIsBid, makerSnap.Amnt, makerSnap.Iqty, makerAfterPqty, makerAfterCqty, makerSnap.ExpiresAt, false)

	if err := b.UpdatePriceLevel(acc, pairID, false, taker.IsBid, price, takerBeforePqty-takerAfterPqty, takerBeforeCqty-takerAfterCqty, false, 0, now); err != nil {
		return ExecuteResult{}, err
	}
	makerDeleteFlag := makerDeleted && makerPriceEmptied
	if err := b.UpdatePriceLevel(acc, pairID, false, makerIsBid, price, makerBeforePqty-makerAfterPqty, makerBeforeCqty-makerAfterCqty, makerDeleteFlag, makerEmptiedPrice, now); err != nil {
		return ExecuteResult{}, err
	}

	// lmp moves only here, once per fill; a placement that matches nothing
	// leaves it unchanged.
	b.L1.SetLastMatchedPrice(price)

	return ExecuteResult{TakerCleared: takerClear, MakerCleared: makerDeleted, BaseVolume: base, QuoteVolume: quote}, nil
}

// expireOrder is the single funnel every expiry path (lazy and eager)
// goes through, guaranteeing consistent event emission and L2 bookkeeping.
func (b *OrderBook) expireOrder(acc *events.Accumulator, pairID domain.PairID, orderID domain.OrderID, isBid bool, now int64) error {
	order, ok := b.storeFor(isBid).GetOrder(orderID)
	if !ok {
		return domain.ErrOrderNotFound
	}
	snapshot := order.Clone()
	emptiedPrice, priceEmptied := b.storeFor(isBid).DeleteOrder(orderID)

	acc.Emit(events.Event{
		Kind: events.KindOrderExpired, PairID: pairID, OrderID: snapshot.ID, CID: snapshot.CID,
		IsBid: isBid, Price: snapshot.Price, Amnt: snapshot.Amnt, Iqty: snapshot.Iqty,
		Pqty: snapshot.Pqty, Cqty: snapshot.Cqty, Timestamp: now, ExpiresAt: snapshot.ExpiresAt,
	})

	return b.UpdatePriceLevel(acc, pairID, false, isBid, snapshot.Price, snapshot.Pqty, snapshot.Cqty, priceEmptied, emptiedPrice, now)
}

// ExpireOrders sweeps every order past its deadline on a side, emits
// SpotOrderExpired plus an advisory Transfer returning the held asset
// (quote for bids, base for asks) to its owner, and updates L2.
func (b *OrderBook) ExpireOrders(acc *events.Accumulator, pairID domain.PairID, isBid bool, baseAssetID, quoteAssetID domain.AssetID, managingAccountID string, now int64) {
	dormant := b.storeFor(isBid).RemoveDormantOrders(now)
	for _, order := range dormant {
		acc.Emit(events.Event{
			Kind: events.KindOrderExpired, PairID: pairID, OrderID: order.ID, CID: order.CID,
			IsBid: isBid, Price: order.Price, Amnt: order.Amnt, Iqty: order.Iqty,
			Pqty: order.Pqty, Cqty: order.Cqty, Timestamp: now, ExpiresAt: order.ExpiresAt,
		})

		heldAsset := baseAssetID
		if isBid {
			heldAsset = quoteAssetID
		}
		acc.Emit(events.Event{
			Kind: events.KindTransfer, PairID: pairID, OrderID: order.ID, CID: order.CID,
			IsBid: isBid, Amnt: order.Amnt, Timestamp: now,
			FromAccount: managingAccountID, ToAccount: string(order.Owner),
			BaseAssetID: heldAsset,
		})

		priceEmptied := b.storeFor(isBid).IsEmpty(order.Price)
		_ = b.UpdatePriceLevel(acc, pairID, false, isBid, order.Price, order.Pqty, order.Cqty, priceEmptied, order.Price, now)
	}
}

// CancelOrder removes a live order after verifying ownership.
func (b *OrderBook) CancelOrder(acc *events.Accumulator, pairID domain.PairID, isBid bool, orderID domain.OrderID, owner domain.Owner, now int64) error {
	order, ok := b.storeFor(isBid).GetOrder(orderID)
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Owner != owner {
		return domain.ErrOrderNotOwnedBySender
	}
	snapshot := order.Clone()
	emptiedPrice, priceEmptied := b.storeFor(isBid).DeleteOrder(orderID)

	acc.Emit(events.Event{
		Kind: events.KindOrderCancelled, PairID: pairID, OrderID: snapshot.ID, CID: snapshot.CID,
		IsBid: isBid, Price: snapshot.Price, Amnt: snapshot.Amnt, Iqty: snapshot.Iqty,
		Pqty: snapshot.Pqty, Cqty: snapshot.Cqty, Timestamp: now, ExpiresAt: snapshot.ExpiresAt,
	})

	return b.UpdatePriceLevel(acc, pairID, false, isBid, snapshot.Price, snapshot.Pqty, snapshot.Cqty, priceEmptied, emptiedPrice, now)
}

// SetIcebergQuantity reveals or hides part of a resting order's quantity.
// Only the public level moves; current (total) depth is unchanged.
func (b *OrderBook) SetIcebergQuantity(acc *events.Accumulator, pairID domain.PairID, isBid bool, orderID domain.OrderID, iqty uint64, now int64) error {
	store := b.storeFor(isBid)
	order, ok := store.GetOrder(orderID)
	if !ok {
		return domain.ErrOrderNotFound
	}
	beforePqty := order.Pqty
	updated, err := store.SetIcebergQuantity(orderID, iqty)
	if err != nil {
		return err
	}
	afterPqty := updated.Pqty

	isReveal := afterPqty >= beforePqty
	delta := afterPqty - beforePqty
	if !isReveal {
		delta = beforePqty - afterPqty
	}

	acc.Emit(events.Event{
		Kind: events.KindOrderIcebergQuantityChanged, PairID: pairID, OrderID: orderID,
		CID: updated.CID, IsBid: isBid, Price: updated.Price, Amnt: updated.Amnt,
		Iqty: iqty, Pqty: afterPqty, Cqty: updated.Cqty, Timestamp: now, ExpiresAt: updated.ExpiresAt,
	})

	return b.UpdatePriceLevel(acc, pairID, isReveal, isBid, updated.Price, delta, 0, false, 0, now)
}

// Prices returns every price in L3 arena order (not display order) that
// currently has at least one resting order on the given side.
func (b *OrderBook) Prices(isBid bool) []uint64 {
	return b.storeFor(isBid).Prices()
}

// OrdersAtPrice returns every resting order at price on the given side,
// head to tail. Used by snapshot serialization.
func (b *OrderBook) OrdersAtPrice(isBid bool, price uint64) []domain.Order {
	return b.storeFor(isBid).AllOrdersAtPrice(price)
}

// LoadOrder restores a previously-serialized order, preserving its id and
// FIFO position. Used only by snapshot restore.
func (b *OrderBook) LoadOrder(isBid bool, o domain.Order) {
	b.storeFor(isBid).LoadOrder(o)
}

// FeeRecipients returns the full fee-recipient map. Used by snapshot
// serialization; callers must not mutate the result.
func (b *OrderBook) FeeRecipients() map[domain.ClientID]string {
	return b.feeRecipients
}

// Dust returns the configured dust threshold. Used by snapshot
// serialization to restore a pair with its original threshold.
func (b *OrderBook) Dust() uint64 {
	return b.dust
}

// GetRequired is the inverse fixed-point conversion used by matching-
// amount calculations.
func (b *OrderBook) GetRequired(takerIsBid bool, price, amount uint64) uint64 {
	return domain.GetRequired(takerIsBid, price, amount)
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
