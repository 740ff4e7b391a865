// Package engine implements MatchingEngine: the map of pair id to Pair
// that is the entry point for every trading request. Per the scheduling
// model, exactly one exclusive mutex guards all engine state; there is no
// per-pair or per-price-level locking. This replaces the teacher's
// goroutine-per-symbol design with a single
// request thread, as the concurrency redesign requires — the ring-buffer
// machinery that design used for order ingestion is not discarded, only
// re-homed one level up as the event bus's per-backend delivery queue.
package engine

import (
	"errors"
	"sync"
	"time"

	"spotbook/domain"
	"spotbook/events"
	"spotbook/metrics"
	"spotbook/pair"
)

// MatchingEngine owns every pair for one process. All trading calls
// acquire mu, forward to the owning Pair, then drain and return that
// request's event batch.
type MatchingEngine struct {
	mu    sync.Mutex
	pairs map[domain.PairID]*pair.Pair
	bus   *events.Bus
	dust  uint64
}

func New(bus *events.Bus, dust uint64) *MatchingEngine {
	return &MatchingEngine{
		pairs: make(map[domain.PairID]*pair.Pair),
		bus:   bus,
		dust:  dust,
	}
}

// AddPair creates the pair if absent, registers the client, and emits
// SpotPairAdded.
func (e *MatchingEngine) AddPair(cid domain.ClientID, adminAccount, feeAccount string, pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, timestamp int64) []events.Event {
	start := time.Now()
	defer func() {
		metrics.GetCollector().RecordRequestLatency("add_pair", float64(time.Since(start).Microseconds())/1000)
	}()
	e.mu.Lock()
	defer e.mu.Unlock()

	var acc events.Accumulator

	p, exists := e.pairs[pairID]
	if !exists {
		p = pair.New(pairID, baseAssetID, quoteAssetID, e.dust)
		e.pairs[pairID] = p
	}
	p.AddClient(cid, adminAccount, feeAccount)

	acc.Emit(events.Event{
		Kind: events.KindPairAdded, PairID: pairID, CID: cid, Timestamp: timestamp,
		AdminAccount: adminAccount, FeeAccount: feeAccount, BaseAsset: baseAssetID, QuoteAsset: quoteAssetID,
	})

	return e.drain(&acc)
}

func (e *MatchingEngine) drain(acc *events.Accumulator) []events.Event {
	drained := acc.Drain()
	if e.bus != nil {
		e.bus.Publish(drained)
	}
	return drained
}

// observe records one request's latency and, if it was rejected, bumps
// the rejected-orders counter under a stable reason label. Call as
// defer observe(op, pairID, time.Now())(&err) so the deferred closure
// sees the method's final named error.
func observe(op string, pairID domain.PairID, start time.Time) func(err *error) {
	return func(err *error) {
		c := metrics.GetCollector()
		c.RecordRequestLatency(op, float64(time.Since(start).Microseconds())/1000)
		if err != nil && *err != nil {
			c.RecordOrderRejected(string(pairID), rejectReason(*err))
		}
	}
}

// rejectReason maps a domain error to a small, fixed label value so the
// rejected-orders counter's cardinality stays bounded regardless of how
// error messages are worded.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPairNotFound):
		return "pair_not_found"
	case errors.Is(err, domain.ErrClientNotFound):
		return "client_not_found"
	case errors.Is(err, domain.ErrPriceIsZero):
		return "price_is_zero"
	case errors.Is(err, domain.ErrAmountIsZero):
		return "amount_is_zero"
	case errors.Is(err, domain.ErrPublicAmountIsZero):
		return "public_amount_is_zero"
	case errors.Is(err, domain.ErrIcebergQuantityBiggerThanWhole):
		return "iceberg_too_big"
	case errors.Is(err, domain.ErrUnsupportedTimeInForce):
		return "unsupported_tif"
	case errors.Is(err, domain.ErrOrderNotOwnedBySender):
		return "not_owner"
	case errors.Is(err, domain.ErrOrderNotSupportedByClientID):
		return "client_mismatch"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, domain.ErrOrderExpired):
		return "order_expired"
	case errors.Is(err, domain.ErrNoAskOrdersInOrderbook), errors.Is(err, domain.ErrNoBidOrdersInOrderbook):
		return "no_liquidity"
	default:
		return "other"
	}
}

// PairIDs returns every registered pair id, for callers (the expiry
// cron) that need to iterate pairs without reaching into Pairs directly.
func (e *MatchingEngine) PairIDs() []domain.PairID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]domain.PairID, 0, len(e.pairs))
	for id := range e.pairs {
		ids = append(ids, id)
	}
	return ids
}

func (e *MatchingEngine) PairCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pairs)
}

func (e *MatchingEngine) HasPair(pairID domain.PairID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pairs[pairID]
	return ok
}

func (e *MatchingEngine) getPair(pairID domain.PairID) (*pair.Pair, error) {
	p, ok := e.pairs[pairID]
	if !ok {
		return nil, domain.ErrPairNotFound
	}
	return p, nil
}

// LimitBuy forwards to the owning pair's limit_buy and drains the events
// produced by this single request.
func (e *MatchingEngine) LimitBuy(pairID domain.PairID, cid domain.ClientID, existingOrderID *domain.OrderID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps, takerFeeBps uint32, tif domain.TimeInForce) (order *domain.Order, evs []events.Event, err error) {
	defer observe("limit_buy", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, nil, err
	}
	var acc events.Accumulator
	order, err = p.LimitBuy(&acc, cid, existingOrderID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps, takerFeeBps, tif)
	return order, e.drain(&acc), err
}

// LimitSell is the symmetric counterpart of LimitBuy.
func (e *MatchingEngine) LimitSell(pairID domain.PairID, cid domain.ClientID, existingOrderID *domain.OrderID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps, takerFeeBps uint32, tif domain.TimeInForce) (order *domain.Order, evs []events.Event, err error) {
	defer observe("limit_sell", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, nil, err
	}
	var acc events.Accumulator
	order, err = p.LimitSell(&acc, cid, existingOrderID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps, takerFeeBps, tif)
	return order, e.drain(&acc), err
}

func (e *MatchingEngine) MarketBuy(pairID domain.PairID, cid domain.ClientID, owner domain.Owner, amnt uint64, timestamp int64, takerFeeBps uint32) (evs []events.Event, err error) {
	defer observe("market_buy", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, err
	}
	var acc events.Accumulator
	err = p.MarketBuy(&acc, cid, owner, amnt, timestamp, takerFeeBps)
	return e.drain(&acc), err
}

func (e *MatchingEngine) MarketSell(pairID domain.PairID, cid domain.ClientID, owner domain.Owner, amnt uint64, timestamp int64, takerFeeBps uint32) (evs []events.Event, err error) {
	defer observe("market_sell", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, err
	}
	var acc events.Accumulator
	err = p.MarketSell(&acc, cid, owner, amnt, timestamp, takerFeeBps)
	return e.drain(&acc), err
}

func (e *MatchingEngine) CancelOrder(pairID domain.PairID, isBid bool, orderID domain.OrderID, owner domain.Owner, now int64) (evs []events.Event, err error) {
	defer observe("cancel_order", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, err
	}
	var acc events.Accumulator
	err = p.CancelOrder(&acc, isBid, orderID, owner, now)
	return e.drain(&acc), err
}

func (e *MatchingEngine) SetIcebergQuantity(pairID domain.PairID, isBid bool, orderID domain.OrderID, iqty uint64, now int64) (evs []events.Event, err error) {
	defer observe("set_iceberg_quantity", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, err
	}
	var acc events.Accumulator
	err = p.Book.SetIcebergQuantity(&acc, pairID, isBid, orderID, iqty, now)
	return e.drain(&acc), err
}

// ExpireOrders runs the eager expiry sweep for both sides of a pair. It is
// invoked by the expiry cron, an external collaborator of the core.
func (e *MatchingEngine) ExpireOrders(pairID domain.PairID, managingAccountID string, now int64) (evs []events.Event, err error) {
	defer observe("expire_orders", pairID, time.Now())(&err)
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.getPair(pairID)
	if err != nil {
		return nil, err
	}
	var acc events.Accumulator
	p.Book.ExpireOrders(&acc, pairID, true, p.BaseAssetID, p.QuoteAssetID, managingAccountID, now)
	p.Book.ExpireOrders(&acc, pairID, false, p.BaseAssetID, p.QuoteAssetID, managingAccountID, now)
	return e.drain(&acc), nil
}

// Lock/Unlock expose the engine mutex to the snapshot manager, which must
// hold it for the duration of serialisation.
func (e *MatchingEngine) Lock()   { e.mu.Lock() }
func (e *MatchingEngine) Unlock() { e.mu.Unlock() }

// Pairs returns the live pair map. Callers must hold the engine lock.
func (e *MatchingEngine) Pairs() map[domain.PairID]*pair.Pair {
	return e.pairs
}

// LoadPairs replaces the engine's pair set, used by snapshot restore.
// Callers must hold the engine lock.
func (e *MatchingEngine) LoadPairs(pairs map[domain.PairID]*pair.Pair) {
	e.pairs = pairs
}
