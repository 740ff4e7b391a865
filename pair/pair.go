// Package pair implements Pair: one OrderBook plus pair identity and a
// client registry, with the cross-price matching loop and time-in-force
// handling layered on top of OrderBook's single-maker Execute primitive.
package pair

import (
	"time"

	"spotbook/book"
	"spotbook/domain"
	"spotbook/events"
)

type clientInfo struct {
	adminAccount string
	feeAccount   string
}

// Pair wraps one OrderBook with pair identity and the set of clients
// sharing its book.
type Pair struct {
	PairID      domain.PairID
	BaseAssetID domain.AssetID
	QuoteAssetID domain.AssetID

	Book *book.OrderBook

	clients map[domain.ClientID]clientInfo
	order   []domain.ClientID
}

func New(pairID domain.PairID, baseAssetID, quoteAssetID domain.AssetID, dust uint64) *Pair {
	return &Pair{
		PairID:       pairID,
		BaseAssetID:  baseAssetID,
		QuoteAssetID: quoteAssetID,
		Book:         book.NewOrderBook(dust),
		clients:      make(map[domain.ClientID]clientInfo),
	}
}

// AddClient registers a client to trade against this pair's book.
func (p *Pair) AddClient(cid domain.ClientID, adminAccount, feeAccount string) {
	if _, exists := p.clients[cid]; !exists {
		p.order = append(p.order, cid)
	}
	p.clients[cid] = clientInfo{adminAccount: adminAccount, feeAccount: feeAccount}
}

// RemoveClient unregisters a client from this pair.
func (p *Pair) RemoveClient(cid domain.ClientID) {
	if _, exists := p.clients[cid]; !exists {
		return
	}
	delete(p.clients, cid)
	for i, id := range p.order {
		if id == cid {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Pair) HasClient(cid domain.ClientID) bool {
	_, ok := p.clients[cid]
	return ok
}

// ClientRegistration is one client's registration record against this
// pair. Used by snapshot serialization.
type ClientRegistration struct {
	CID           domain.ClientID
	AdminAccount  string
	FeeAccount    string
}

// Clients returns every registered client in registration order.
func (p *Pair) Clients() []ClientRegistration {
	out := make([]ClientRegistration, 0, len(p.order))
	for _, cid := range p.order {
		info := p.clients[cid]
		out = append(out, ClientRegistration{CID: cid, AdminAccount: info.adminAccount, FeeAccount: info.feeAccount})
	}
	return out
}

// LimitBuy places (and immediately attempts to cross) a bid limit order.
func (p *Pair) LimitBuy(acc *events.Accumulator, cid domain.ClientID, existingOrderID *domain.OrderID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps, takerFeeBps uint32, tif domain.TimeInForce) (*domain.Order, error) {
	return p.limit(acc, true, cid, existingOrderID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps, takerFeeBps, tif)
}

// LimitSell is the symmetric counterpart of LimitBuy.
func (p *Pair) LimitSell(acc *events.Accumulator, cid domain.ClientID, existingOrderID *domain.OrderID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps, takerFeeBps uint32, tif domain.TimeInForce) (*domain.Order, error) {
	return p.limit(acc, false, cid, existingOrderID, owner, price, amnt, iqty, timestamp, expiresAt, makerFeeBps, takerFeeBps, tif)
}

func (p *Pair) limit(acc *events.Accumulator, isBid bool, cid domain.ClientID, existingOrderID *domain.OrderID, owner domain.Owner, price, amnt, iqty uint64, timestamp, expiresAt int64, makerFeeBps, takerFeeBps uint32, tif domain.TimeInForce) (*domain.Order, error) {
	if !tif.Valid() {
		return nil, domain.ErrUnsupportedTimeInForce
	}
	if existingOrderID != nil {
		existing, ok := p.Book.GetOrder(isBid, *existingOrderID)
		if !ok {
			return nil, domain.ErrOrderNotFound
		}
		if existing.CID != cid {
			return nil, domain.ErrOrderNotOwnedBySender
		}
	}
	if price == 0 {
		return nil, domain.ErrPriceIsZero
	}
	if amnt == 0 {
		return nil, domain.ErrAmountIsZero
	}
	if amnt-iqty == 0 {
		return nil, domain.ErrPublicAmountIsZero
	}

	taker := domain.NewOrder(domain.NewOrderID(time.UnixMilli(timestamp)), cid, owner, isBid, price, amnt, iqty, timestamp, expiresAt, takerFeeBps)

	if err := p.matchLoop(acc, taker, true, price, timestamp); err != nil {
		taker.Release()
		return nil, err
	}

	switch tif {
	case domain.FOK:
		// Non-atomic fill-or-kill: fills already made by the loop above
		// stand; only an unfilled remainder turns into an error.
		if taker.Cqty > 0 {
			taker.Release()
			return nil, domain.ErrOrderNotFullyFilled
		}
		taker.Release()
		return nil, nil

	case domain.IOC:
		taker.Release()
		return nil, nil

	case domain.GTC:
		if taker.Cqty == 0 {
			taker.Release()
			return nil, nil
		}
		rest := taker.Clone()
		// matchLoop moved taker.Price to each level it crossed; the
		// remainder rests at the order's own limit.
		rest.Price = price
		taker.Release()
		return p.restGTC(acc, isBid, cid, owner, &rest, timestamp, expiresAt, makerFeeBps)
	}
	taker.Release()
	return nil, domain.ErrUnsupportedTimeInForce
}

func (p *Pair) restGTC(acc *events.Accumulator, isBid bool, cid domain.ClientID, owner domain.Owner, rest *domain.Order, timestamp, expiresAt int64, makerFeeBps uint32) (*domain.Order, error) {
	if isBid {
		return p.Book.PlaceBid(acc, cid, p.PairID, p.BaseAssetID, p.QuoteAssetID, owner, rest.Price, rest.Cqty, rest.Cqty-rest.Pqty, timestamp, expiresAt, makerFeeBps)
	}
	return p.Book.PlaceAsk(acc, cid, p.PairID, p.BaseAssetID, p.QuoteAssetID, owner, rest.Price, rest.Cqty, rest.Cqty-rest.Pqty, timestamp, expiresAt, makerFeeBps)
}

// MarketBuy matches until the taker is exhausted or the ask side empties,
// with no price bound; any residual is discarded regardless of TIF.
func (p *Pair) MarketBuy(acc *events.Accumulator, cid domain.ClientID, owner domain.Owner, amnt uint64, timestamp int64, takerFeeBps uint32) error {
	return p.market(acc, true, cid, owner, amnt, timestamp, takerFeeBps)
}

// MarketSell is the symmetric counterpart of MarketBuy.
func (p *Pair) MarketSell(acc *events.Accumulator, cid domain.ClientID, owner domain.Owner, amnt uint64, timestamp int64, takerFeeBps uint32) error {
	return p.market(acc, false, cid, owner, amnt, timestamp, takerFeeBps)
}

func (p *Pair) market(acc *events.Accumulator, isBid bool, cid domain.ClientID, owner domain.Owner, amnt uint64, timestamp int64, takerFeeBps uint32) error {
	if amnt == 0 {
		return domain.ErrAmountIsZero
	}
	taker := domain.NewOrder(domain.NewOrderID(time.UnixMilli(timestamp)), cid, owner, isBid, 1, amnt, 0, timestamp, 0, takerFeeBps)
	defer taker.Release()
	return p.matchLoop(acc, taker, false, 0, timestamp)
}

// matchLoop walks resting opposite-side liquidity best-price-first. When
// bounded is true it stops once the level price crosses limitPrice; when
// false (market orders) it walks until the taker is exhausted or the
// opposite side empties.
func (p *Pair) matchLoop(acc *events.Accumulator, taker *domain.Order, bounded bool, limitPrice uint64, now int64) error {
	opposingIsBid := !taker.IsBid

	for taker.Cqty > 0 {
		levelPrice, err := p.Book.ClearEmptyHead(opposingIsBid)
		if err != nil {
			return nil
		}
		if bounded {
			if taker.IsBid && levelPrice > limitPrice {
				return nil
			}
			if !taker.IsBid && levelPrice < limitPrice {
				return nil
			}
		}

		taker.Price = levelPrice

		_, err = p.Book.Execute(acc, taker, p.PairID, p.BaseAssetID, p.QuoteAssetID, now)
		if err != nil {
			if err == domain.ErrOrderExpired {
				continue
			}
			return err
		}
	}
	return nil
}

// CancelOrder delegates straight to OrderBook.
func (p *Pair) CancelOrder(acc *events.Accumulator, isBid bool, orderID domain.OrderID, owner domain.Owner, now int64) error {
	return p.Book.CancelOrder(acc, p.PairID, isBid, orderID, owner, now)
}

func (p *Pair) GetOrder(isBid bool, orderID domain.OrderID) (*domain.Order, bool) {
	return p.Book.GetOrder(isBid, orderID)
}
