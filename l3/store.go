// Package l3 implements the per-order book layer: a dense arena mapping
// order id to order plus explicit prev/next links forming a FIFO chain per
// price. A dense-map arena is used instead of container/list so the whole
// layer can be dumped as plain maps for the binary snapshot (orders,
// order_nodes, price_head, price_tail) and round-tripped bit-exactly.
package l3

import (
	"time"

	"spotbook/domain"
)

type node struct {
	prev, next domain.OrderID
	hasPrev    bool
	hasNext    bool
}

// Store owns order identity: every Order value alive in a book lives in
// exactly one Store, indexed by id and chained per price.
type Store struct {
	orders    map[domain.OrderID]*domain.Order
	nodes     map[domain.OrderID]node
	priceHead map[uint64]domain.OrderID
	priceTail map[uint64]domain.OrderID
	dust      uint64
}

func NewStore(dust uint64) *Store {
	return &Store{
		orders:    make(map[domain.OrderID]*domain.Order),
		nodes:     make(map[domain.OrderID]node),
		priceHead: make(map[uint64]domain.OrderID),
		priceTail: make(map[uint64]domain.OrderID),
		dust:      dust,
	}
}

// CreateOrder assigns a fresh id, enforces price>0 and iqty<=amnt, computes
// pqty/cqty, and appends it to the FIFO chain at price.
func (s *Store) CreateOrder(cid domain.ClientID, owner domain.Owner, isBid bool, price, amnt, iqty uint64, timestamp, expiresAt int64, feeBps uint32) (*domain.Order, error) {
	if price == 0 {
		return nil, domain.ErrPriceIsZero
	}
	if iqty > amnt {
		return nil, domain.ErrIcebergQuantityBiggerThanWhole
	}
	id := domain.NewOrderID(time.UnixMilli(timestamp))
	o := domain.NewOrder(id, cid, owner, isBid, price, amnt, iqty, timestamp, expiresAt, feeBps)
	s.orders[id] = o
	s.nodes[id] = node{}
	s.appendToChain(price, id)
	return o, nil
}

// InsertID appends an already-existing order id to the chain tail at price.
// Fails if the id is unknown to the store.
func (s *Store) InsertID(price uint64, id domain.OrderID) error {
	if _, ok := s.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	s.appendToChain(price, id)
	return nil
}

func (s *Store) appendToChain(price uint64, id domain.OrderID) {
	tail, hasTail := s.priceTail[price]
	if !hasTail {
		s.priceHead[price] = id
		s.priceTail[price] = id
		s.nodes[id] = node{}
		return
	}
	tn := s.nodes[tail]
	tn.next = id
	tn.hasNext = true
	s.nodes[tail] = tn
	s.nodes[id] = node{prev: tail, hasPrev: true}
	s.priceTail[price] = id
}

// PopFront detaches and returns the head order at price. emptied is true
// when the chain becomes empty as a result.
func (s *Store) PopFront(price uint64) (order *domain.Order, emptied bool) {
	head, ok := s.priceHead[price]
	if !ok {
		return nil, false
	}
	o := s.orders[head]
	// Drop it from orders first so unlink does not release it to the pool:
	// ownership passes to the caller.
	delete(s.orders, head)
	emptied = s.unlink(head, price)
	return o, emptied
}

// DeleteOrder unlinks id from its chain and removes it from the store.
// Returns the price if that was the last order at that price level.
func (s *Store) DeleteOrder(id domain.OrderID) (emptiedPrice uint64, emptied bool) {
	o, ok := s.orders[id]
	if !ok {
		return 0, false
	}
	price := o.Price
	wasEmptied := s.unlink(id, price)
	return price, wasEmptied
}

// unlink removes id from its price chain (id must belong to that price's
// chain already) and deletes it from orders/nodes. Returns true if the
// chain at price is now empty.
func (s *Store) unlink(id domain.OrderID, price uint64) bool {
	n := s.nodes[id]
	if n.hasPrev {
		pn := s.nodes[n.prev]
		pn.next = n.next
		pn.hasNext = n.hasNext
		s.nodes[n.prev] = pn
	} else {
		if n.hasNext {
			s.priceHead[price] = n.next
		} else {
			delete(s.priceHead, price)
		}
	}
	if n.hasNext {
		nn := s.nodes[n.next]
		nn.prev = n.prev
		nn.hasPrev = n.hasPrev
		s.nodes[n.next] = nn
	} else {
		if n.hasPrev {
			s.priceTail[price] = n.prev
		} else {
			delete(s.priceTail, price)
		}
	}

	delete(s.nodes, id)
	if o := s.orders[id]; o != nil {
		o.Release()
	}
	delete(s.orders, id)

	_, stillHead := s.priceHead[price]
	return !stillHead
}

// DecreaseInPlace is the pure decrease-with-dust rule shared by orders
// living in a Store and by a transient taker order that is not (yet)
// inserted anywhere. orig = cqty; sent = min(amount, orig). If clear or
// the residual would fall at or below dust, the caller must drop the
// order entirely and sent is the full original remainder; otherwise cqty
// and pqty are updated in place.
func DecreaseInPlace(o *domain.Order, amount, dust uint64, clear bool) (sent uint64, cleared bool) {
	orig := o.Cqty
	sent = amount
	if sent > orig {
		sent = orig
	}
	residual := saturatingSub(orig, sent)

	if clear || residual <= dust {
		return orig, true
	}

	o.Cqty = residual
	if o.Pqty > o.Cqty {
		o.Pqty = o.Cqty
	}
	return sent, false
}

// DecreaseOrder reduces id's current remaining quantity. If clear is set,
// or if the residual would fall at or below dust, the order is deleted and
// the full remainder is freed. orderDeleted reports whether id itself was
// removed; priceEmptied additionally reports whether that removal also
// emptied the price level (only meaningful when orderDeleted is true).
func (s *Store) DecreaseOrder(id domain.OrderID, amount uint64, clear bool) (sent uint64, orderDeleted bool, emptiedPrice uint64, priceEmptied bool) {
	o, ok := s.orders[id]
	if !ok {
		return 0, false, 0, false
	}
	price := o.Price
	sent, cleared := DecreaseInPlace(o, amount, s.dust, clear)
	if cleared {
		ep := s.unlink(id, price)
		return sent, true, price, ep
	}
	return sent, false, 0, false
}

// SetIcebergQuantity updates an order's hidden quantity and recomputes its
// public remainder. It never auto-reveals beyond this explicit call.
func (s *Store) SetIcebergQuantity(id domain.OrderID, iqty uint64) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if iqty > o.Amnt {
		return nil, domain.ErrIcebergQuantityBiggerThanWhole
	}
	o.Iqty = iqty
	visible := o.Amnt - iqty
	if visible > o.Cqty {
		visible = o.Cqty
	}
	o.Pqty = visible
	return o, nil
}

// RemoveDormantOrders deletes and returns every order whose deadline has
// passed as of now. Used by the eager expiry sweep.
func (s *Store) RemoveDormantOrders(now int64) []domain.Order {
	var dormant []domain.Order
	for _, o := range s.orders {
		if o.IsExpired(now) {
			dormant = append(dormant, o.Clone())
		}
	}
	for _, snap := range dormant {
		s.unlink(snap.ID, snap.Price)
	}
	return dormant
}

func (s *Store) Head(price uint64) (domain.OrderID, bool) {
	id, ok := s.priceHead[price]
	return id, ok
}

func (s *Store) Tail(price uint64) (domain.OrderID, bool) {
	id, ok := s.priceTail[price]
	return id, ok
}

func (s *Store) IsEmpty(price uint64) bool {
	_, ok := s.priceHead[price]
	return !ok
}

func (s *Store) Next(id domain.OrderID) (domain.OrderID, bool) {
	n, ok := s.nodes[id]
	if !ok || !n.hasNext {
		return domain.ZeroOrderID, false
	}
	return n.next, true
}

func (s *Store) GetOrder(id domain.OrderID) (*domain.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

// GetOrderIDs returns up to n order ids from the front of price's chain.
func (s *Store) GetOrderIDs(price uint64, n int) []domain.OrderID {
	ids := make([]domain.OrderID, 0, n)
	cur, ok := s.priceHead[price]
	for ok && len(ids) < n {
		ids = append(ids, cur)
		cur, ok = s.Next(cur)
	}
	return ids
}

// GetOrders returns up to n orders from the front of price's chain.
func (s *Store) GetOrders(price uint64, n int) []domain.Order {
	ids := s.GetOrderIDs(price, n)
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			out = append(out, o.Clone())
		}
	}
	return out
}

// AllOrdersAtPrice returns every order at price's chain, head to tail,
// with no cap. Used by snapshot serialization.
func (s *Store) AllOrdersAtPrice(price uint64) []domain.Order {
	var out []domain.Order
	cur, ok := s.priceHead[price]
	for ok {
		if o, found := s.orders[cur]; found {
			out = append(out, o.Clone())
		}
		cur, ok = s.Next(cur)
	}
	return out
}

// GetOrdersInRange returns orders within index window [start, end) of
// price's chain, walking from the head.
func (s *Store) GetOrdersInRange(price uint64, start, end int) []domain.Order {
	if start >= end {
		return nil
	}
	out := make([]domain.Order, 0, end-start)
	idx := 0
	cur, ok := s.priceHead[price]
	for ok && idx < end {
		if idx >= start {
			if o, found := s.orders[cur]; found {
				out = append(out, o.Clone())
			}
		}
		cur, ok = s.Next(cur)
		idx++
	}
	return out
}

// Prices returns every price with at least one resting order. Used by
// snapshot serialization, which walks each price's chain independently to
// preserve FIFO order regardless of map iteration order.
func (s *Store) Prices() []uint64 {
	prices := make([]uint64, 0, len(s.priceHead))
	for p := range s.priceHead {
		prices = append(prices, p)
	}
	return prices
}

// LoadOrder inserts a fully-formed order, preserving its id and remaining
// quantities, and appends it to the FIFO chain at its price. Used only by
// snapshot restore; the caller is responsible for loading orders at each
// price in their original FIFO sequence.
func (s *Store) LoadOrder(o domain.Order) {
	stored := domain.NewOrder(o.ID, o.CID, o.Owner, o.IsBid, o.Price, o.Amnt, o.Iqty, o.Timestamp, o.ExpiresAt, o.FeeBps)
	stored.Pqty = o.Pqty
	stored.Cqty = o.Cqty
	s.orders[stored.ID] = stored
	s.nodes[stored.ID] = node{}
	s.appendToChain(stored.Price, stored.ID)
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
