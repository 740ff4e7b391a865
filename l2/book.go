// Package l2 implements the price-level book: two arena-backed sorted
// linked lists of prices (bids descending, asks ascending), each carrying
// public/current aggregate depth maps. Like l3, prices are linked via an
// explicit dense map of neighbour ids rather than container/list, so the
// whole side can be dumped as plain maps for the snapshot.
package l2

import "spotbook/domain"

type priceNode struct {
	prev, next uint64
	hasPrev    bool
	hasNext    bool
}

// side is one of the two price lists (bid or ask); sorting direction is
// supplied by the owning Book via less.
type side struct {
	nodes   map[uint64]priceNode
	head    uint64
	tail    uint64
	hasHead bool
	hasTail bool
	public  map[uint64]uint64
	current map[uint64]uint64
	scales  map[uint64]bool
}

func newSide() *side {
	return &side{
		nodes:   make(map[uint64]priceNode),
		public:  make(map[uint64]uint64),
		current: make(map[uint64]uint64),
		scales:  make(map[uint64]bool),
	}
}

func (s *side) exists(price uint64) bool {
	_, ok := s.nodes[price]
	return ok
}

// insert links price into the list at its sorted position. less reports
// whether a belongs strictly before b in this side's order.
func (s *side) insert(price uint64, less func(a, b uint64) bool) {
	if s.exists(price) {
		return
	}
	if !s.hasHead {
		s.head, s.tail = price, price
		s.hasHead, s.hasTail = true, true
		s.nodes[price] = priceNode{}
		s.public[price] = 0
		s.current[price] = 0
		return
	}

	cur := s.head
	for {
		if less(price, cur) {
			s.linkBefore(price, cur)
			break
		}
		n := s.nodes[cur]
		if !n.hasNext {
			s.linkAfter(price, cur)
			break
		}
		cur = n.next
	}
	s.public[price] = 0
	s.current[price] = 0
}

func (s *side) linkBefore(price, at uint64) {
	an := s.nodes[at]
	if an.hasPrev {
		pn := s.nodes[an.prev]
		pn.next = price
		s.nodes[an.prev] = pn
		s.nodes[price] = priceNode{prev: an.prev, hasPrev: true, next: at, hasNext: true}
	} else {
		s.nodes[price] = priceNode{next: at, hasNext: true}
		s.head = price
	}
	an.prev = price
	an.hasPrev = true
	s.nodes[at] = an
}

func (s *side) linkAfter(price, at uint64) {
	an := s.nodes[at]
	an.next = price
	an.hasNext = true
	s.nodes[at] = an
	s.nodes[price] = priceNode{prev: at, hasPrev: true}
	s.tail = price
}

func (s *side) remove(price uint64) {
	n, ok := s.nodes[price]
	if !ok {
		return
	}
	if n.hasPrev {
		pn := s.nodes[n.prev]
		pn.next = n.next
		pn.hasNext = n.hasNext
		s.nodes[n.prev] = pn
	} else {
		if n.hasNext {
			s.head = n.next
		} else {
			s.hasHead = false
		}
	}
	if n.hasNext {
		nn := s.nodes[n.next]
		nn.prev = n.prev
		nn.hasPrev = n.hasPrev
		s.nodes[n.next] = nn
	} else {
		if n.hasPrev {
			s.tail = n.prev
		} else {
			s.hasTail = false
		}
	}
	delete(s.nodes, price)
	delete(s.public, price)
	delete(s.current, price)
}

func (s *side) clearHead() (uint64, bool) {
	if !s.hasHead {
		return 0, false
	}
	head := s.head
	s.remove(head)
	return head, true
}

func (s *side) collect() []uint64 {
	out := make([]uint64, 0, len(s.nodes))
	if !s.hasHead {
		return out
	}
	cur := s.head
	for {
		out = append(out, cur)
		n := s.nodes[cur]
		if !n.hasNext {
			break
		}
		cur = n.next
	}
	return out
}

// Book is the full two-sided price-level book.
type Book struct {
	bids *side
	asks *side
}

func NewBook() *Book {
	return &Book{bids: newSide(), asks: newSide()}
}

func bidLess(a, b uint64) bool { return a > b }
func askLess(a, b uint64) bool { return a < b }

func (b *Book) sideFor(isBid bool) *side {
	if isBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) InsertPrice(isBid bool, price uint64) {
	s := b.sideFor(isBid)
	less := askLess
	if isBid {
		less = bidLess
	}
	s.insert(price, less)
}

func (b *Book) RemovePrice(isBid bool, price uint64) {
	b.sideFor(isBid).remove(price)
}

func (b *Book) PriceExists(isBid bool, price uint64) bool {
	return b.sideFor(isBid).exists(price)
}

func (b *Book) BidHead() (uint64, bool) {
	if !b.bids.hasHead {
		return 0, false
	}
	return b.bids.head, true
}

func (b *Book) AskHead() (uint64, bool) {
	if !b.asks.hasHead {
		return 0, false
	}
	return b.asks.head, true
}

// ClearHead pops the head price on the given side and returns it.
func (b *Book) ClearHead(isBid bool) (uint64, bool) {
	return b.sideFor(isBid).clearHead()
}

func (b *Book) PublicLevel(isBid bool, price uint64) uint64 {
	return b.sideFor(isBid).public[price]
}

func (b *Book) CurrentLevel(isBid bool, price uint64) uint64 {
	return b.sideFor(isBid).current[price]
}

func (b *Book) SetPublicLevel(isBid bool, price, qty uint64) error {
	s := b.sideFor(isBid)
	if !s.exists(price) {
		return domain.ErrL2PriceMissing
	}
	s.public[price] = qty
	return nil
}

func (b *Book) SetCurrentLevel(isBid bool, price, qty uint64) error {
	s := b.sideFor(isBid)
	if !s.exists(price) {
		return domain.ErrL2PriceMissing
	}
	s.current[price] = qty
	return nil
}

func (b *Book) CollectBidPrices() []uint64 { return b.bids.collect() }
func (b *Book) CollectAskPrices() []uint64 { return b.asks.collect() }

// RegisterScale enables quantized snapshot views at the given bucket width
// on a side. A scale that is never registered yields an empty snapshot.
func (b *Book) RegisterScale(isBid bool, scale uint64) {
	b.sideFor(isBid).scales[scale] = true
}

// Scales returns every registered bucket width for a side. Used by
// snapshot serialization.
func (b *Book) Scales(isBid bool) []uint64 {
	s := b.sideFor(isBid)
	out := make([]uint64, 0, len(s.scales))
	for scale := range s.scales {
		out = append(out, scale)
	}
	return out
}

// SnapshotRow is one row of a price-level view: price plus public/current
// aggregate depth at that price.
type SnapshotRow struct {
	Price uint64
	Pqty  uint64
	Cqty  uint64
}

// GetSnapshotRaw returns up to step rows for a side, in list order. A
// non-zero scale selects a quantised view, built from the live levels on
// each call; scale==0 means the raw (unquantised) per-price view.
func (b *Book) GetSnapshotRaw(isBid bool, scale uint64, step int) []SnapshotRow {
	if scale != 0 {
		return b.quantizedSnapshot(isBid, scale, step)
	}
	s := b.sideFor(isBid)
	prices := s.collect()
	if step < len(prices) {
		prices = prices[:step]
	}
	out := make([]SnapshotRow, 0, len(prices))
	for _, p := range prices {
		out = append(out, SnapshotRow{Price: p, Pqty: s.public[p], Cqty: s.current[p]})
	}
	return out
}

// DecimalRow is a SnapshotRow with amounts rendered as eight-fractional-
// digit decimal strings, matching the wire snapshot format.
type DecimalRow struct {
	Price string
	Pqty  string
	Cqty  string
}

// GetSnapshot is GetSnapshotRaw with scaled-integer fields rendered as
// decimal strings.
func (b *Book) GetSnapshot(isBid bool, scale uint64, step int) []DecimalRow {
	raw := b.GetSnapshotRaw(isBid, scale, step)
	out := make([]DecimalRow, 0, len(raw))
	for _, r := range raw {
		out = append(out, DecimalRow{
			Price: FormatFixed(r.Price),
			Pqty:  FormatFixed(r.Pqty),
			Cqty:  FormatFixed(r.Cqty),
		})
	}
	return out
}
