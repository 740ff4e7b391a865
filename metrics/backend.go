package metrics

import (
	"sync"

	"spotbook/events"
)

// Backend is the events.Backend that keeps the collector's counters and
// gauges in sync with the event stream, the same one-backend-per-concern
// fan-out shape as transport.NatsBackend. Depth and best-price gauges are
// derived from the backend's own running view of per-price public
// quantity, rebuilt from KindOrderBlockChanged deltas — the backend never
// reaches back into engine state, only ever sees events delivered by
// value off its queue.
type Backend struct {
	c *Collector

	mu     sync.Mutex
	levels map[levelKey]uint64
	pairs  map[string]struct{}
}

type levelKey struct {
	pairID string
	isBid  bool
	price  uint64
}

// NewBackend returns a ready Backend wrapping the singleton Collector.
func NewBackend() *Backend {
	return &Backend{
		c:      GetCollector(),
		levels: make(map[levelKey]uint64),
		pairs:  make(map[string]struct{}),
	}
}

func (b *Backend) Name() string { return "metrics" }

func (b *Backend) HandleEvent(e events.Event) {
	pairID := string(e.PairID)
	side := sideLabel(e.IsBid)

	switch e.Kind {
	case events.KindPairAdded:
		b.handlePairAdded(pairID)
	case events.KindOrderPlaced:
		b.c.RecordOrderPlaced(pairID, side)
	case events.KindOrderCancelled:
		b.c.RecordOrderCancelled(pairID, side)
	case events.KindOrderExpired:
		b.c.RecordOrderExpired(pairID, side)
	case events.KindOrderPartiallyFilled, events.KindOrderFullyFilled:
		if e.IsTaker {
			b.c.RecordTrade(pairID, float64(e.BaseVolume))
		}
	case events.KindOrderBlockChanged:
		b.handleBlockChanged(pairID, e)
	}
}

func (b *Backend) handlePairAdded(pairID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairs[pairID] = struct{}{}
	b.c.SetPairsLive(float64(len(b.pairs)))
}

// handleBlockChanged keeps a per pair/side/price map of the last known
// public quantity, so that depth (live level count) and best price (the
// most favourable live price) can be derived without a round trip back
// into the book.
func (b *Backend) handleBlockChanged(pairID string, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := levelKey{pairID: pairID, isBid: e.IsBid, price: e.Price}
	if e.PqtyAfter == 0 {
		delete(b.levels, key)
	} else {
		b.levels[key] = e.PqtyAfter
	}

	depth := 0
	best, haveBest := uint64(0), false
	for k := range b.levels {
		if k.pairID != pairID || k.isBid != e.IsBid {
			continue
		}
		depth++
		switch {
		case !haveBest:
			best, haveBest = k.price, true
		case e.IsBid && k.price > best:
			best = k.price
		case !e.IsBid && k.price < best:
			best = k.price
		}
	}

	side := sideLabel(e.IsBid)
	b.c.SetBookDepth(pairID, side, float64(depth))
	b.c.SetBestPrice(pairID, side, float64(best))
}

func (b *Backend) Shutdown() {}

func sideLabel(isBid bool) string {
	if isBid {
		return "bid"
	}
	return "ask"
}
