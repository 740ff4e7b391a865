// Package snapshot serializes and restores the engine's full state to a
// single binary file, using msgpack for its compact, schema-evolvable
// encoding. Writes are crash-safe: encode into a temp file in the target
// directory, fsync it, then rename over the target, so a save interrupted
// at any point leaves the prior snapshot intact.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"spotbook/book"
	"spotbook/domain"
	"spotbook/engine"
	"spotbook/l2"
	"spotbook/pair"
)

// Order is the wire form of a resting order. OrderID is a plain 16-byte
// array type (it does not carry ulid.ULID's MarshalBinary methods), and
// msgpack encodes and decodes such arrays directly, so it needs no extra
// encoding here.
type Order struct {
	ID        domain.OrderID
	CID       domain.ClientID
	Owner     domain.Owner
	IsBid     bool
	Price     uint64
	Amnt      uint64
	Iqty      uint64
	Pqty      uint64
	Cqty      uint64
	Timestamp int64
	ExpiresAt int64
	FeeBps    uint32
}

// Level is one L2 aggregate price level.
type Level struct {
	Price uint64
	Pqty  uint64
	Cqty  uint64
}

// Client is one pair-scoped client registration.
type Client struct {
	CID          domain.ClientID
	AdminAccount string
	FeeAccount   string
}

// MarketState mirrors l1.State's externally-visible fields, each paired
// with the presence bool the getter already returns.
type MarketState struct {
	LMP                   uint64
	HasLMP                bool
	BestBid               uint64
	HasBestBid            bool
	BestAsk               uint64
	HasBestAsk            bool
	LimitBuySlippageBps   uint32
	HasLimitBuySlippage   bool
	LimitSellSlippageBps  uint32
	HasLimitSellSlippage  bool
	MarketBuySlippageBps  uint32
	HasMarketBuySlippage  bool
	MarketSellSlippageBps uint32
	HasMarketSellSlippage bool
}

// FeeRecipient is one client-id to payout-account mapping.
type FeeRecipient struct {
	CID     domain.ClientID
	Account string
}

// Pair is the full serialized state of one trading pair: its clients,
// fee recipients, L1 state, L2 levels and registered scales (bid/ask
// kept separate, since the two sides quantize independently), and every
// resting L3 order in FIFO order per price.
type Pair struct {
	PairID       domain.PairID
	BaseAssetID  domain.AssetID
	QuoteAssetID domain.AssetID
	Dust         uint64

	Clients       []Client
	FeeRecipients []FeeRecipient
	Market        MarketState

	BidLevels []Level
	AskLevels []Level
	BidScales []uint64
	AskScales []uint64

	BidOrders []Order
	AskOrders []Order
}

// Snapshot is the root document written to disk.
type Snapshot struct {
	Timestamp int64
	Pairs     []Pair
}

// Manager owns the snapshot file path and serializes writes against
// concurrent reads of the same path.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Save locks the engine for the duration of serialization (matching-core
// mutations and a snapshot read must never interleave), builds the wire
// document, and commits it via temp-file-plus-rename.
func (m *Manager) Save(e *engine.MatchingEngine, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.Lock()
	doc := buildSnapshot(e, timestamp)
	e.Unlock()

	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", domain.ErrSnapshotSerialization, err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("%w: create snapshot dir: %v", domain.ErrSnapshotIO, err)
	}

	tmp := m.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open temp snapshot: %v", domain.ErrSnapshotIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write temp snapshot: %v", domain.ErrSnapshotIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: fsync temp snapshot: %v", domain.ErrSnapshotIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close temp snapshot: %v", domain.ErrSnapshotIO, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("%w: rename temp snapshot: %v", domain.ErrSnapshotIO, err)
	}
	return nil
}

// Load restores engine state from disk. A missing file is not an error:
// the engine starts empty, matching a fresh deployment.
func (m *Manager) Load(e *engine.MatchingEngine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read snapshot: %v", domain.ErrSnapshotIO, err)
	}

	var doc Snapshot
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: unmarshal snapshot: %v", domain.ErrSnapshotSerialization, err)
	}

	e.Lock()
	defer e.Unlock()
	restoreSnapshot(e, &doc)
	return nil
}

// Tick runs Save on the given interval until stop is closed. It is meant
// to be launched as a single goroutine for the process lifetime.
func Tick(m *Manager, e *engine.MatchingEngine, interval time.Duration, nowFn func() int64, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = m.Save(e, nowFn())
		}
	}
}

func buildSnapshot(e *engine.MatchingEngine, timestamp int64) *Snapshot {
	pairs := e.Pairs()
	doc := &Snapshot{Timestamp: timestamp, Pairs: make([]Pair, 0, len(pairs))}
	for pairID, p := range pairs {
		doc.Pairs = append(doc.Pairs, buildPair(pairID, p))
	}
	return doc
}

func buildPair(pairID domain.PairID, p *pair.Pair) Pair {
	out := Pair{
		PairID:       pairID,
		BaseAssetID:  p.BaseAssetID,
		QuoteAssetID: p.QuoteAssetID,
		Dust:         p.Book.Dust(),
	}

	for _, c := range p.Clients() {
		out.Clients = append(out.Clients, Client{CID: c.CID, AdminAccount: c.AdminAccount, FeeAccount: c.FeeAccount})
	}

	for cid, account := range p.Book.FeeRecipients() {
		out.FeeRecipients = append(out.FeeRecipients, FeeRecipient{CID: cid, Account: account})
	}

	out.Market = dumpMarketState(p.Book.L1)

	out.BidLevels, out.BidScales = dumpLevels(p.Book.L2, true)
	out.AskLevels, out.AskScales = dumpLevels(p.Book.L2, false)

	out.BidOrders = dumpOrders(p.Book, true)
	out.AskOrders = dumpOrders(p.Book, false)

	return out
}

func dumpMarketState(state interface {
	LastMatchedPrice() (uint64, bool)
	BestBid() (uint64, bool)
	BestAsk() (uint64, bool)
	LimitBuySlippageBps() (uint32, bool)
	LimitSellSlippageBps() (uint32, bool)
	MarketBuySlippageBps() (uint32, bool)
	MarketSellSlippageBps() (uint32, bool)
}) MarketState {
	var ms MarketState
	ms.LMP, ms.HasLMP = state.LastMatchedPrice()
	ms.BestBid, ms.HasBestBid = state.BestBid()
	ms.BestAsk, ms.HasBestAsk = state.BestAsk()
	ms.LimitBuySlippageBps, ms.HasLimitBuySlippage = state.LimitBuySlippageBps()
	ms.LimitSellSlippageBps, ms.HasLimitSellSlippage = state.LimitSellSlippageBps()
	ms.MarketBuySlippageBps, ms.HasMarketBuySlippage = state.MarketBuySlippageBps()
	ms.MarketSellSlippageBps, ms.HasMarketSellSlippage = state.MarketSellSlippageBps()
	return ms
}

func dumpLevels(l2Book *l2.Book, isBid bool) ([]Level, []uint64) {
	var prices []uint64
	if isBid {
		prices = l2Book.CollectBidPrices()
	} else {
		prices = l2Book.CollectAskPrices()
	}
	levels := make([]Level, 0, len(prices))
	for _, price := range prices {
		levels = append(levels, Level{
			Price: price,
			Pqty:  l2Book.PublicLevel(isBid, price),
			Cqty:  l2Book.CurrentLevel(isBid, price),
		})
	}
	return levels, l2Book.Scales(isBid)
}

func dumpOrders(ob *book.OrderBook, isBid bool) []Order {
	var out []Order
	for _, price := range ob.Prices(isBid) {
		for _, o := range ob.OrdersAtPrice(isBid, price) {
			out = append(out, Order{
				ID: o.ID, CID: o.CID, Owner: o.Owner, IsBid: o.IsBid, Price: o.Price,
				Amnt: o.Amnt, Iqty: o.Iqty, Pqty: o.Pqty, Cqty: o.Cqty,
				Timestamp: o.Timestamp, ExpiresAt: o.ExpiresAt, FeeBps: o.FeeBps,
			})
		}
	}
	return out
}

func restoreSnapshot(e *engine.MatchingEngine, doc *Snapshot) {
	pairs := make(map[domain.PairID]*pair.Pair, len(doc.Pairs))
	for _, pd := range doc.Pairs {
		pairs[pd.PairID] = restorePair(pd)
	}
	e.LoadPairs(pairs)
}

func restorePair(pd Pair) *pair.Pair {
	p := pair.New(pd.PairID, pd.BaseAssetID, pd.QuoteAssetID, pd.Dust)

	for _, c := range pd.Clients {
		p.AddClient(c.CID, c.AdminAccount, c.FeeAccount)
	}
	for _, fr := range pd.FeeRecipients {
		p.Book.SetFeeRecipient(fr.CID, fr.Account)
	}

	restoreMarketState(p.Book.L1, pd.Market)

	restoreLevels(p.Book.L2, true, pd.BidLevels, pd.BidScales)
	restoreLevels(p.Book.L2, false, pd.AskLevels, pd.AskScales)

	for _, o := range pd.BidOrders {
		p.Book.LoadOrder(true, toOrder(o))
	}
	for _, o := range pd.AskOrders {
		p.Book.LoadOrder(false, toOrder(o))
	}

	return p
}

func toOrder(o Order) domain.Order {
	return domain.Order{
		ID: o.ID, CID: o.CID, Owner: o.Owner, IsBid: o.IsBid, Price: o.Price,
		Amnt: o.Amnt, Iqty: o.Iqty, Pqty: o.Pqty, Cqty: o.Cqty,
		Timestamp: o.Timestamp, ExpiresAt: o.ExpiresAt, FeeBps: o.FeeBps,
	}
}

func restoreMarketState(state interface {
	SetLastMatchedPrice(uint64)
	SetBestBid(uint64)
	SetBestAsk(uint64)
	SetLimitBuySlippageBps(uint32)
	SetLimitSellSlippageBps(uint32)
	SetMarketBuySlippageBps(uint32)
	SetMarketSellSlippageBps(uint32)
}, ms MarketState) {
	if ms.HasLMP {
		state.SetLastMatchedPrice(ms.LMP)
	}
	if ms.HasBestBid {
		state.SetBestBid(ms.BestBid)
	}
	if ms.HasBestAsk {
		state.SetBestAsk(ms.BestAsk)
	}
	if ms.HasLimitBuySlippage {
		state.SetLimitBuySlippageBps(ms.LimitBuySlippageBps)
	}
	if ms.HasLimitSellSlippage {
		state.SetLimitSellSlippageBps(ms.LimitSellSlippageBps)
	}
	if ms.HasMarketBuySlippage {
		state.SetMarketBuySlippageBps(ms.MarketBuySlippageBps)
	}
	if ms.HasMarketSellSlippage {
		state.SetMarketSellSlippageBps(ms.MarketSellSlippageBps)
	}
}

func restoreLevels(l2Book *l2.Book, isBid bool, levels []Level, scales []uint64) {
	for _, scale := range scales {
		l2Book.RegisterScale(isBid, scale)
	}
	for _, lvl := range levels {
		l2Book.InsertPrice(isBid, lvl.Price)
		_ = l2Book.SetPublicLevel(isBid, lvl.Price, lvl.Pqty)
		_ = l2Book.SetCurrentLevel(isBid, lvl.Price, lvl.Cqty)
	}
}
