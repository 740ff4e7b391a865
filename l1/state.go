// Package l1 tracks top-of-book market state: the last matched price, a
// cached best bid/ask, and per-side slippage limits. It holds no
// references into the deeper layers — only price keys and basis-point
// numbers — so it can be cloned cheaply for snapshots and events.
package l1

// State is the market-state cache for one order book.
type State struct {
	lmp      uint64
	hasLMP   bool
	bestBid  uint64
	hasBid   bool
	bestAsk  uint64
	hasAsk   bool

	limitBuySlippageBps  uint32
	hasLimitBuySlippage  bool
	limitSellSlippageBps uint32
	hasLimitSellSlippage bool

	marketBuySlippageBps  uint32
	hasMarketBuySlippage  bool
	marketSellSlippageBps uint32
	hasMarketSellSlippage bool
}

func New() *State {
	return &State{}
}

// LastMatchedPrice returns the price of the most recent fill, if any.
func (s *State) LastMatchedPrice() (uint64, bool) {
	return s.lmp, s.hasLMP
}

// SetLastMatchedPrice is called once per fill, with the execution price.
func (s *State) SetLastMatchedPrice(price uint64) {
	s.lmp = price
	s.hasLMP = true
}

func (s *State) BestBid() (uint64, bool) { return s.bestBid, s.hasBid }
func (s *State) BestAsk() (uint64, bool) { return s.bestAsk, s.hasAsk }

func (s *State) SetBestBid(price uint64) {
	s.bestBid = price
	s.hasBid = true
}

func (s *State) SetBestAsk(price uint64) {
	s.bestAsk = price
	s.hasAsk = true
}

func (s *State) ClearBestBid() { s.hasBid = false }
func (s *State) ClearBestAsk() { s.hasAsk = false }

func (s *State) LimitBuySlippageBps() (uint32, bool)  { return s.limitBuySlippageBps, s.hasLimitBuySlippage }
func (s *State) LimitSellSlippageBps() (uint32, bool) { return s.limitSellSlippageBps, s.hasLimitSellSlippage }
func (s *State) MarketBuySlippageBps() (uint32, bool) {
	return s.marketBuySlippageBps, s.hasMarketBuySlippage
}
func (s *State) MarketSellSlippageBps() (uint32, bool) {
	return s.marketSellSlippageBps, s.hasMarketSellSlippage
}

func (s *State) SetLimitBuySlippageBps(bps uint32) {
	s.limitBuySlippageBps = bps
	s.hasLimitBuySlippage = true
}

func (s *State) SetLimitSellSlippageBps(bps uint32) {
	s.limitSellSlippageBps = bps
	s.hasLimitSellSlippage = true
}

func (s *State) SetMarketBuySlippageBps(bps uint32) {
	s.marketBuySlippageBps = bps
	s.hasMarketBuySlippage = true
}

func (s *State) SetMarketSellSlippageBps(bps uint32) {
	s.marketSellSlippageBps = bps
	s.hasMarketSellSlippage = true
}

// Clone returns a value copy suitable for snapshot serialization or event
// emission.
func (s *State) Clone() State {
	return *s
}
