package pair

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spotbook/domain"
	"spotbook/events"
)

func newTestPair() *Pair {
	return New("BTC-USD", "BTC", "USD", 0)
}

func TestLimitBuyGTCRestsWhenNoCross(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	order, err := p.LimitBuy(&acc, "c1", nil, "alice", 100*domain.Scale, 10, 0, 1, 0, 5, 5, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)

	head, ok := p.Book.L2.BidHead()
	require.True(t, ok)
	require.Equal(t, 100*domain.Scale, head)
}

func TestLimitBuyCrossesRestingAsk(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	_, err := p.LimitSell(&acc, "cA", nil, "A", 100*domain.Scale, 500, 0, 1, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	_, err = p.LimitBuy(&acc, "cB", nil, "B", 100*domain.Scale, 300, 0, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)

	evs := acc.Drain()
	filled := 0
	for _, e := range evs {
		if e.Kind == events.KindOrderPartiallyFilled || e.Kind == events.KindOrderFullyFilled {
			filled++
		}
	}
	require.Equal(t, 2, filled)

	_, hasBid := p.Book.L2.BidHead()
	require.False(t, hasBid)
}

func TestFIFOWithinLevel(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	// price == Scale (nominal 1.0) makes quote and base units coincide
	// numerically, matching the scenario's amounts directly.
	price := domain.Scale

	_, err := p.LimitSell(&acc, "cA", nil, "A", price, 50, 0, 1, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	_, err = p.LimitSell(&acc, "cB", nil, "B", price, 30, 0, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	_, err = p.LimitSell(&acc, "cC", nil, "C", price, 20, 0, 3, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	_, err = p.LimitBuy(&acc, "cD", nil, "D", price, 70, 0, 4, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	headID, ok := p.Book.L2.AskHead()
	require.True(t, ok)
	require.Equal(t, price, headID)
	require.Equal(t, uint64(10), p.Book.L2.CurrentLevel(false, price))
}

func TestExpiryDuringMatchSkipsExpiredMaker(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	// An expiresAt of 0 means "never", so the maker gets a deadline (100)
	// that lies before the taker's timestamp (500).
	_, err := p.LimitSell(&acc, "cA", nil, "A", 100*domain.Scale, 1000, 0, 1, 100, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	order, err := p.LimitBuy(&acc, "cB", nil, "B", 100*domain.Scale, 1000, 0, 500, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, uint64(1000), order.Cqty)

	evs := acc.Drain()
	foundExpired := false
	foundFill := false
	for _, e := range evs {
		if e.Kind == events.KindOrderExpired {
			foundExpired = true
		}
		if e.Kind == events.KindOrderPartiallyFilled || e.Kind == events.KindOrderFullyFilled {
			foundFill = true
		}
	}
	require.True(t, foundExpired)
	require.False(t, foundFill)
}

func TestFOKFailsWhenInsufficientLiquidity(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	_, err := p.LimitSell(&acc, "cA", nil, "A", 100*domain.Scale, 1*domain.Scale, 0, 1, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	order, err := p.LimitBuy(&acc, "cB", nil, "B", 100*domain.Scale, 1000*domain.Scale, 0, 2, 0, 0, 0, domain.FOK)
	require.ErrorIs(t, err, domain.ErrOrderNotFullyFilled)
	require.Nil(t, order)

	evs := acc.Drain()
	require.NotEmpty(t, evs)
}

func TestIOCDiscardsResidual(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	_, err := p.LimitSell(&acc, "cA", nil, "A", 100*domain.Scale, 10, 0, 1, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	order, err := p.LimitBuy(&acc, "cB", nil, "B", 100*domain.Scale, 100, 0, 2, 0, 0, 0, domain.IOC)
	require.NoError(t, err)
	require.Nil(t, order)

	_, hasBid := p.Book.L2.BidHead()
	require.False(t, hasBid)
}

func TestMarketBuyIgnoresTIFNoResidualPosted(t *testing.T) {
	p := newTestPair()
	var acc events.Accumulator

	_, err := p.LimitSell(&acc, "cA", nil, "A", 100*domain.Scale, 10, 0, 1, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	acc.Drain()

	err = p.MarketBuy(&acc, "cB", "B", 100, 2, 0)
	require.NoError(t, err)

	_, hasBid := p.Book.L2.BidHead()
	require.False(t, hasBid)
}

func TestAddRemoveClient(t *testing.T) {
	p := newTestPair()
	p.AddClient("c1", "admin-1", "fee-1")
	require.True(t, p.HasClient("c1"))
	p.RemoveClient("c1")
	require.False(t, p.HasClient("c1"))
}
