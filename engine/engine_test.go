package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"spotbook/domain"
	"spotbook/events"
	"spotbook/metrics"
)

func TestAddPairCreatesAndRegistersClient(t *testing.T) {
	e := New(nil, 0)
	evs := e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	require.True(t, e.HasPair("BTC-USD"))
	require.Equal(t, 1, e.PairCount())
	require.Len(t, evs, 1)
	require.Equal(t, events.KindPairAdded, evs[0].Kind)
}

func TestAddPairIdempotentOnExistingPair(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)
	e.AddPair("c2", "admin-2", "fee-2", "BTC-USD", "BTC", "USD", 2)

	require.Equal(t, 1, e.PairCount())
}

func TestTradingCallsRejectUnknownPair(t *testing.T) {
	e := New(nil, 0)

	_, _, err := e.LimitBuy("NOPE", "c1", nil, "alice", 100*domain.Scale, 10, 0, 1, 0, 0, 0, domain.GTC)
	require.ErrorIs(t, err, domain.ErrPairNotFound)

	_, err = e.MarketBuy("NOPE", "c1", "alice", 10, 1, 0)
	require.ErrorIs(t, err, domain.ErrPairNotFound)

	_, err = e.CancelOrder("NOPE", true, domain.ZeroOrderID, "alice", 1)
	require.ErrorIs(t, err, domain.ErrPairNotFound)
}

func TestLimitBuyRestsAndDrainsEvents(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	order, evs, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 10, 0, 2, 0, 5, 5, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)
	require.NotEmpty(t, evs)
}

func TestLimitBuyThenMarketSellCrosses(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	_, _, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 500, 0, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)

	evs, err := e.MarketSell("BTC-USD", "c2", "bob", 300, 3, 0)
	require.NoError(t, err)

	found := false
	for _, ev := range evs {
		if ev.Kind == events.KindOrderPartiallyFilled || ev.Kind == events.KindOrderFullyFilled {
			found = true
		}
	}
	require.True(t, found)
}

func TestCancelOrderRemovesFromBook(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	order, _, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 10, 0, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)

	evs, err := e.CancelOrder("BTC-USD", true, order.ID, "alice", 3)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
}

func TestSetIcebergQuantityForwards(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	order, _, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 1000, 500, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)

	evs, err := e.SetIcebergQuantity("BTC-USD", true, order.ID, 200, 3)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
}

func TestRejectReasonMapsKnownSentinelsToStableLabels(t *testing.T) {
	require.Equal(t, "pair_not_found", rejectReason(domain.ErrPairNotFound))
	require.Equal(t, "price_is_zero", rejectReason(domain.ErrPriceIsZero))
	require.Equal(t, "not_owner", rejectReason(domain.ErrOrderNotOwnedBySender))
	require.Equal(t, "other", rejectReason(domain.ErrL2PriceMissing))
}

func TestTradingCallsRecordRejectionOnError(t *testing.T) {
	e := New(nil, 0)
	c := metrics.GetCollector()
	before := testutil.ToFloat64(c.OrdersRejected.WithLabelValues("REJECT-PAIR", "pair_not_found"))

	_, _, err := e.LimitBuy("REJECT-PAIR", "c1", nil, "alice", 100*domain.Scale, 10, 0, 1, 0, 0, 0, domain.GTC)
	require.ErrorIs(t, err, domain.ErrPairNotFound)

	after := testutil.ToFloat64(c.OrdersRejected.WithLabelValues("REJECT-PAIR", "pair_not_found"))
	require.Equal(t, before+1, after)
}

func TestExpireOrdersSweepsBothSides(t *testing.T) {
	e := New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)

	_, _, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 10, 0, 2, 50, 0, 0, domain.GTC)
	require.NoError(t, err)

	evs, err := e.ExpireOrders("BTC-USD", "admin-1", 100)
	require.NoError(t, err)

	found := false
	for _, ev := range evs {
		if ev.Kind == events.KindOrderExpired {
			found = true
		}
	}
	require.True(t, found)
}
