package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spotbook/domain"
	"spotbook/events"
)

func TestPlaceBidInsertsPriceAndLevels(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator

	order, err := ob.PlaceBid(&acc, "c1", "BTC-USD", "BTC", "USD", "alice", 100*domain.Scale, 5*domain.Scale, 2*domain.Scale, 1000, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 3*domain.Scale, order.Pqty)
	require.Equal(t, 5*domain.Scale, order.Cqty)

	require.True(t, ob.L2.PriceExists(true, 100*domain.Scale))
	require.Equal(t, 3*domain.Scale, ob.L2.PublicLevel(true, 100*domain.Scale))
	require.Equal(t, 5*domain.Scale, ob.L2.CurrentLevel(true, 100*domain.Scale))

	drained := acc.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, events.KindOrderPlaced, drained[0].Kind)
	require.Equal(t, events.KindOrderBlockChanged, drained[1].Kind)
}

func TestPlaceRejectsZeroPrice(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator
	_, err := ob.PlaceBid(&acc, "c1", "p", "B", "Q", "alice", 0, 10, 0, 1, 0, 0)
	require.ErrorIs(t, err, domain.ErrPriceIsZero)
}

func TestPlaceRejectsFullIcebergHide(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator
	_, err := ob.PlaceAsk(&acc, "c1", "p", "B", "Q", "alice", 100, 10, 10, 1, 0, 0)
	require.ErrorIs(t, err, domain.ErrPublicAmountIsZero)
}

func TestCancelLastOrderAtPriceRemovesLevel(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator
	order, err := ob.PlaceAsk(&acc, "c1", "p", "B", "Q", "alice", 110*domain.Scale, 1*domain.Scale, 0, 1, 0, 0)
	require.NoError(t, err)
	acc.Drain()

	err = ob.CancelOrder(&acc, "p", false, order.ID, "alice", 2)
	require.NoError(t, err)

	_, ok := ob.L2.AskHead()
	require.False(t, ok)
	require.False(t, ob.L2.PriceExists(false, 110*domain.Scale))

	drained := acc.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, events.KindOrderCancelled, drained[0].Kind)
}

func TestCancelWrongOwnerFails(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator
	order, _ := ob.PlaceAsk(&acc, "c1", "p", "B", "Q", "alice", 100, 10, 0, 1, 0, 0)
	acc.Drain()

	err := ob.CancelOrder(&acc, "p", false, order.ID, "mallory", 2)
	require.ErrorIs(t, err, domain.ErrOrderNotOwnedBySender)
}

func TestIcebergRevealUpdatesPublicLevelOnly(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator
	order, err := ob.PlaceBid(&acc, "c1", "p", "B", "Q", "alice", 100*domain.Scale, 1000, 500, 1, 0, 0)
	require.NoError(t, err)
	acc.Drain()

	require.Equal(t, uint64(500), ob.L2.PublicLevel(true, 100*domain.Scale))
	require.Equal(t, uint64(1000), ob.L2.CurrentLevel(true, 100*domain.Scale))

	err = ob.SetIcebergQuantity(&acc, "p", true, order.ID, 200, 2)
	require.NoError(t, err)

	require.Equal(t, uint64(800), ob.L2.PublicLevel(true, 100*domain.Scale))
	require.Equal(t, uint64(1000), ob.L2.CurrentLevel(true, 100*domain.Scale))
}

func TestExecuteSingleMakerCross(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator

	_, err := ob.PlaceAsk(&acc, "cA", "p", "BTC", "USD", "A", 100*domain.Scale, 500, 0, 1, 0, 0)
	require.NoError(t, err)
	acc.Drain()

	taker := domain.NewOrder(domain.NewOrderID(time.UnixMilli(2)), "cB", "B", true, 100*domain.Scale, 300, 0, 2, 0, 0)

	result, err := ob.Execute(&acc, taker, "p", "BTC", "USD", 2)
	require.NoError(t, err)
	require.True(t, result.TakerCleared)
	require.False(t, result.MakerCleared)
	require.Equal(t, uint64(3), result.BaseVolume)
	require.Equal(t, uint64(300), result.QuoteVolume)

	lmp, ok := ob.L1.LastMatchedPrice()
	require.True(t, ok)
	require.Equal(t, 100*domain.Scale, lmp)
}

func TestExecuteExpiredMakerReturnsError(t *testing.T) {
	ob := NewOrderBook(0)
	var acc events.Accumulator

	_, err := ob.PlaceAsk(&acc, "cA", "p", "BTC", "USD", "A", 100*domain.Scale, 1000, 0, 1, 500, 0)
	require.NoError(t, err)
	acc.Drain()

	taker := domain.NewOrder(domain.NewOrderID(time.UnixMilli(2)), "cB", "B", true, 100*domain.Scale, 1000, 0, 600, 0, 0)
	_, err = ob.Execute(&acc, taker, "p", "BTC", "USD", 600)
	require.ErrorIs(t, err, domain.ErrOrderExpired)

	evs := acc.Drain()
	foundExpired := false
	for _, e := range evs {
		if e.Kind == events.KindOrderExpired {
			foundExpired = true
		}
	}
	require.True(t, foundExpired)
}
