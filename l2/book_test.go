package l2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBookInsertPriceSortedOrder(t *testing.T) {
	b := NewBook()
	b.InsertPrice(true, 100_00000000)
	b.InsertPrice(true, 105_00000000)
	b.InsertPrice(true, 95_00000000)

	require.Equal(t, []uint64{105_00000000, 100_00000000, 95_00000000}, b.CollectBidPrices())

	head, ok := b.BidHead()
	require.True(t, ok)
	require.Equal(t, uint64(105_00000000), head)
}

func TestBookInsertPriceAskAscending(t *testing.T) {
	b := NewBook()
	b.InsertPrice(false, 100_00000000)
	b.InsertPrice(false, 95_00000000)
	b.InsertPrice(false, 105_00000000)

	require.Equal(t, []uint64{95_00000000, 100_00000000, 105_00000000}, b.CollectAskPrices())
}

func TestBookInsertPriceNoOpOnDuplicate(t *testing.T) {
	b := NewBook()
	b.InsertPrice(true, 100)
	require.NoError(t, b.SetCurrentLevel(true, 100, 50))
	b.InsertPrice(true, 100)
	require.Equal(t, uint64(50), b.CurrentLevel(true, 100))
	require.Len(t, b.CollectBidPrices(), 1)
}

func TestBookRemovePriceNoOpWhenAbsent(t *testing.T) {
	b := NewBook()
	b.RemovePrice(true, 999)
	require.Empty(t, b.CollectBidPrices())
}

func TestBookClearHead(t *testing.T) {
	b := NewBook()
	b.InsertPrice(true, 100)
	b.InsertPrice(true, 90)

	popped, ok := b.ClearHead(true)
	require.True(t, ok)
	require.Equal(t, uint64(100), popped)

	head, ok := b.BidHead()
	require.True(t, ok)
	require.Equal(t, uint64(90), head)
}

func TestBookSnapshotDecimalFormatting(t *testing.T) {
	b := NewBook()
	b.InsertPrice(true, 100_00000000)
	require.NoError(t, b.SetPublicLevel(true, 100_00000000, 2_50000000))
	require.NoError(t, b.SetCurrentLevel(true, 100_00000000, 3_00000000))

	rows := b.GetSnapshot(true, 0, 10)
	require.Len(t, rows, 1)
	require.Equal(t, "100.00000000", rows[0].Price)
	require.Equal(t, "2.50000000", rows[0].Pqty)
	require.Equal(t, "3.00000000", rows[0].Cqty)
}

func TestBookQuantizedSnapshotAggregatesBuckets(t *testing.T) {
	b := NewBook()
	b.RegisterScale(false, 10)
	b.InsertPrice(false, 101)
	b.InsertPrice(false, 104)
	b.InsertPrice(false, 120)
	require.NoError(t, b.SetCurrentLevel(false, 101, 5))
	require.NoError(t, b.SetCurrentLevel(false, 104, 7))
	require.NoError(t, b.SetCurrentLevel(false, 120, 9))

	rows := b.GetSnapshotRaw(false, 10, 10)
	require.Len(t, rows, 2)
	require.Equal(t, uint64(100), rows[0].Price)
	require.Equal(t, uint64(12), rows[0].Cqty)
	require.Equal(t, uint64(120), rows[1].Price)
	require.Equal(t, uint64(9), rows[1].Cqty)
}

func TestBookSnapshotMissingScaleEmpty(t *testing.T) {
	b := NewBook()
	b.InsertPrice(true, 100)
	rows := b.GetSnapshotRaw(true, 7, 10)
	require.Empty(t, rows)
}
