package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"spotbook/domain"
	"spotbook/engine"
	"spotbook/events"
)

func TestSaveLoadRoundTripsRestingOrders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.msgpack")

	e := engine.New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)
	order, _, err := e.LimitBuy("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 10*domain.Scale, 2*domain.Scale, 2, 0, 5, 5, domain.GTC)
	require.NoError(t, err)
	require.NotNil(t, order)

	m := NewManager(path)
	require.NoError(t, m.Save(e, 100))

	_, err = os.Stat(path)
	require.NoError(t, err)

	restored := engine.New(nil, 0)
	require.NoError(t, m.Load(restored))

	require.True(t, restored.HasPair("BTC-USD"))

	evs, err := restored.CancelOrder("BTC-USD", true, order.ID, "alice", 3)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.msgpack")

	m := NewManager(path)
	e := engine.New(nil, 0)
	require.NoError(t, m.Load(e))
	require.Equal(t, 0, e.PairCount())
}

func TestSaveWritesReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.msgpack")

	e := engine.New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)
	m := NewManager(path)
	require.NoError(t, m.Save(e, 1))

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, before)
}

func TestRoundTripRestoredAskIsFillable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.msgpack")

	e := engine.New(nil, 0)
	e.AddPair("c1", "admin-1", "fee-1", "BTC-USD", "BTC", "USD", 1)
	_, _, err := e.LimitSell("BTC-USD", "c1", nil, "alice", 100*domain.Scale, 5*domain.Scale, 0, 2, 0, 0, 0, domain.GTC)
	require.NoError(t, err)

	m := NewManager(path)
	require.NoError(t, m.Save(e, 1))

	restored := engine.New(nil, 0)
	require.NoError(t, m.Load(restored))

	_, evs, err := restored.LimitBuy("BTC-USD", "c2", nil, "bob", 100*domain.Scale, 5*domain.Scale, 0, 3, 0, 0, 0, domain.GTC)
	require.NoError(t, err)

	filled := false
	for _, ev := range evs {
		if ev.Kind == events.KindOrderFullyFilled {
			filled = true
		}
	}
	require.True(t, filled)
}
