package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccumulatorDrainOrder(t *testing.T) {
	var acc Accumulator
	acc.Emit(Event{Kind: KindOrderPlaced, Price: 1})
	acc.Emit(Event{Kind: KindOrderMatched, Price: 2})

	drained := acc.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, KindOrderPlaced, drained[0].Kind)
	require.Equal(t, KindOrderMatched, drained[1].Kind)
	require.Empty(t, acc.Drain())
}

type recordingBackend struct {
	mu      sync.Mutex
	name    string
	got     []Event
	seen    chan struct{}
	wantLen int
}

func newRecordingBackend(name string, wantLen int) *recordingBackend {
	return &recordingBackend{name: name, seen: make(chan struct{}, 1), wantLen: wantLen}
}

func (r *recordingBackend) Name() string { return r.name }

func (r *recordingBackend) HandleEvent(e Event) {
	r.mu.Lock()
	r.got = append(r.got, e)
	done := len(r.got) >= r.wantLen
	r.mu.Unlock()
	if done {
		select {
		case r.seen <- struct{}{}:
		default:
		}
	}
}

func (r *recordingBackend) Shutdown() {}

func TestBusFanOutPreservesOrder(t *testing.T) {
	bus := NewBus()
	backend := newRecordingBackend("test", 3)
	bus.Register(backend)

	bus.Publish([]Event{
		{Kind: KindOrderPlaced, Price: 1},
		{Kind: KindOrderMatched, Price: 2},
		{Kind: KindOrderCancelled, Price: 3},
	})

	<-backend.seen

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.got, 3)
	require.Equal(t, uint64(1), backend.got[0].Price)
	require.Equal(t, uint64(2), backend.got[1].Price)
	require.Equal(t, uint64(3), backend.got[2].Price)
}
