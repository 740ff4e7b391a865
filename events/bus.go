package events

// Accumulator is a per-request event buffer owned by the request thread.
// Engine code appends to it as it mutates the book; at the end of the
// request the orchestrator drains it, hands the events to the Bus for
// fan-out, and also returns them to the caller.
type Accumulator struct {
	events []Event
}

func (a *Accumulator) Emit(e Event) {
	a.events = append(a.events, e)
}

// Drain returns and clears the accumulated events, in emission order.
func (a *Accumulator) Drain() []Event {
	out := a.events
	a.events = nil
	return out
}

// Backend consumes published events on its own thread at its own pace. It
// must never block the request thread or alias engine state; events are
// delivered by value.
type Backend interface {
	Name() string
	HandleEvent(e Event)
	Shutdown()
}

const backendQueueSize = 4096

type registration struct {
	backend Backend
	queue   *RingBuffer[Event]
}

// Bus is the process-wide fan-out dispatcher: every event published to it
// is cloned (by value, Event has no pointer fields into engine state) and
// delivered to each registered backend's own queue so that one slow or
// stalled backend never holds up another.
type Bus struct {
	registrations []*registration
	stop          chan struct{}
}

func NewBus() *Bus {
	return &Bus{stop: make(chan struct{})}
}

// Register adds a backend and starts its consumer goroutine. Must be
// called before Publish is used concurrently with it.
func (b *Bus) Register(backend Backend) {
	reg := &registration{backend: backend, queue: NewRingBuffer[Event](backendQueueSize)}
	b.registrations = append(b.registrations, reg)
	go b.runBackend(reg)
}

func (b *Bus) runBackend(reg *registration) {
	consumer := reg.queue.NewConsumer()
	for {
		select {
		case <-b.stop:
			reg.backend.Shutdown()
			return
		default:
		}
		event := consumer.Consume()
		reg.backend.HandleEvent(event)
	}
}

// Publish fans one batch of events (in order) out to every registered
// backend. It never blocks on a slow backend beyond that backend's own
// queue filling up.
func (b *Bus) Publish(evs []Event) {
	for _, reg := range b.registrations {
		for _, e := range evs {
			reg.queue.Publish(e)
		}
	}
}

// Shutdown signals every backend goroutine to stop. Each goroutine checks
// the signal before taking its next event, so events still queued are not
// delivered, and a goroutine waiting on an empty queue only notices the
// signal (and calls the backend's Shutdown) after one more event arrives.
func (b *Bus) Shutdown() {
	close(b.stop)
}
