package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ClientID, Owner, PairID and AssetID are opaque byte strings. The matching
// core never interprets their contents; it only compares and hashes them.
type ClientID string
type Owner string
type PairID string
type AssetID string

// OrderID is a 128-bit ULID: a millisecond timestamp prefix followed by an
// 80-bit random tail, lexicographically sortable. Uniqueness only needs to
// hold within the lifetime of a single pair, but the generator is shared
// across pairs for simplicity.
type OrderID ulid.ULID

// ZeroOrderID is the not-an-order-id sentinel used for empty head/tail
// links in the L3 arena.
var ZeroOrderID OrderID

func (id OrderID) String() string {
	return ulid.ULID(id).String()
}

func (id OrderID) IsZero() bool {
	return id == ZeroOrderID
}

// idGenerator produces monotonic ULIDs: ids minted within the same
// millisecond on the same generator stay strictly increasing, satisfying
// the ordering guarantee from the id-generation design note.
type idGenerator struct {
	mu   sync.Mutex
	mono *ulid.MonotonicEntropy
}

func newIDGenerator() *idGenerator {
	return &idGenerator{mono: ulid.Monotonic(rand.Reader, 0)}
}

func (g *idGenerator) next(now time.Time) OrderID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(now), g.mono)
	return OrderID(id)
}

var defaultGenerator = newIDGenerator()

// NewOrderID mints a fresh, time-sortable order id.
func NewOrderID(now time.Time) OrderID {
	return defaultGenerator.next(now)
}
