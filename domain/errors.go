package domain

import "errors"

// Input-validation errors.
var (
	ErrPriceIsZero                        = errors.New("price is zero")
	ErrAmountIsZero                       = errors.New("amount is zero")
	ErrPublicAmountIsZero                 = errors.New("public amount is zero")
	ErrIcebergQuantityBiggerThanWhole     = errors.New("iceberg quantity is bigger than whole amount")
	ErrUnsupportedTimeInForce             = errors.New("unsupported time in force")
)

// Authorisation errors.
var (
	ErrOrderNotOwnedBySender       = errors.New("order not owned by sender")
	ErrOrderNotSupportedByClientID = errors.New("order not supported by this client id")
)

// State errors.
var (
	ErrOrderNotFound        = errors.New("order does not exist")
	ErrOrderExpired          = errors.New("order expired")
	ErrOrderNotFullyFilled   = errors.New("order not fully filled")
	ErrNoAskOrdersInOrderbook = errors.New("no ask orders in orderbook")
	ErrNoBidOrdersInOrderbook = errors.New("no bid orders in orderbook")
	ErrPriceIsZeroInBook      = errors.New("no non-empty price level on requested side")
)

// Registry / pair errors.
var (
	ErrPairNotFound      = errors.New("pair not found")
	ErrPairAlreadyExists = errors.New("pair already exists")
	ErrClientNotFound    = errors.New("client not registered for pair")
)

// Internal-consistency errors: these indicate a bug. They are returned to
// the caller as bare sentinels, never panicked on; the core does not log
// them.
var (
	ErrL2PriceMissing   = errors.New("internal: expected L2 price level missing")
	ErrFailedToSetLevel = errors.New("internal: failed to set L2 level")
)

// Boundary (transport/persistence) errors.
var (
	ErrSnapshotIO            = errors.New("snapshot i/o error")
	ErrSnapshotSerialization = errors.New("snapshot serialization error")
)
