package domain

// TimeInForce is modeled as an exhaustive tagged variant per the design
// note against runtime string matching.
type TimeInForce int

const (
	GTC TimeInForce = iota // Good-Till-Canceled: rest the remainder at its limit
	IOC                    // Immediate-Or-Cancel: fill what you can, discard the rest
	FOK                    // Fill-Or-Kill: fail if anything is left unfilled
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

func (t TimeInForce) Valid() bool {
	switch t {
	case GTC, IOC, FOK:
		return true
	default:
		return false
	}
}
