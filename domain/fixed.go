package domain

// Scale is the fixed-point scale shared by every price and quantity: all
// such values are unsigned integers representing a decimal with eight
// implicit fractional digits.
const Scale uint64 = 100_000_000

// ConvertToMakerMeasure expresses a taker's quantity (in the taker's own
// measure: quote for a bid, base for an ask) in the opposite side's
// measure, at price. Division truncates (saturating integer division).
func ConvertToMakerMeasure(takerIsBid bool, amount, price uint64) uint64 {
	if price == 0 {
		return 0
	}
	if takerIsBid {
		return amount * Scale / price
	}
	return amount * price / Scale
}

// GetRequired is the inverse conversion: how much of the taker's own
// measure is needed to account for amount expressed in the maker's
// measure, at price.
func GetRequired(takerIsBid bool, price, amount uint64) uint64 {
	if takerIsBid {
		return amount * price / Scale
	}
	if price == 0 {
		return 0
	}
	return amount * Scale / price
}
