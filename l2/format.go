package l2

import "strconv"

// FormatFixed renders a 1e8-scaled integer as a decimal string with eight
// fractional digits, e.g. 100_000_000 -> "1.00000000".
func FormatFixed(v uint64) string {
	const scale = 100_000_000
	whole := v / scale
	frac := v % scale
	fracStr := strconv.FormatUint(frac, 10)
	for len(fracStr) < 8 {
		fracStr = "0" + fracStr
	}
	return strconv.FormatUint(whole, 10) + "." + fracStr
}
