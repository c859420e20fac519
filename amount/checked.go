package amount

import "math"

// Add returns a+b, or false if the sum overflows int64.
func Add(a, b Amount) (Amount, bool) {
	if (b > 0 && a > math.MaxInt64-b) ||
		(b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// Sub returns a-b, or false if the difference overflows int64.
func Sub(a, b Amount) (Amount, bool) {
	if (b > 0 && a < math.MinInt64+b) ||
		(b < 0 && a > math.MaxInt64+b) {
		return 0, false
	}
	return a - b, true
}

// Sum returns the total of as. It fails if the total or any partial
// sum falls outside [0, MaxMoney].
func Sum(as ...Amount) (Amount, bool) {
	var total Amount
	for _, a := range as {
		var ok bool
		total, ok = Add(total, a)
		if !ok || !total.Valid() {
			return 0, false
		}
	}
	return total, true
}
