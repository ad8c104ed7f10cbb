package risk

import "math"

// SharesForAmount returns the whole number of shares a fixed dollar budget
// buys at the ask price: floor(amount/ask). Returns 0 when the price is not
// usable or the budget does not cover one share.
func SharesForAmount(amount, ask float64) int {
	if amount <= 0 || ask <= 0 {
		return 0
	}
	return int(math.Floor(amount / ask))
}
