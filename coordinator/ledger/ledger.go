// Package ledger defines the balance accounting units. Balances are
// integer micro-units so that ledger arithmetic is exact; float token
// amounts exist only at the reward-calculation boundary and in API
// responses.
package ledger

import "math"

// MicroPerToken is the number of micro-units in one token.
const MicroPerToken = 1_000_000

// ToMicro converts a token amount to micro-units, rounding half away
// from zero.
func ToMicro(tokens float64) int64 {
	return int64(math.Round(tokens * MicroPerToken))
}

// ToTokens converts micro-units back to a token amount.
func ToTokens(micro int64) float64 {
	return float64(micro) / MicroPerToken
}
