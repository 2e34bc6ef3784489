package chaintypes

import "math/big"

// decGreater reports whether a decimal-string-encoded integer a is
// strictly greater than b. An empty string is treated as zero so a
// never-yet-observed price field never blocks the first real update.
func decGreater(a, b string) bool {
	ai, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return false
	}
	bi, ok := new(big.Int).SetString(b, 10)
	if !ok {
		bi = big.NewInt(0)
	}
	return ai.Cmp(bi) > 0
}
