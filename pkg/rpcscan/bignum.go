package rpcscan

import "math/big"

func bigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
