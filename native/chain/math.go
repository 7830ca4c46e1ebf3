package chain

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	one         = mustBigInt("1000000000000000000") // 1e18 fixed-point unit
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulBps scales amount by bps/10000, truncating toward zero.
func mulBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}

// mulFixedCeil multiplies an amount by a 1e18-scaled factor, rounding up so
// exposure estimates never understate the worst case.
func mulFixedCeil(amount, factor *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || factor == nil || factor.Sign() <= 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, factor)
	product.Add(product, new(big.Int).Sub(one, big.NewInt(1)))
	return product.Quo(product, one)
}
