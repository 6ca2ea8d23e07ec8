package submission

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// RoundHalfUp rounds v to places decimals, ties away from zero. It works on
// the shortest decimal representation of v, so 12.345 rounds to 12.35 even
// though the binary float is slightly below 12.345.
func RoundHalfUp(v float64, places int) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("cannot round %v", v)
	}
	if places < 0 {
		return 0, fmt.Errorf("negative precision %d", places)
	}

	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return 0, fmt.Errorf("cannot parse %v", v)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	num := new(big.Int).Mul(r.Num(), scale)
	den := r.Denom()

	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Mul(new(big.Int).Abs(rem), big.NewInt(2))
	if twice.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}

	out, _ := new(big.Rat).SetFrac(q, scale).Float64()
	return out, nil
}
