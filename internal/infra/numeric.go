package infra

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

var bigTen = big.NewInt(10)

// NumericToInt64 reads a whole number of minor currency units from a
// numeric column. NULL, fractional and out-of-range values are errors:
// an amount is never silently rounded.
func NumericToInt64(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric value is not finite")
	}

	v := new(big.Int).Set(n.Int)
	scale := new(big.Int).Exp(bigTen, big.NewInt(int64(abs32(n.Exp))), nil)
	switch {
	case n.Exp > 0:
		v.Mul(v, scale)
	case n.Exp < 0:
		var rem big.Int
		v.QuoRem(v, scale, &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric value %se%d has fractional minor units", n.Int, n.Exp)
		}
	}

	if !v.IsInt64() {
		return 0, fmt.Errorf("numeric value %s overflows int64", v)
	}
	return v.Int64(), nil
}

// Int64ToNumeric encodes minor units for a numeric(20,0) column.
func Int64ToNumeric(v int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(v), InfinityModifier: pgtype.Finite, Valid: true}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
