package infra

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericToInt64(t *testing.T) {
	tests := []struct {
		name    string
		in      pgtype.Numeric
		want    int64
		wantErr string
	}{
		{"zero", Int64ToNumeric(0), 0, ""},
		{"kobo amount", Int64ToNumeric(250000), 250000, ""},
		{"positive exponent", pgtype.Numeric{Int: big.NewInt(25), Exp: 4, Valid: true}, 250000, ""},
		{"whole negative exponent", pgtype.Numeric{Int: big.NewInt(50000), Exp: -2, Valid: true}, 500, ""},
		{"fractional", pgtype.Numeric{Int: big.NewInt(50099), Exp: -2, Valid: true}, 0, "fractional"},
		{"null", pgtype.Numeric{}, 0, "NULL"},
		{"nan", pgtype.Numeric{NaN: true, Valid: true}, 0, "not finite"},
		{"infinity", pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, 0, "not finite"},
		{
			"overflow",
			pgtype.Numeric{Int: new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1)), Valid: true},
			0, "overflows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NumericToInt64(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInt64ToNumeric_Extremes(t *testing.T) {
	for _, v := range []int64{1, -1, math.MaxInt64, math.MinInt64} {
		got, err := NumericToInt64(Int64ToNumeric(v))
		require.NoError(t, err, "value: %d", v)
		assert.Equal(t, v, got)
	}
}
