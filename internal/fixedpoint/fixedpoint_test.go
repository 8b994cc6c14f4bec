package fixedpoint_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

// withPrecision swaps the process-wide precision for one test. Tests using it must not run in parallel.
func withPrecision(t *testing.T, digits int32) {
	t.Helper()
	prev := fixedpoint.SetPrecision(digits)
	t.Cleanup(func() { fixedpoint.SetPrecision(prev) })
}

func TestDiv_Truncates(t *testing.T) {
	withPrecision(t, 2)

	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"ten thirds", "10", "3", "3.33"},
		{"two thirds never rounds up", "2", "3", "0.66"},
		{"negative toward zero", "-10", "3", "-3.33"},
		{"negative divisor", "10", "-3", "-3.33"},
		{"exact", "1000", "200", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fixedpoint.MustParse(tt.a).Div(fixedpoint.MustParse(tt.b))
			require.NoError(t, err)
			assert.True(t, got.Equal(fixedpoint.MustParse(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDiv_ByZero(t *testing.T) {
	_, err := fixedpoint.NewFromInt(1).Div(fixedpoint.Zero)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeDivisionByZero))
}

func TestParseAndMul_TruncateToPrecision(t *testing.T) {
	withPrecision(t, 4)

	d := fixedpoint.MustParse("1.23456789")
	assert.Equal(t, "1.2345", d.String())

	p := fixedpoint.MustParse("0.3333").Mul(fixedpoint.MustParse("0.3333"))
	assert.Equal(t, "0.111", p.String(), "0.11108889 truncated to 4 digits")
}

func TestArithmetic(t *testing.T) {
	a := fixedpoint.MustParse("2.5")
	b := fixedpoint.NewFromInt(4)

	assert.Equal(t, "6.5", a.Add(b).String())
	assert.Equal(t, "-1.5", a.Sub(b).String())
	assert.Equal(t, "10", a.Mul(b).String())
	assert.Equal(t, -1, a.Cmp(b))
	assert.True(t, a.LessThan(b))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, fixedpoint.Min(b, a).Equal(a))
	assert.True(t, fixedpoint.Max(a, b, fixedpoint.Zero).Equal(b))
	assert.Equal(t, "2.5", a.Neg().Abs().String())
}

func TestNewFromBigInt_ScalesRawUnits(t *testing.T) {
	raw, ok := new(big.Int).SetString("153250000000", 10)
	require.True(t, ok)

	got := fixedpoint.NewFromBigInt(raw, -8)
	assert.Equal(t, "1532.5", got.String())
	assert.True(t, fixedpoint.NewFromBigInt(nil, 0).IsZero())
}

func TestStringFixed_NeverRoundsUp(t *testing.T) {
	assert.Equal(t, "0.99", fixedpoint.MustParse("0.999").StringFixed(2))
	assert.Equal(t, "5.00", fixedpoint.NewFromInt(5).StringFixed(2))
}

func TestJSONRoundTripKeepsDigits(t *testing.T) {
	in := fixedpoint.MustParse("123.000000000000000001")

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"123.000000000000000001"`, string(b))

	var out fixedpoint.Decimal
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, in.Equal(out))
}

func TestScanValue(t *testing.T) {
	var d fixedpoint.Decimal
	require.NoError(t, d.Scan("42.42"))

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "42.42", v)
}

func TestNewFromString_Invalid(t *testing.T) {
	_, err := fixedpoint.NewFromString("not-a-number")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDecimal))
}
