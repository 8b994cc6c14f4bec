// Package fixedpoint is the monetary number type of the indexer.
//
// Every value carries at most Precision() fractional digits. Any operation that would
// produce more digits (division, multiplication, parsing, rescaling) truncates toward
// zero. Rounding half-up is never applied.
package fixedpoint

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/fd1az/synth-indexer/internal/apperror"
)

// DefaultPrecision matches the 18-decimal convention of EVM tokens.
const DefaultPrecision int32 = 18

var precision atomic.Int32

func init() {
	precision.Store(DefaultPrecision)
}

// SetPrecision sets the process-wide number of fractional digits and returns the previous one.
// It is meant to be called once at startup.
func SetPrecision(digits int32) int32 {
	if digits < 0 {
		digits = 0
	}
	return precision.Swap(digits)
}

// Precision returns the process-wide number of fractional digits.
func Precision() int32 {
	return precision.Load()
}

// Decimal is an immutable fixed-point number.
type Decimal struct {
	d decimal.Decimal
}

// Zero is 0.
var Zero = Decimal{d: decimal.Zero}

// One is 1.
var One = Decimal{d: decimal.NewFromInt(1)}

func wrap(d decimal.Decimal) Decimal {
	return Decimal{d: d.Truncate(Precision())}
}

// NewFromInt returns value as a Decimal.
func NewFromInt(value int64) Decimal {
	return Decimal{d: decimal.NewFromInt(value)}
}

// New returns value * 10^exp, truncated to the configured precision.
func New(value int64, exp int32) Decimal {
	return wrap(decimal.New(value, exp))
}

// NewFromBigInt returns value * 10^exp, truncated to the configured precision.
// Use it to scale raw on-chain integers: NewFromBigInt(raw, -int32(decimals)).
func NewFromBigInt(value *big.Int, exp int32) Decimal {
	if value == nil {
		return Zero
	}
	return wrap(decimal.NewFromBigInt(value, exp))
}

// NewFromString parses s, truncating extra fractional digits.
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, apperror.New(apperror.CodeInvalidDecimal,
			apperror.WithCause(err),
			apperror.WithContextf("parse %q", s))
	}
	return wrap(d), nil
}

// MustParse is NewFromString that panics on malformed input. For constants and tests.
func MustParse(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	return wrap(d.d.Add(o.d))
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal {
	return wrap(d.d.Sub(o.d))
}

// Mul returns d * o truncated to the configured precision.
func (d Decimal) Mul(o Decimal) Decimal {
	return wrap(d.d.Mul(o.d))
}

// Div returns d / o truncated toward zero at the configured precision.
// It fails with DIVISION_BY_ZERO when o is zero.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.d.IsZero() {
		return Zero, apperror.New(apperror.CodeDivisionByZero,
			apperror.WithContextf("%s / 0", d.String()))
	}
	q, _ := d.d.QuoRem(o.d, Precision())
	return Decimal{d: q}, nil
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{d: d.d.Neg()}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{d: d.d.Abs()}
}

// Truncate drops fractional digits beyond places (places may be below the configured precision).
func (d Decimal) Truncate(places int32) Decimal {
	return Decimal{d: d.d.Truncate(places)}
}

// Cmp returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.d.Cmp(o.d)
}

// Equal reports d == o.
func (d Decimal) Equal(o Decimal) bool {
	return d.d.Equal(o.d)
}

// LessThan reports d < o.
func (d Decimal) LessThan(o Decimal) bool {
	return d.d.LessThan(o.d)
}

// GreaterThan reports d > o.
func (d Decimal) GreaterThan(o Decimal) bool {
	return d.d.GreaterThan(o.d)
}

// IsZero reports d == 0.
func (d Decimal) IsZero() bool {
	return d.d.IsZero()
}

// IsNegative reports d < 0.
func (d Decimal) IsNegative() bool {
	return d.d.IsNegative()
}

// IsPositive reports d > 0.
func (d Decimal) IsPositive() bool {
	return d.d.IsPositive()
}

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	return d.d.Sign()
}

// Min returns the smallest of the given values.
func Min(first Decimal, rest ...Decimal) Decimal {
	m := first
	for _, v := range rest {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

// Max returns the largest of the given values.
func Max(first Decimal, rest ...Decimal) Decimal {
	m := first
	for _, v := range rest {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

// String returns the canonical representation without trailing zeros.
func (d Decimal) String() string {
	return d.d.String()
}

// StringFixed renders exactly places fractional digits, truncating (never rounding).
func (d Decimal) StringFixed(places int32) string {
	return d.d.Truncate(places).StringFixed(places)
}

// InexactFloat64 is for metrics and display only. Never feed it back into arithmetic.
func (d Decimal) InexactFloat64() float64 {
	return d.d.InexactFloat64()
}

// MarshalJSON encodes d as a JSON string to keep every digit.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.d.String() + `"`), nil
}

// UnmarshalJSON accepts quoted or bare numbers.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	var raw decimal.Decimal
	if err := raw.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("fixedpoint: %w", err)
	}
	*d = wrap(raw)
	return nil
}

// Value implements driver.Valuer; decimals are stored as text.
func (d Decimal) Value() (driver.Value, error) {
	return d.d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Decimal) Scan(src any) error {
	var raw decimal.Decimal
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("fixedpoint: %w", err)
	}
	*d = wrap(raw)
	return nil
}
