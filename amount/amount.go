// Package amount defines funding amounts in satoshis and the
// inclusive ranges of amounts a contract can accept.
package amount

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jamesob/sapio/errors"
)

// Amount is a count of satoshis, the smallest fee-bearing unit.
type Amount int64

const (
	// SatsPerBitcoin is the number of satoshis in one bitcoin.
	SatsPerBitcoin = 100000000

	// MaxMoney is the largest amount a single output can carry.
	MaxMoney Amount = 21000000 * SatsPerBitcoin

	// DefaultDust is the smallest amount worth creating an output
	// for under standard relay policy for witness script outputs.
	DefaultDust Amount = 330
)

// ErrBadAmount is returned for negative, fractional-satoshi,
// oversized, or unparseable amounts.
var ErrBadAmount = errors.New("bad amount")

var satsPerBTC = decimal.New(SatsPerBitcoin, 0)

// Sats returns n satoshis.
func Sats(n int64) Amount { return Amount(n) }

// Bitcoins returns n whole bitcoins.
func Bitcoins(n int64) Amount { return Amount(n * SatsPerBitcoin) }

// FromBTC converts a decimal bitcoin value to satoshis.
// Values with more than 8 decimal places are rejected.
func FromBTC(btc decimal.Decimal) (Amount, error) {
	sats := btc.Mul(satsPerBTC)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, errors.WithDetailf(ErrBadAmount, "%s BTC is not a whole number of satoshis", btc)
	}
	if sats.IsNegative() || sats.GreaterThan(decimal.New(int64(MaxMoney), 0)) {
		return 0, errors.WithDetailf(ErrBadAmount, "%s BTC is out of range", btc)
	}
	return Amount(sats.IntPart()), nil
}

// Parse reads an amount written as "<decimal> BTC" or
// "<integer> sat[s]". A bare integer is a satoshi count.
func Parse(s string) (Amount, error) {
	f := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	var num, unit string
	switch len(f) {
	case 1:
		num = f[0]
		for _, u := range []string{"btc", "sats", "sat"} {
			if strings.HasSuffix(num, u) {
				num, unit = strings.TrimSuffix(num, u), u
				break
			}
		}
	case 2:
		num, unit = f[0], f[1]
	default:
		return 0, errors.WithDetailf(ErrBadAmount, "cannot parse %q", s)
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0, errors.WithDetailf(ErrBadAmount, "cannot parse %q", s)
	}
	switch unit {
	case "btc":
		return FromBTC(d)
	case "", "sat", "sats":
		if !d.Equal(d.Truncate(0)) {
			return 0, errors.WithDetailf(ErrBadAmount, "fractional satoshis in %q", s)
		}
		if d.IsNegative() || d.GreaterThan(decimal.New(int64(MaxMoney), 0)) {
			return 0, errors.WithDetailf(ErrBadAmount, "%q is out of range", s)
		}
		return Amount(d.IntPart()), nil
	}
	return 0, errors.WithDetailf(ErrBadAmount, "unknown unit %q", unit)
}

// Valid reports whether a is within [0, MaxMoney].
func (a Amount) Valid() bool {
	return a >= 0 && a <= MaxMoney
}

// BTC returns a as a decimal number of bitcoins.
func (a Amount) BTC() decimal.Decimal {
	return decimal.New(int64(a), -8)
}

// String formats a in bitcoins with all eight decimal places.
func (a Amount) String() string {
	return a.BTC().StringFixed(8) + " BTC"
}

// UnmarshalJSON accepts a satoshi count or a string in any form
// Parse accepts.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Sub(ErrBadAmount, err)
		}
	} else {
		s = string(b)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
