package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultTolerance is the rounding tolerance used by balance and cash checks
// when a company does not configure its own.
var DefaultTolerance = decimal.RequireFromString("0.01")

const maxDisplayScale = 8

// Money is an amount in a single currency together with its display string.
type Money struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

// NewMoney builds a Money value and renders its formatted string.
func NewMoney(amount decimal.Decimal, cur string) Money {
	return Money{
		Amount:    amount,
		Currency:  cur,
		Formatted: FormatAmount(amount, cur),
	}
}

// ZeroMoney returns zero in the given currency.
func ZeroMoney(cur string) Money {
	return NewMoney(decimal.Zero, cur)
}

// Add returns m + o. Both must share a currency; callers aggregate per currency.
func (m Money) Add(o Money) Money {
	return NewMoney(m.Amount.Add(o.Amount), m.Currency)
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return NewMoney(m.Amount.Sub(o.Amount), m.Currency)
}

// Neg returns -m.
func (m Money) Neg() Money {
	return NewMoney(m.Amount.Neg(), m.Currency)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Ptr returns a pointer to a copy of m.
func (m Money) Ptr() *Money {
	return &m
}

// WithinTolerance reports whether |m| <= tol.
func (m Money) WithinTolerance(tol decimal.Decimal) bool {
	return m.Amount.Abs().LessThanOrEqual(tol)
}

// MinorUnits returns the number of decimal places cur is settled in. Codes
// that are not ISO 4217 keep eight.
func MinorUnits(cur string) int32 {
	unit, err := currency.ParseISO(cur)
	if err != nil {
		return maxDisplayScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// RoundMinor rounds amount to the minor unit of cur.
func RoundMinor(amount decimal.Decimal, cur string) decimal.Decimal {
	return amount.Round(MinorUnits(cur))
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount for display: currency symbol, digit grouping
// and the currency's minor-unit scale. Codes that are not ISO 4217 (crypto
// symbols) keep the amount's own scale, between 2 and 8 places.
func FormatAmount(amount decimal.Decimal, cur string) string {
	unit, err := currency.ParseISO(cur)
	if err != nil {
		scale := int32(2)
		if exp := -amount.Exponent(); exp > scale {
			scale = exp
		}
		if scale > maxDisplayScale {
			scale = maxDisplayScale
		}
		return strings.TrimSpace(cur + " " + groupDigits(amount.StringFixed(scale)))
	}

	scale, _ := currency.Standard.Rounding(unit)
	symbol := printer.Sprint(currency.Symbol(unit))
	if amount.IsNegative() {
		return "-" + symbol + groupDigits(amount.Abs().StringFixed(int32(scale)))
	}
	return symbol + groupDigits(amount.StringFixed(int32(scale)))
}

// groupDigits inserts thousands separators into a plain decimal string.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
