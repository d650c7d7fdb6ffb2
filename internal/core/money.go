// Package core provides money parsing and formatting utilities.
//
// Amounts are shopspring decimals rounded to two fraction digits. Display
// formatting is locale aware through golang.org/x/text.
package core

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParseAmount converts a user supplied string into a strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two fraction digits.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("0")      -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s, false)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseBalance is like ParseAmount but allows zero and negative values,
// since a stored wallet balance may be overdrawn.
func ParseBalance(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(s, true)
}

func parseDecimal(s string, allowNegative bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	body := s
	if strings.HasPrefix(body, "-") {
		if !allowNegative {
			return decimal.Zero, ErrInvalidAmount
		}
		body = body[1:]
	}
	if body == "" || strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// MoneyFormatter renders amounts with locale specific separators.
type MoneyFormatter struct {
	printer *message.Printer
	point   string
}

// NewMoneyFormatter builds a formatter for a BCP 47 locale such as "en-US".
// Unknown locales fall back to English.
func NewMoneyFormatter(locale string) MoneyFormatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	point := strings.Trim(p.Sprintf("%.1f", 1.5), "15")
	if point == "" {
		point = "."
	}
	return MoneyFormatter{printer: p, point: point}
}

var maxWhole = decimal.NewFromInt(math.MaxInt64)

// Number formats an amount with exactly two fraction digits, e.g. "1,234.50".
// Only the whole part goes through the locale printer, so no digits are lost
// to float conversion.
func (f MoneyFormatter) Number(amount decimal.Decimal) string {
	amount = amount.Round(2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()

	digits := whole.String()
	if whole.LessThanOrEqual(maxWhole) {
		digits = f.printer.Sprintf("%d", whole.IntPart())
	}
	return fmt.Sprintf("%s%s%s%02d", sign, digits, f.point, cents)
}

// Format prefixes the number with the currency symbol, e.g. "$1,234.50".
// Negative values render as "-$12.00".
func (f MoneyFormatter) Format(amount decimal.Decimal, code string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	return sign + f.Symbol(code) + f.Number(amount)
}

// Symbol returns the narrow currency symbol for an ISO code, or the code
// itself followed by a space when it is unknown.
func (f MoneyFormatter) Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " "
	}
	sym := f.printer.Sprint(currency.NarrowSymbol(unit))
	if sym == unit.String() {
		return sym + " "
	}
	return sym
}
