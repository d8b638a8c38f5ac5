// Package money parses localized price text into integer minor units and
// formats minor units back for display.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrNotNumeric = errors.New("not a number")
	ErrNegative   = errors.New("negative amount")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

var minorDigits = map[string]int32{
	"INR": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
}

// Longer tokens first so "Rs." is stripped before "Rs".
var symbols = []struct {
	token string
	code  string
}{
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"₹", "INR"},
	{"US$", "USD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// MinorDigits returns the number of minor-unit digits for an ISO currency code.
// Unknown currencies are assumed to have two.
func MinorDigits(currency string) int32 {
	if d, ok := minorDigits[strings.ToUpper(currency)]; ok {
		return d
	}
	return 2
}

// CurrencyOf resolves a currency symbol or ISO code to its ISO code. It returns
// "" when text carries no recognizable currency.
func CurrencyOf(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	upper := strings.ToUpper(text)
	for code := range minorDigits {
		if strings.Contains(upper, code) {
			return code
		}
	}
	for _, s := range symbols {
		if strings.Contains(text, s.token) {
			return s.code
		}
	}
	if len(upper) == 3 && isLetters(upper) {
		return upper
	}
	return ""
}

func Symbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "INR":
		return "₹"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	}
	return strings.ToUpper(currency) + " "
}

// ParseMinor converts price text such as "₹1,29,999.00" or "1.299,50 €" into
// minor units of currency. Fractions beyond the currency's precision are
// rounded half away from zero.
func ParseMinor(text, currency string) (int64, error) {
	cleaned, err := cleanNumber(text)
	if err != nil {
		return 0, err
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %q", ErrNegative, text)
	}
	shifted := amount.Shift(MinorDigits(currency)).Round(0)
	if shifted.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	return shifted.IntPart(), nil
}

// FormatMinor renders minor units as a plain decimal string, e.g. 129900 INR
// becomes "1299.00". ParseMinor(FormatMinor(v, c), c) == v.
func FormatMinor(minor int64, currency string) string {
	digits := MinorDigits(currency)
	return decimal.New(minor, -digits).StringFixed(digits)
}

// Display renders minor units with a currency symbol and thousands grouping.
func Display(minor int64, currency string) string {
	plain := FormatMinor(minor, currency)
	whole, frac, _ := strings.Cut(plain, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return Symbol(currency) + b.String()
}

func cleanNumber(text string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	for _, sym := range symbols {
		s = strings.ReplaceAll(s, strings.ToUpper(sym.token), "")
	}
	for code := range minorDigits {
		s = strings.ReplaceAll(s, code, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
		case r == '-' && i == 0:
		default:
			return "", fmt.Errorf("%w: %q", ErrNotNumeric, text)
		}
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		tail := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && tail > 0 && tail < 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	return s, nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
