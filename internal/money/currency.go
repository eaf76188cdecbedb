package money

import (
	"strings"
	"unicode"
)

// UnknownCurrency is reported when no symbol or ISO code can be isolated.
const UnknownCurrency = "UNKNOWN"

var isoCodes = map[string]struct{}{
	"AED": {}, "AUD": {}, "BGN": {}, "BRL": {}, "CAD": {}, "CHF": {}, "CNY": {}, "CZK": {},
	"DKK": {}, "EUR": {}, "GBP": {}, "HKD": {}, "HUF": {}, "ILS": {}, "INR": {}, "ISK": {},
	"JPY": {}, "KRW": {}, "MXN": {}, "NOK": {}, "NZD": {}, "PLN": {}, "RON": {}, "RUB": {},
	"SAR": {}, "SEK": {}, "SGD": {}, "THB": {}, "TRY": {}, "UAH": {}, "USD": {}, "ZAR": {},
}

// Longest symbols first so "US$" wins over "$".
var symbols = []struct {
	symbol string
	code   string
}{
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"US$", "USD"},
	{"A$", "AUD"},
	{"C$", "CAD"},
	{"S$", "SGD"},
	{"R$", "BRL"},
	{"Fr.", "CHF"},
	{"zł", "PLN"},
	{"Kč", "CZK"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"₺", "TRY"},
	{"₽", "RUB"},
	{"₪", "ILS"},
	{"₴", "UAH"},
	{"$", "USD"},
}

// detectCurrency prefers an ISO code: an upper-case three-letter word anywhere,
// or a word of any case directly after the number ("45.10 eur"). Symbols come
// next. It never guesses: the Scandinavian "kr" is shared by DKK, NOK, SEK and
// ISK, so "100 kr" is UNKNOWN unless a code is written too.
func detectCurrency(s, afterNumber string) string {
	if code, ok := isoCode(s); ok {
		return code
	}
	if code, ok := trailingCode(afterNumber); ok {
		return code
	}
	for _, sym := range symbols {
		if strings.Contains(s, sym.symbol) {
			return sym.code
		}
	}
	return UnknownCurrency
}

// isoCode finds a standalone upper-case word that is a known code.
func isoCode(s string) (string, bool) {
	var run []rune
	flush := func() (string, bool) {
		defer func() { run = run[:0] }()
		if len(run) != 3 {
			return "", false
		}
		code := string(run)
		_, ok := isoCodes[code]
		return code, ok
	}
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			run = append(run, r)
			continue
		}
		if code, ok := flush(); ok {
			return code, true
		}
	}
	return flush()
}

// trailingCode reads the first word after the number, in any case.
func trailingCode(after string) (string, bool) {
	word := strings.TrimLeftFunc(after, isSpace)
	end := strings.IndexFunc(word, func(r rune) bool { return !(r < unicode.MaxASCII && unicode.IsLetter(r)) })
	if end >= 0 {
		word = word[:end]
	}
	if len(word) != 3 {
		return "", false
	}
	code := strings.ToUpper(word)
	_, ok := isoCodes[code]
	return code, ok
}

// IsKnownCurrency reports whether code is one of the recognized ISO 4217 codes.
func IsKnownCurrency(code string) bool {
	_, ok := isoCodes[code]
	return ok
}
