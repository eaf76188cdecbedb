// Package money parses and formats invoice totals across locale conventions.
package money

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/shopspring/decimal"
)

// Money is a non-negative amount and its currency code.
type Money struct {
	Value    decimal.Decimal
	Currency string
}

// Float64 returns the value as a float for store properties.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

func (m Money) String() string {
	return Format(m, DotDecimal)
}

// AmountParseError is returned when no usable number can be isolated.
type AmountParseError struct {
	Input  string
	Reason string
}

func (e *AmountParseError) Error() string {
	return fmt.Sprintf("parse amount %q: %s", e.Input, e.Reason)
}

func (e *AmountParseError) Unwrap() error {
	return common.ErrAmountParse
}

// Parse converts free text such as "1.234,56 €" or "USD 45.00" into Money.
func Parse(s string) (Money, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return Money{}, &AmountParseError{Input: s, Reason: "empty input"}
	}

	token, negative, rest, ok := numericToken(in)
	if !ok {
		return Money{}, &AmountParseError{Input: s, Reason: "no numeric token"}
	}
	if negative {
		return Money{}, &AmountParseError{Input: s, Reason: "negative amount"}
	}

	normalized := normalize(token)
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return Money{}, &AmountParseError{Input: s, Reason: "malformed number " + token}
	}

	return Money{Value: value, Currency: detectCurrency(in, rest)}, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isGroupMark(r rune) bool {
	return r == '\'' || r == '’'
}

func isSeparator(r rune) bool {
	return r == '.' || r == ',' || isGroupMark(r)
}

// numericToken returns the first run of digits and separators, whether it is
// written as a negative (leading or trailing minus, or accounting parentheses),
// and the text after it. A separator directly before the first digit belongs to
// the token, so ".50" stays fractional.
func numericToken(s string) (string, bool, string, bool) {
	runes := []rune(s)
	start := -1
	for i, r := range runes {
		if isDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false, "", false
	}
	if start > 0 && (runes[start-1] == '.' || runes[start-1] == ',') &&
		(start == 1 || !isDigit(runes[start-2])) {
		start--
	}

	var b strings.Builder
	i := start
	stop := len(runes)
	for i < len(runes) {
		r := runes[i]
		switch {
		case isDigit(r) || isSeparator(r):
			b.WriteRune(r)
			i++
		case isSpace(r):
			// a space only groups thousands when exactly three digits follow
			j := i + 1
			n := 0
			for j < len(runes) && isDigit(runes[j]) {
				j++
				n++
			}
			cur := []rune(b.String())
			if n != 3 || !isDigit(cur[len(cur)-1]) {
				stop = i
				i = len(runes)
				continue
			}
			b.WriteRune(r)
			i++
		default:
			stop = i
			i = len(runes)
		}
	}

	prefix := strings.TrimSpace(string(runes[:start]))
	rest := string(runes[stop:])
	token := strings.TrimRightFunc(b.String(), func(r rune) bool { return isSeparator(r) || isSpace(r) })
	return token, isNegative(prefix, rest), rest, token != ""
}

func isMinus(r rune) bool {
	return r == '-' || r == '−'
}

// isNegative looks at the text around the number: "-45", "€-45", "45.00-" and
// "(45.00)" are negative; "45.00 - 50.00" is a range, not a sign.
func isNegative(prefix, rest string) bool {
	if p := []rune(prefix); len(p) > 0 && (isMinus(p[0]) || isMinus(p[len(p)-1])) {
		return true
	}
	after := []rune(strings.TrimLeftFunc(rest, isSpace))
	if len(after) > 0 && isMinus(after[0]) {
		tail := strings.TrimLeftFunc(string(after[1:]), isSpace)
		if tail == "" || !isDigit([]rune(tail)[0]) {
			return true
		}
	}
	open := strings.LastIndexAny(prefix, "()")
	closeAt := strings.IndexAny(rest, "()")
	return open >= 0 && prefix[open] == '(' && closeAt >= 0 && rest[closeAt] == ')'
}

// normalize picks the decimal separator and strips grouping.
// Both separators present: the last one is decimal. A single separator followed by
// exactly three digits and a non-zero integer part groups thousands.
func normalize(token string) string {
	t := strings.Map(func(r rune) rune {
		if isSpace(r) || isGroupMark(r) {
			return -1
		}
		return r
	}, token)

	lastDot := strings.LastIndex(t, ".")
	lastComma := strings.LastIndex(t, ",")

	decimalAt := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalAt = max(lastDot, lastComma)
	case lastDot >= 0 || lastComma >= 0:
		idx := max(lastDot, lastComma)
		sep := t[idx : idx+1]
		digitsAfter := len(t) - idx - 1
		intPart := strings.NewReplacer(".", "", ",", "").Replace(t[:idx])
		switch {
		case strings.Count(t, sep) > 1:
			if digitsAfter != 3 {
				decimalAt = idx
			}
		case digitsAfter == 3 && strings.TrimLeft(intPart, "0") != "":
			// thousands
		default:
			decimalAt = idx
		}
	}

	var b strings.Builder
	for i, r := range t {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case i == decimalAt:
			b.WriteByte('.')
		}
	}
	out := b.String()
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}
