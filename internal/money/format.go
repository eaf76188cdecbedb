package money

import "strings"

// Style is a locale convention for separators.
type Style int

const (
	// DotDecimal renders 1,234.56
	DotDecimal Style = iota
	// CommaDecimal renders 1.234,56
	CommaDecimal
)

// Format renders m with two decimals in the given style, followed by the currency code
// unless it is unknown.
func Format(m Money, style Style) string {
	fixed := m.Value.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	thousands, dec := ",", "."
	if style == CommaDecimal {
		thousands, dec = ".", ","
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	b.WriteString(dec)
	b.WriteString(frac)

	if m.Currency != "" && m.Currency != UnknownCurrency {
		b.WriteString(" ")
		b.WriteString(m.Currency)
	}
	return b.String()
}
