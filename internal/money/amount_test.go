package money

import (
	"errors"
	"testing"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		value    string
		currency string
	}{
		{"1,234.56 EUR", "1234.56", "EUR"},
		{"1.234,56 EUR", "1234.56", "EUR"},
		{"$45.00", "45", "USD"},
		{"€ 99,90", "99.9", "EUR"},
		{"USD 1,000", "1000", "USD"},
		{"12.500 €", "12500", "EUR"},
		{"0,500", "0.5", UnknownCurrency},
		{"1 234,56 zł", "1234.56", "PLN"},
		{"1'234.50 CHF", "1234.5", "CHF"},
		{"£7", "7", "GBP"},
		{"Total: 45.10 eur", "45.1", "EUR"},
		{"US$ 3,000,000.00", "3000000", "USD"},
		{"1.234.567", "1234567", UnknownCurrency},
		{"45.", "45", UnknownCurrency},
		{"2 items 45.00", "2", UnknownCurrency},
		{".50 EUR", "0.5", "EUR"},
		{",75 €", "0.75", "EUR"},
		{"Total .99", "0.99", UnknownCurrency},
		{"45.00 - 50.00 EUR", "45", "EUR"},
		{"Total (incl. VAT) 45.00", "45", UnknownCurrency},
		{"100 kr", "100", UnknownCurrency},
		{"SEK 100 kr", "100", "SEK"},
		{"Try 45.00", "45", UnknownCurrency},
		{"45.00 Eur", "45", "EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.in, err)
			}
			want := decimal.RequireFromString(tt.value)
			if !m.Value.Equal(want) {
				t.Errorf("Expected value %s, got %s", want, m.Value)
			}
			if m.Currency != tt.currency {
				t.Errorf("Expected currency %s, got %s", tt.currency, m.Currency)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	for _, in := range []string{"not a number", "", "   ", "-45.00 EUR", "€-12", "EUR",
		"45.00-", "45,00 − EUR", "(45.00)", "(€ 1.234,56)", "EUR (45.00)"} {
		t.Run(in, func(t *testing.T) {
			m, err := Parse(in)
			if err == nil {
				t.Fatalf("Expected AmountParseError for %q, got %+v", in, m)
			}
			var pe *AmountParseError
			if !errors.As(err, &pe) {
				t.Errorf("Expected *AmountParseError, got %T", err)
			}
			if !errors.Is(err, common.ErrAmountParse) {
				t.Errorf("Expected error to match ErrAmountParse")
			}
			if !m.Value.IsZero() || m.Currency != "" {
				t.Errorf("Expected zero Money on failure, got %+v", m)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	values := []string{"0.5", "7", "45", "99.99", "1000", "1234.56", "12500", "3000000.01"}
	currencies := []string{"EUR", "USD", "CHF", UnknownCurrency}
	styles := map[string]Style{"dot-decimal": DotDecimal, "comma-decimal": CommaDecimal}

	for name, style := range styles {
		for _, v := range values {
			for _, cur := range currencies {
				in := Money{Value: decimal.RequireFromString(v), Currency: cur}
				text := Format(in, style)
				out, err := Parse(text)
				if err != nil {
					t.Fatalf("%s: Parse(%q) returned error: %v", name, text, err)
				}
				if !out.Value.Equal(in.Value) || out.Currency != in.Currency {
					t.Errorf("%s: round trip of %s %s via %q gave %s %s", name, v, cur, text, out.Value, out.Currency)
				}
			}
		}
	}
}

func TestFormat(t *testing.T) {
	m := Money{Value: decimal.RequireFromString("1234567.8"), Currency: "EUR"}
	if got := Format(m, DotDecimal); got != "1,234,567.80 EUR" {
		t.Errorf("Expected 1,234,567.80 EUR, got %s", got)
	}
	if got := Format(m, CommaDecimal); got != "1.234.567,80 EUR" {
		t.Errorf("Expected 1.234.567,80 EUR, got %s", got)
	}
	if got := Format(Money{Value: decimal.NewFromInt(5), Currency: UnknownCurrency}, DotDecimal); got != "5.00" {
		t.Errorf("Expected 5.00, got %s", got)
	}
}
