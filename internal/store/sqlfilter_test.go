package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/joseph-ayodele/taix/constants"
)

type qmarkDialect struct{}

func (qmarkDialect) Field(name string, _ DataType) string { return "p." + name }
func (qmarkDialect) Placeholder(n int) string            { return fmt.Sprintf("$%d", n) }
func (qmarkDialect) LikeOperator() string                { return "LIKE" }

func TestBuildWhere(t *testing.T) {
	c := InvoiceSchema()
	tests := []struct {
		name     string
		filter   Filter
		wantSQL  string
		wantArgs []any
	}{
		{"match all", MatchAll, "1 = 1", nil},
		{"equal text", *Where(constants.PropCountry, Equal, "Germany"), "p.country = $2", []any{"seed", "Germany"}},
		{"greater number from string", *Where(constants.PropValue, GreaterThan, "10.5"), "p.value > $2", []any{"seed", 10.5}},
		{"not equal includes missing", *Where(constants.PropCurrency, NotEqual, "EUR"), "(p.currency IS NULL OR p.currency <> $2)", []any{"seed", "EUR"}},
		{"like wildcards", *Where(constants.PropRecipientAddress, Like, "*Berlin?"), `p.recipient_address LIKE $2 ESCAPE '\'`, []any{"seed", "%Berlin_"}},
		{
			"and",
			Filter{Operator: And, Operands: []Filter{*Where(constants.PropCountry, Equal, "Germany"), *Where(constants.PropValue, LessThanEqual, 100)}},
			"(p.country = $2) AND (p.value <= $3)",
			[]any{"seed", "Germany", 100.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BuildWhere(c, tt.filter, qmarkDialect{}, []any{"seed"})
			if err != nil {
				t.Fatalf("BuildWhere failed: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("Expected SQL %q, got %q", tt.wantSQL, sql)
			}
			if tt.wantArgs == nil {
				tt.wantArgs = []any{"seed"}
			}
			if fmt.Sprint(args) != fmt.Sprint(tt.wantArgs) {
				t.Errorf("Expected args %v, got %v", tt.wantArgs, args)
			}
		})
	}
}

func TestBuildWhereRejects(t *testing.T) {
	c := InvoiceSchema()
	tests := []struct {
		name   string
		filter Filter
		want   error
	}{
		{"unknown field", *Where("colour", Equal, "red"), ErrUnknownField},
		{"blob field", *Where(constants.PropPDF, Equal, "x"), ErrInvalidFilter},
		{"number not numeric", *Where(constants.PropValue, Equal, "lots"), ErrInvalidFilter},
		{"like on number", *Where(constants.PropValue, Like, "1*"), ErrInvalidFilter},
		{"empty and", Filter{Operator: And}, ErrInvalidFilter},
		{"bad operator", Filter{Path: constants.PropCountry, Operator: "Near", Value: "x"}, ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildWhere(c, tt.filter, qmarkDialect{}, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	id := "01920000-0000-7000-8000-000000000001"
	got, err := DecodeCursor(EncodeCursor(id))
	if err != nil || got != id {
		t.Errorf("Expected %q, got %q (%v)", id, got, err)
	}
	if _, err := DecodeCursor("!!not base64"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got %v", err)
	}
	if got, err := DecodeCursor(""); got != "" || err != nil {
		t.Errorf("Expected empty cursor to start at the beginning, got %q (%v)", got, err)
	}
}

func TestVectorCodecAndCosine(t *testing.T) {
	v := []float32{1, -2.5, 3}
	got, err := DecodeVector(EncodeVector(v))
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("Expected %v, got %v", v, got)
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error on truncated blob")
	}

	s, _ := Cosine([]float32{1, 0}, []float32{1, 0})
	if s < 0.999 {
		t.Errorf("Expected identical vectors to score 1, got %v", s)
	}
	s, _ = Cosine([]float32{0, 0}, []float32{1, 0})
	if s != 0 {
		t.Errorf("Expected zero vector to score 0, got %v", s)
	}
	if _, err := Cosine([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("Expected dim mismatch error")
	}
}

func TestSchemaHelpers(t *testing.T) {
	c := InvoiceSchema()
	if err := c.CheckFields(constants.PropCountry, "nope"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
	text := c.VectorText(map[string]any{
		constants.PropCountry:  "Germany",
		constants.PropPDF:      "AAAA",
		constants.PropFileName: "a.pdf",
	})
	if !strings.HasPrefix(text, constants.InvoiceCollection) {
		t.Errorf("Expected vector text to start with the collection name, got %q", text)
	}
	if !strings.Contains(text, "country: Germany") || strings.Contains(text, "AAAA") {
		t.Errorf("Expected only vectorized properties, got %q", text)
	}

	p := Project(map[string]any{"a": 1, "b": 2}, []string{"b", "c"})
	if len(p) != 1 || p["b"] != 2 {
		t.Errorf("Expected projection to keep only b, got %v", p)
	}
}
