package store

import "fmt"

type Operator string

const (
	Equal            Operator = "Equal"
	NotEqual         Operator = "NotEqual"
	GreaterThan      Operator = "GreaterThan"
	GreaterThanEqual Operator = "GreaterThanEqual"
	LessThan         Operator = "LessThan"
	LessThanEqual    Operator = "LessThanEqual"
	Like             Operator = "Like"
	And              Operator = "And"
	Or               Operator = "Or"
	// All matches every object in the collection; used for purges.
	All Operator = "All"
)

// Filter is a where clause over flat properties. Leaf filters use Path and
// Value; And and Or combine Operands.
type Filter struct {
	Path     string   `json:"path,omitempty"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
	Operands []Filter `json:"operands,omitempty"`
}

// MatchAll selects everything in a collection.
var MatchAll = Filter{Operator: All}

func Where(path string, op Operator, value any) *Filter {
	return &Filter{Path: path, Operator: op, Value: value}
}

func ParseOperator(s string) (Operator, error) {
	switch op := Operator(s); op {
	case Equal, NotEqual, GreaterThan, GreaterThanEqual, LessThan, LessThanEqual, Like, And, Or, All:
		return op, nil
	}
	return "", fmt.Errorf("%w: operator %q", ErrInvalidFilter, s)
}

// Fields lists every property path the filter references.
func (f Filter) Fields() []string {
	switch f.Operator {
	case All:
		return nil
	case And, Or:
		var out []string
		for _, o := range f.Operands {
			out = append(out, o.Fields()...)
		}
		return out
	}
	return []string{f.Path}
}
