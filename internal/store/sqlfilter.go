package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders backend specific pieces of a where clause. Property names
// reaching a Dialect have already been checked against the schema.
type Dialect interface {
	Field(name string, dt DataType) string
	Placeholder(n int) string
	LikeOperator() string
}

// BuildWhere renders f for collection c. Placeholders are numbered after the
// args already collected, and the extended args are returned.
func BuildWhere(c Collection, f Filter, d Dialect, args []any) (string, []any, error) {
	switch f.Operator {
	case All:
		return "1 = 1", args, nil
	case And, Or:
		if len(f.Operands) == 0 {
			return "", nil, fmt.Errorf("%w: %s without operands", ErrInvalidFilter, f.Operator)
		}
		parts := make([]string, 0, len(f.Operands))
		for _, o := range f.Operands {
			sql, next, err := BuildWhere(c, o, d, args)
			if err != nil {
				return "", nil, err
			}
			args = next
			parts = append(parts, "("+sql+")")
		}
		joiner := " AND "
		if f.Operator == Or {
			joiner = " OR "
		}
		return strings.Join(parts, joiner), args, nil
	}

	p, ok := c.Property(f.Path)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q in %s", ErrUnknownField, f.Path, c.Name)
	}
	if p.DataType == Blob {
		return "", nil, fmt.Errorf("%w: %q is not filterable", ErrInvalidFilter, f.Path)
	}

	value, err := coerce(p, f.Value)
	if err != nil {
		return "", nil, err
	}

	field := d.Field(p.Name, p.DataType)
	args = append(args, value)
	ph := d.Placeholder(len(args))

	switch f.Operator {
	case Equal:
		return field + " = " + ph, args, nil
	case NotEqual:
		return "(" + field + " IS NULL OR " + field + " <> " + ph + ")", args, nil
	case GreaterThan:
		return field + " > " + ph, args, nil
	case GreaterThanEqual:
		return field + " >= " + ph, args, nil
	case LessThan:
		return field + " < " + ph, args, nil
	case LessThanEqual:
		return field + " <= " + ph, args, nil
	case Like:
		if p.DataType != Text {
			return "", nil, fmt.Errorf("%w: Like on non-text field %q", ErrInvalidFilter, f.Path)
		}
		args[len(args)-1] = likePattern(value.(string))
		return field + " " + d.LikeOperator() + " " + ph + ` ESCAPE '\'`, args, nil
	}
	return "", nil, fmt.Errorf("%w: operator %q", ErrInvalidFilter, f.Operator)
}

func coerce(p Property, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %q has no value", ErrInvalidFilter, p.Name)
	}
	if p.DataType == Text {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q expects a number, got %q", ErrInvalidFilter, p.Name, n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q expects a number, got %T", ErrInvalidFilter, p.Name, v)
}

// likePattern maps the * and ? wildcards onto SQL's % and _.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`, "*", "%", "?", "_")
	return r.Replace(s)
}
