package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator is a filter comparison understood by the CRM search endpoints.
type Operator string

const (
	OpEqual   Operator = "="
	OpIn      Operator = "IN"
	OpBetween Operator = "BETWEEN"
	OpGreater Operator = ">"
	OpLess    Operator = "<"
)

// Filter is a single search condition.
type Filter struct {
	Field    string
	Operator Operator
	Values   []any
}

// Criteria is an ordered set of filters. The zero value matches everything.
// Adding a filter for a field already present replaces it in place.
type Criteria struct {
	filters []Filter
}

// Where starts a Criteria with an equality filter.
func Where(field string, value any) Criteria {
	return Criteria{}.Where(field, value)
}

// In starts a Criteria with a set membership filter.
func In[V any](field string, values []V) Criteria {
	return Criteria{}.In(field, toAny(values)...)
}

// Where adds field = value.
func (c Criteria) Where(field string, value any) Criteria {
	return c.with(Filter{Field: field, Operator: OpEqual, Values: []any{value}})
}

// In adds field IN values.
func (c Criteria) In(field string, values ...any) Criteria {
	return c.with(Filter{Field: field, Operator: OpIn, Values: values})
}

// Between adds from <= field <= to.
func (c Criteria) Between(field string, from, to any) Criteria {
	return c.with(Filter{Field: field, Operator: OpBetween, Values: []any{from, to}})
}

// GreaterThan adds field > value.
func (c Criteria) GreaterThan(field string, value any) Criteria {
	return c.with(Filter{Field: field, Operator: OpGreater, Values: []any{value}})
}

// LessThan adds field < value.
func (c Criteria) LessThan(field string, value any) Criteria {
	return c.with(Filter{Field: field, Operator: OpLess, Values: []any{value}})
}

func (c Criteria) with(f Filter) Criteria {
	out := make([]Filter, 0, len(c.filters)+1)
	replaced := false
	for _, existing := range c.filters {
		if existing.Field == f.Field {
			out = append(out, f)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, f)
	}
	return Criteria{filters: out}
}

// Filters returns the filters in insertion order.
func (c Criteria) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

// Len returns the number of filters.
func (c Criteria) Len() int { return len(c.filters) }

// IsEmpty reports whether the criteria has no filters.
func (c Criteria) IsEmpty() bool { return len(c.filters) == 0 }

// Get returns the filter on field.
func (c Criteria) Get(field string) (Filter, bool) {
	for _, f := range c.filters {
		if f.Field == field {
			return f, true
		}
	}
	return Filter{}, false
}

// Params encodes the filters as CRM search parameters. Equality filters map
// to the bare value, IN to a JSON array and the rest to an operator object.
func (c Criteria) Params() (map[string]string, error) {
	params := make(map[string]string, len(c.filters))
	for _, f := range c.filters {
		var payload any
		switch f.Operator {
		case OpEqual:
			payload = f.Values[0]
		case OpIn:
			payload = f.Values
		case OpBetween:
			payload = map[string]any{"operator": string(f.Operator), "value": f.Values}
		default:
			payload = map[string]any{"operator": string(f.Operator), "value": f.Values[0]}
		}

		if s, ok := payload.(string); ok {
			params[f.Field] = s
			continue
		}
		encoded, err := encodeParam(payload)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		params[f.Field] = encoded
	}
	return params, nil
}

// CacheKey serializes the criteria deterministically. Filters are written in
// insertion order since the CRM treats them as an ordered parameter list.
// String values and field names outside [A-Za-z0-9_.] are quoted so no
// value can reproduce the separators of another filter.
func (c Criteria) CacheKey() string {
	if len(c.filters) == 0 {
		return "*"
	}
	var b strings.Builder
	for i, f := range c.filters {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(keyField(f.Field))
		b.WriteString(string(f.Operator))
		b.WriteByte('[')
		for j, v := range f.Values {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(keyValue(v))
		}
		b.WriteByte(']')
	}
	return b.String()
}

func keyField(field string) string {
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return strconv.Quote(field)
		}
	}
	return field
}

func keyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", x)
	default:
		return strconv.Quote(fmt.Sprintf("%v", x))
	}
}

// String implements fmt.Stringer.
func (c Criteria) String() string { return c.CacheKey() }

// encodeParam writes JSON without HTML escaping so comparison operators
// reach the CRM verbatim.
func encodeParam(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func toAny[V any](values []V) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
