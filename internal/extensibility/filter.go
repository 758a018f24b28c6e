package extensibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/comalice/tilewall/internal/primitives"
)

// Filter is a parsed "field op value" expression over a message, such as
// "type != time" or "time > 1000". Fields are type, id, time and module.
type Filter struct {
	field string
	op    string
	value string
	num   float64
}

var filterOps = map[string]bool{"==": true, "!=": true, ">": true, "<": true}

// ParseFilter parses expr.
func ParseFilter(expr string) (Filter, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("filter %q: want \"field op value\"", expr)
	}
	f := Filter{field: parts[0], op: parts[1], value: parts[2]}
	switch f.field {
	case "type", "id", "module", "time":
	default:
		return Filter{}, fmt.Errorf("filter %q: unknown field %q", expr, f.field)
	}
	if !filterOps[f.op] {
		return Filter{}, fmt.Errorf("filter %q: unknown operator %q", expr, f.op)
	}
	if f.field == "time" {
		n, err := strconv.ParseFloat(f.value, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("filter %q: %w", expr, err)
		}
		f.num = n
	} else if f.op == ">" || f.op == "<" {
		return Filter{}, fmt.Errorf("filter %q: %s only applies to time", expr, f.op)
	}
	return f, nil
}

// ParseFilters parses every expression, failing on the first bad one.
func ParseFilters(exprs []string) ([]Filter, error) {
	out := make([]Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Match reports whether msg satisfies the expression.
func (f Filter) Match(msg primitives.Message) bool {
	if f.field == "time" {
		switch f.op {
		case "==":
			return msg.Time == f.num
		case "!=":
			return msg.Time != f.num
		case ">":
			return msg.Time > f.num
		default:
			return msg.Time < f.num
		}
	}
	var got string
	switch f.field {
	case "type":
		got = string(msg.Type)
	case "id":
		got = msg.ID
	case "module":
		if msg.Load != nil {
			got = msg.Load.Module
		}
	}
	if f.op == "==" {
		return got == f.value
	}
	return got != f.value
}

// String returns the expression.
func (f Filter) String() string {
	return f.field + " " + f.op + " " + f.value
}
