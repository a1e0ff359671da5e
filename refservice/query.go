package refservice

import (
	"fmt"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// QueryError means a query term or ordering could not be compiled.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Reason
}

func queryError(format string, args ...interface{}) error {
	return &QueryError{Reason: fmt.Sprintf(format, args...)}
}

var queryFields = map[string]string{
	"certname": "certname",
	"command":  "command",
	"version":  "version",
	"uuid":     "uuid",
}

var orderFields = map[string]string{
	"id":       "id",
	"certname": "certname",
	"command":  "command",
	"version":  "version",
	"received": "received",
}

// OrderBy is one element of an order_by parameter.
type OrderBy struct {
	Field string `json:"field"`
	Order string `json:"order,omitempty"`
}

// compileTerm turns a query term into a SQL condition. Terms are JSON arrays:
//
//	["=", field, value]
//	["~", field, pattern]   (SQL LIKE)
//	["and", term...] / ["or", term...]
//	["not", term]
//
// A null term matches every record.
func compileTerm(term ldvalue.Value) (string, []interface{}, error) {
	if term.IsNull() {
		return "1 = 1", nil, nil
	}
	if term.Type() != ldvalue.ArrayType || term.Count() == 0 {
		return "", nil, queryError("term must be a non-empty array, not %s", term.JSONString())
	}
	op := term.GetByIndex(0)
	if op.Type() != ldvalue.StringType {
		return "", nil, queryError("operator must be a string in %s", term.JSONString())
	}

	switch op.StringValue() {
	case "=", "~":
		if term.Count() != 3 {
			return "", nil, queryError("%q takes a field and a value in %s", op.StringValue(), term.JSONString())
		}
		column, ok := queryFields[term.GetByIndex(1).StringValue()]
		if !ok {
			return "", nil, queryError("unknown field %s", term.GetByIndex(1).JSONString())
		}
		value := term.GetByIndex(2)
		if op.StringValue() == "~" {
			if value.Type() != ldvalue.StringType {
				return "", nil, queryError("pattern must be a string in %s", term.JSONString())
			}
			return column + " LIKE ?", []interface{}{value.StringValue()}, nil
		}
		switch value.Type() {
		case ldvalue.StringType:
			return column + " = ?", []interface{}{value.StringValue()}, nil
		case ldvalue.NumberType:
			return column + " = ?", []interface{}{value.Float64Value()}, nil
		default:
			return "", nil, queryError("value must be a string or number in %s", term.JSONString())
		}

	case "and", "or":
		if term.Count() < 2 {
			return "", nil, queryError("%q needs at least one term", op.StringValue())
		}
		var parts []string
		var args []interface{}
		for i := 1; i < term.Count(); i++ {
			sub, subArgs, err := compileTerm(term.GetByIndex(i))
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+sub+")")
			args = append(args, subArgs...)
		}
		return strings.Join(parts, " "+strings.ToUpper(op.StringValue())+" "), args, nil

	case "not":
		if term.Count() != 2 {
			return "", nil, queryError(`"not" takes exactly one term`)
		}
		sub, args, err := compileTerm(term.GetByIndex(1))
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sub + ")", args, nil
	}
	return "", nil, queryError("unknown operator %q", op.StringValue())
}

// compileOrder returns an ORDER BY list. Records are always ordered by id last, so pages
// are stable.
func compileOrder(order []OrderBy) (string, error) {
	var parts []string
	for _, o := range order {
		column, ok := orderFields[o.Field]
		if !ok {
			return "", queryError("cannot order by %q", o.Field)
		}
		switch strings.ToLower(o.Order) {
		case "", "asc", "ascending":
			parts = append(parts, column+" ASC")
		case "desc", "descending":
			parts = append(parts, column+" DESC")
		default:
			return "", queryError("unknown order %q", o.Order)
		}
	}
	return strings.Join(append(parts, "id ASC"), ", "), nil
}
