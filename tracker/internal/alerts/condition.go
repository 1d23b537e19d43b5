package alerts

import (
	"fmt"
	"strconv"
	"strings"
)

// Input is the fetch health the rules are evaluated against.
type Input struct {
	ConsecutiveFailures int
	Outcome             string
	FetchSeconds        float64
	PhotosStored        int
}

// condition is a parsed rule expression: field operator value.
type condition struct {
	field string
	op    string
	rhs   string
	num   float64
}

// parseCondition parses a rule condition string.
//
// Supported expressions:
//
//	consecutive_failures >= 5
//	fetch_seconds > 60
//	photos_stored == 0
//	outcome == failed
func parseCondition(cond string) (condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", cond)
	}
	c := condition{field: parts[0], op: parts[1], rhs: parts[2]}

	switch c.field {
	case "outcome":
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("condition %q: outcome supports == and != only", cond)
		}
		return c, nil
	case "consecutive_failures", "fetch_seconds", "photos_stored":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown field %q", cond, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", cond, c.op)
	}
	n, err := strconv.ParseFloat(c.rhs, 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: value: %w", cond, err)
	}
	c.num = n
	return c, nil
}

// eval reports whether the condition holds for in, and the value compared.
func (c condition) eval(in Input) (bool, float64) {
	if c.field == "outcome" {
		eq := in.Outcome == c.rhs
		if c.op == "!=" {
			return !eq, 0
		}
		return eq, 0
	}
	v := numericField(c.field, in)
	return compareFloat(v, c.op, c.num), v
}

// numericField maps a field name to its value in the input.
func numericField(field string, in Input) float64 {
	switch field {
	case "consecutive_failures":
		return float64(in.ConsecutiveFailures)
	case "fetch_seconds":
		return in.FetchSeconds
	case "photos_stored":
		return float64(in.PhotosStored)
	default:
		return 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
