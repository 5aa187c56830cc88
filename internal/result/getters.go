package result

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/roach88/cozoq/internal/dberr"
)

// String returns a text cell.
func (r *Result) String(i int, name string) (string, error) {
	v, err := r.Value(i, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeMismatch(i, name, "string", v)
	}
	return s, nil
}

// Int returns an integral numeric cell.
func (r *Result) Int(i int, name string) (int64, error) {
	v, err := r.Value(i, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case json.Number:
		if iv, err := n.Int64(); err == nil {
			return iv, nil
		}
		if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f), nil
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<63 {
			return int64(n), nil
		}
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, typeMismatch(i, name, "integer", v)
}

// Float returns a numeric cell as float64.
func (r *Result) Float(i int, name string) (float64, error) {
	v, err := r.Value(i, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case json.Number:
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f, nil
		}
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, typeMismatch(i, name, "number", v)
}

// Bool returns a boolean cell.
func (r *Result) Bool(i int, name string) (bool, error) {
	v, err := r.Value(i, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeMismatch(i, name, "bool", v)
	}
	return b, nil
}

// IsNull reports whether a cell holds JSON null.
func (r *Result) IsNull(i int, name string) (bool, error) {
	v, err := r.Value(i, name)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

func typeMismatch(i int, name, want string, got any) error {
	if got == nil {
		return dberr.Usagef("row %d column %q is null, not %s", i, name, want)
	}
	return dberr.Usagef("row %d column %q is %T, not %s", i, name, got, want)
}
