// Package literal converts Go values into CozoScript literal syntax.
//
// Value is a sealed interface; only the kinds declared here implement it.
// From maps native Go values onto those kinds, falling back to a quoted
// string for anything it does not recognise, so encoding never fails.
// Callers that prefer to fail closed use EncodeStrict instead.
//
// Integers and floats are kept apart: Int always renders as digits, Float
// always renders with a decimal point or exponent. The engine types `30` as
// Int and `30.0` as Float, so the distinction survives the round trip.
package literal

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Value is a sealed interface over the literal kinds the engine parses.
type Value interface {
	literal() // Sealed - only types in this package implement it
}

// Null is the null literal.
type Null struct{}

func (Null) literal() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) literal() {}

// Int is an integer literal.
type Int int64

func (Int) literal() {}

// Float is a floating point literal.
type Float float64

func (Float) literal() {}

// String is a double-quoted string literal.
type String string

func (String) literal() {}

// List is a bracketed list literal; elements are encoded recursively.
type List []Value

func (List) literal() {}

// Rows is a list-of-rows literal, the body of an inline table.
type Rows [][]Value

func (Rows) literal() {}

// Vector is a dense float vector, encoded with the engine's vec constructor.
// F64 selects 64-bit elements; the engine default is 32-bit.
type Vector struct {
	Elems []float64
	F64   bool
}

func (Vector) literal() {}

// Vec32 builds an F32 vector from float32 elements.
func Vec32(elems []float32) Vector {
	out := make([]float64, len(elems))
	for i, e := range elems {
		out[i] = float64(e)
	}
	return Vector{Elems: out}
}

// Vec64 builds an F64 vector.
func Vec64(elems []float64) Vector {
	return Vector{Elems: append([]float64(nil), elems...), F64: true}
}

// From converts a Go value to a Value. Unrecognised types degrade to the
// String of their fmt.Sprint form.
//
// Mapping:
//   - nil -> Null
//   - bool -> Bool
//   - signed and unsigned integers -> Int (uint64 above MaxInt64 -> Float)
//   - float32, float64 -> Float
//   - string -> String
//   - json.Number -> Int when integral, else Float
//   - []float32 -> Vector (embeddings are produced as float32)
//   - [][]any -> Rows
//   - any other slice or array -> List
func From(v any) Value {
	val, _ := convert(v, false)
	return val
}

// errUnsupported is returned by strict conversion for unrecognised types.
type errUnsupported struct {
	typ string
}

func (e *errUnsupported) Error() string {
	return fmt.Sprintf("unsupported literal type: %s", e.typ)
}

func convert(v any, strict bool) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val)), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		if f, err := val.Float64(); err == nil {
			return Float(f), nil
		}
		return String(val.String()), nil
	case []float32:
		return Vec32(val), nil
	case []byte:
		if strict {
			return nil, &errUnsupported{typ: "[]byte"}
		}
		return String(val), nil
	case [][]any:
		rows := make(Rows, len(val))
		for i, row := range val {
			cells := make([]Value, len(row))
			for j, cell := range row {
				c, err := convert(cell, strict)
				if err != nil {
					return nil, fmt.Errorf("row %d, column %d: %w", i, j, err)
				}
				cells[j] = c
			}
			rows[i] = cells
		}
		return rows, nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			e, err := convert(elem, strict)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = e
		}
		return list, nil
	}

	// Remaining typed slices ([]string, []int, [][]float64, ...) share one path.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		list := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := convert(rv.Index(i).Interface(), strict)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = e
		}
		return list, nil
	}

	return fallback(v, strict)
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

func fallback(v any, strict bool) (Value, error) {
	if strict {
		return nil, &errUnsupported{typ: fmt.Sprintf("%T", v)}
	}
	return String(fmt.Sprint(v)), nil
}
