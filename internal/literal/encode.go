package literal

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
)

// stringEscaper escapes the two characters that could terminate a
// double-quoted literal early. Control characters pass through unchanged.
var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Encode renders v as CozoScript literal text. It never fails: values
// From does not recognise are encoded as quoted strings.
func Encode(v any) string {
	return EncodeValue(From(v))
}

// EncodeStrict renders v like Encode but returns a UsageError for types
// that would otherwise fall back to their string form.
func EncodeStrict(v any) (string, error) {
	val, err := convert(v, true)
	if err != nil {
		return "", dberr.Usagef("encode literal: %v", err)
	}
	return EncodeValue(val), nil
}

// EncodeValue renders a Value as literal text.
func EncodeValue(v Value) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		b.WriteString(formatFloat(float64(val)))
	case String:
		b.WriteByte('"')
		b.WriteString(stringEscaper.Replace(string(val)))
		b.WriteByte('"')
	case List:
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, elem)
		}
		b.WriteByte(']')
	case Rows:
		b.WriteByte('[')
		for i, row := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, List(row))
		}
		b.WriteByte(']')
	case Vector:
		b.WriteString("vec([")
		for i, e := range val.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatFloat(e))
		}
		b.WriteString("]")
		if val.F64 {
			b.WriteString(`, "F64"`)
		}
		b.WriteString(")")
	}
}

// formatFloat renders f so the engine always reads it back as a Float:
// integral values gain ".0", negative zero keeps its sign, and exponents
// carry no leading zeros.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return `to_float("NAN")`
	case math.IsInf(f, 1):
		return `to_float("INF")`
	case math.IsInf(f, -1):
		return `to_float("NEG_INF")`
	case f == 0 && math.Signbit(f):
		return "-0.0"
	case f == 0:
		return "0.0"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant := s[:i]
		exp, _ := strconv.Atoi(s[i+1:])
		if !strings.Contains(mant, ".") {
			mant += ".0"
		}
		return mant + "e" + strconv.Itoa(exp)
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ident validates a structural name (relation, column, index, rule) and
// returns it unchanged. Names cannot travel through the parameter channel,
// so they are checked here instead of being quoted.
func Ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", dberr.Usagef("invalid identifier %q", name)
	}
	return name, nil
}

// Idents validates every name in names.
func Idents(names []string) error {
	for _, n := range names {
		if _, err := Ident(n); err != nil {
			return err
		}
	}
	return nil
}

// Param returns the placeholder text for a named out-of-band parameter.
func Param(name string) string {
	return "$" + name
}
