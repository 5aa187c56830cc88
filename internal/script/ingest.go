package script

import (
	"strings"
	"unicode"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// Format selects the external reader.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Field is one typed field of an external source.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// IngestCall is the input to Ingest. Nil pointer flags are omitted.
type IngestCall struct {
	// URL locates the source, e.g. "file://./users.csv" or "http://...".
	URL string `yaml:"url" json:"url"`

	Format Format  `yaml:"format" json:"format"`
	Fields []Field `yaml:"fields" json:"fields"`

	// CSV options.
	Delimiter  string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	HasHeaders *bool  `yaml:"has_headers,omitempty" json:"has_headers,omitempty"`

	// JSON options.
	JSONLines    *bool `yaml:"json_lines,omitempty" json:"json_lines,omitempty"`
	NullIfAbsent *bool `yaml:"null_if_absent,omitempty" json:"null_if_absent,omitempty"`

	// PrependIndex adds a leading row-index column named "idx".
	PrependIndex bool `yaml:"prepend_index,omitempty" json:"prepend_index,omitempty"`

	// Columns overrides the output column names (index column included).
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// Into, when set, stores the rows into this relation with :put.
	Into string `yaml:"into,omitempty" json:"into,omitempty"`
}

// Ingest emits a CsvReader or JsonReader invocation:
//
//	?[name, age] <~ CsvReader(url: "file://users.csv", types: ["String", "Int"], has_headers: true)
//
// Output columns default to names derived from the field names.
func Ingest(c IngestCall) (Request, error) {
	if strings.TrimSpace(c.URL) == "" {
		return Request{}, dberr.Usagef("ingest: url is required")
	}
	if len(c.Fields) == 0 {
		return Request{}, dberr.Usagef("ingest: at least one field is required")
	}

	cols := c.Columns
	if len(cols) == 0 {
		if c.PrependIndex {
			cols = append(cols, "idx")
		}
		for _, f := range c.Fields {
			cols = append(cols, DeriveName(f.Name))
		}
	}
	want := len(c.Fields)
	if c.PrependIndex {
		want++
	}
	if len(cols) != want {
		return Request{}, dberr.Usagef("ingest: %d output columns given, reader produces %d", len(cols), want)
	}
	colList, err := joinIdents(cols)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("output column", cols); err != nil {
		return Request{}, err
	}

	kws := []keyword{{"url", literal.Encode(c.URL)}}
	var reader string
	switch c.Format {
	case FormatCSV:
		reader = "CsvReader"
		if c.JSONLines != nil || c.NullIfAbsent != nil {
			return Request{}, dberr.Usagef("ingest: json_lines and null_if_absent apply to json sources only")
		}
		types := make([]any, len(c.Fields))
		for i, f := range c.Fields {
			if f.Type == "" {
				types[i] = "Any"
			} else {
				types[i] = f.Type
			}
		}
		kws = append(kws, keyword{"types", literal.Encode(types)})
		if c.Delimiter != "" {
			if len([]rune(c.Delimiter)) != 1 {
				return Request{}, dberr.Usagef("ingest: delimiter must be a single character")
			}
			kws = append(kws, keyword{"delimiter", literal.Encode(c.Delimiter)})
		}
		if c.HasHeaders != nil {
			kws = append(kws, keyword{"has_headers", literal.Encode(*c.HasHeaders)})
		}
	case FormatJSON:
		reader = "JsonReader"
		if c.Delimiter != "" || c.HasHeaders != nil {
			return Request{}, dberr.Usagef("ingest: delimiter and has_headers apply to csv sources only")
		}
		names := make([]any, len(c.Fields))
		for i, f := range c.Fields {
			names[i] = f.Name
		}
		kws = append(kws, keyword{"fields", literal.Encode(names)})
		if c.JSONLines != nil {
			kws = append(kws, keyword{"json_lines", literal.Encode(*c.JSONLines)})
		}
		if c.NullIfAbsent != nil {
			kws = append(kws, keyword{"null_if_absent", literal.Encode(*c.NullIfAbsent)})
		}
	default:
		return Request{}, dberr.Usagef("ingest: unknown format %q (csv or json)", c.Format)
	}
	if c.PrependIndex {
		kws = append(kws, keyword{"prepend_index", "true"})
	}

	var b strings.Builder
	b.WriteString("?[" + colList + "] <~ " + reader + "(")
	writeKeywords(&b, kws)
	b.WriteString(")")

	req := Request{Script: b.String()}
	if c.Into != "" {
		if _, err := literal.Ident(c.Into); err != nil {
			return Request{}, err
		}
		b.WriteString("\n:put " + c.Into + " {" + colList + "}")
		req.Script = b.String()
		req.Mutates = true
	}
	return req, nil
}

// DeriveName turns a source field name into a column identifier: lower
// case, runs of other characters collapsed to "_", and a leading "_" when
// the name would start with a digit.
func DeriveName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "field"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}
