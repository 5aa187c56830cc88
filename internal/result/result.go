// Package result decodes engine response envelopes into immutable tabular
// results.
//
// A success envelope looks like
//
//	{"ok": true, "headers": ["a", "b"], "rows": [[1, 2]], "took": 0.001}
//
// and a failure envelope like
//
//	{"ok": false, "display": "syntax error"}
//
// Failures become *dberr.QueryError carrying the raw payload. Cell values are
// passed through as decoded JSON, with numbers kept as json.Number so large
// integers survive; the typed getters convert on access.
package result

import (
	"github.com/roach88/cozoq/internal/dberr"
)

// Result is one decoded success envelope. It is never mutated after Decode
// returns; every accessor returns copies, including nested lists and objects.
type Result struct {
	columns []string
	rows    [][]any
	took    float64
	hasTook bool
	index   map[string]int
}

// New builds a Result directly. It copies its inputs and rejects duplicate
// column names.
func New(columns []string, rows [][]any) (*Result, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, dberr.Usagef("duplicate column %q in result", c)
		}
		index[c] = i
	}
	return &Result{
		columns: append([]string(nil), columns...),
		rows:    copyRows(rows),
		index:   index,
	}, nil
}

// Columns returns the column names in result order.
func (r *Result) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Rows returns all rows. Row widths are not checked against Columns.
func (r *Result) Rows() [][]any {
	return copyRows(r.rows)
}

// Len returns the number of rows.
func (r *Result) Len() int { return len(r.rows) }

// IsEmpty reports whether the query produced no rows.
func (r *Result) IsEmpty() bool { return len(r.rows) == 0 }

// Elapsed returns the engine-reported execution time in seconds. The second
// value is false when the envelope carried no timing.
func (r *Result) Elapsed() (float64, bool) {
	return r.took, r.hasTook
}

// ColumnIndex returns the position of name, or -1.
func (r *Result) ColumnIndex(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// Column returns every value of the named column. Rows too short to hold
// the column contribute nil.
func (r *Result) Column(name string) ([]any, error) {
	i := r.ColumnIndex(name)
	if i < 0 {
		return nil, r.unknownColumn(name)
	}
	out := make([]any, len(r.rows))
	for n, row := range r.rows {
		if i < len(row) {
			out[n] = cloneValue(row[i])
		}
	}
	return out, nil
}

// Row returns a copy of row i.
func (r *Result) Row(i int) ([]any, error) {
	if i < 0 || i >= len(r.rows) {
		return nil, dberr.Usagef("row %d out of range (result has %d rows)", i, len(r.rows))
	}
	return cloneRow(r.rows[i]), nil
}

// First returns the first row, or a UsageError when the result is empty.
func (r *Result) First() ([]any, error) {
	return r.Row(0)
}

// Maps returns each row as a column name to value map. Extra cells beyond
// the column count are dropped; missing cells are absent from the map.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.rows))
	for n, row := range r.rows {
		m := make(map[string]any, len(r.columns))
		for i, c := range r.columns {
			if i < len(row) {
				m[c] = cloneValue(row[i])
			}
		}
		out[n] = m
	}
	return out
}

// Value returns the cell at row i, column name.
func (r *Result) Value(i int, name string) (any, error) {
	col := r.ColumnIndex(name)
	if col < 0 {
		return nil, r.unknownColumn(name)
	}
	if i < 0 || i >= len(r.rows) {
		return nil, dberr.Usagef("row %d out of range (result has %d rows)", i, len(r.rows))
	}
	row := r.rows[i]
	if col >= len(row) {
		return nil, dberr.Usagef("row %d has no value for column %q", i, name)
	}
	return cloneValue(row[col]), nil
}

func (r *Result) unknownColumn(name string) error {
	return dberr.Usagef("no column %q in result (columns: %v)", name, r.columns)
}

func copyRows(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out
}

func cloneRow(row []any) []any {
	if row == nil {
		return nil
	}
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the container types JSON decoding produces.
// Scalars are returned as is.
func cloneValue(v any) any {
	switch v := v.(type) {
	case []any:
		return cloneRow(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
