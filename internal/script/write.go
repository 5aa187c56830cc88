package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// Mode is a CozoScript write directive.
type Mode string

const (
	ModePut       Mode = "put"        // insert or overwrite by key
	ModeRm        Mode = "rm"         // remove by key, missing keys ignored
	ModeInsert    Mode = "insert"     // insert, error if key exists
	ModeUpdate    Mode = "update"     // update given columns, error if key missing
	ModeDelete    Mode = "delete"     // remove by key, error if key missing
	ModeEnsure    Mode = "ensure"     // assert rows exist as given
	ModeEnsureNot Mode = "ensure_not" // assert keys are absent
)

// ValidModes lists the accepted write directives.
var ValidModes = []Mode{ModePut, ModeRm, ModeInsert, ModeUpdate, ModeDelete, ModeEnsure, ModeEnsureNot}

func (m Mode) valid() bool {
	for _, v := range ValidModes {
		if v == m {
			return true
		}
	}
	return false
}

// Table is an ordered inline table: column names plus positional rows.
type Table struct {
	Columns []string
	Rows    [][]any
}

// TableFromMaps converts name->value rows into a Table. Columns are the
// sorted keys of the first row; every row must have exactly that key set.
func TableFromMaps(rows []map[string]any) (Table, error) {
	if len(rows) == 0 {
		return Table{}, nil
	}

	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	out := Table{Columns: cols, Rows: make([][]any, len(rows))}
	for i, row := range rows {
		if len(row) != len(cols) {
			return Table{}, dberr.Usagef("row %d has %d columns, expected %d (%s)",
				i, len(row), len(cols), strings.Join(cols, ", "))
		}
		vals := make([]any, len(cols))
		for j, c := range cols {
			v, ok := row[c]
			if !ok {
				return Table{}, dberr.Usagef("row %d is missing column %q", i, c)
			}
			vals[j] = v
		}
		out.Rows[i] = vals
	}
	return out, nil
}

// validate checks names and row widths.
func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return dberr.Usagef("table has no columns")
	}
	if err := literal.Idents(t.Columns); err != nil {
		return err
	}
	if err := checkUnique("column", t.Columns); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return dberr.Usagef("row %d has %d values, expected %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// project keeps only the named columns, in the given order.
func (t Table) project(cols []string) (Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = -1
		for j, have := range t.Columns {
			if have == c {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return Table{}, dberr.Usagef("key column %q not present in rows", c)
		}
	}

	out := Table{Columns: append([]string(nil), cols...), Rows: make([][]any, len(t.Rows))}
	for r, row := range t.Rows {
		vals := make([]any, len(cols))
		for i, j := range idx {
			vals[i] = row[j]
		}
		out.Rows[r] = vals
	}
	return out, nil
}

// Upsert writes rows into relation with :put. Columns are the sorted keys of
// the rows. An empty row set yields a no-op request.
func Upsert(relation string, rows []map[string]any) (Request, error) {
	if len(rows) == 0 {
		if _, err := literal.Ident(relation); err != nil {
			return Request{}, err
		}
		return Noop(), nil
	}
	t, err := TableFromMaps(rows)
	if err != nil {
		return Request{}, err
	}
	return Write(ModePut, relation, t, nil)
}

// UpsertTable writes an ordered table into relation with :put.
func UpsertTable(relation string, t Table) (Request, error) {
	return Write(ModePut, relation, t, nil)
}

// DeleteByKey removes rows from relation with :rm, sending only the key
// columns. When keys is empty every column of the rows is treated as key.
func DeleteByKey(relation string, keys []string, rows []map[string]any) (Request, error) {
	if len(rows) == 0 {
		if _, err := literal.Ident(relation); err != nil {
			return Request{}, err
		}
		return Noop(), nil
	}
	t, err := projectMaps(rows, keys)
	if err != nil {
		return Request{}, err
	}
	return Write(ModeRm, relation, t, nil)
}

// projectMaps builds a table holding only keys from possibly wider rows.
func projectMaps(rows []map[string]any, keys []string) (Table, error) {
	if len(keys) == 0 {
		return TableFromMaps(rows)
	}
	t := Table{Columns: append([]string(nil), keys...), Rows: make([][]any, len(rows))}
	for i, row := range rows {
		vals := make([]any, len(keys))
		for j, k := range keys {
			v, ok := row[k]
			if !ok {
				return Table{}, dberr.Usagef("row %d is missing key column %q", i, k)
			}
			vals[j] = v
		}
		t.Rows[i] = vals
	}
	return t, nil
}

// Write emits an inline table followed by a write directive:
//
//	?[id, name] <- [[1, "Alice"]]
//	:put users {id, name}
//
// When keys is non-empty the directive separates key and value columns
// with "=>"; for ModeRm and ModeDelete only the key columns are sent.
// An empty table yields a no-op request.
func Write(mode Mode, relation string, t Table, keys []string) (Request, error) {
	if !mode.valid() {
		return Request{}, dberr.Usagef("unknown write mode %q", mode)
	}
	if _, err := literal.Ident(relation); err != nil {
		return Request{}, err
	}
	if len(t.Rows) == 0 {
		return Noop(), nil
	}
	if err := t.validate(); err != nil {
		return Request{}, err
	}

	if len(keys) > 0 {
		if err := literal.Idents(keys); err != nil {
			return Request{}, err
		}
		if err := checkUnique("key column", keys); err != nil {
			return Request{}, err
		}
		if mode == ModeRm || mode == ModeDelete {
			projected, err := t.project(keys)
			if err != nil {
				return Request{}, err
			}
			t = projected
			keys = nil
		}
	}

	spec, err := bindingSpec(t.Columns, keys)
	if err != nil {
		return Request{}, err
	}

	var b strings.Builder
	b.WriteString("?[")
	b.WriteString(strings.Join(t.Columns, ", "))
	b.WriteString("] <- ")
	b.WriteString(encodeRows(t.Rows))
	fmt.Fprintf(&b, "\n:%s %s {%s}", mode, relation, spec)

	return Request{Script: b.String(), Mutates: true}, nil
}

// bindingSpec renders "k1, k2 => v1, v2" or "c1, c2" when keys is empty.
func bindingSpec(cols, keys []string) (string, error) {
	if len(keys) == 0 {
		return strings.Join(cols, ", "), nil
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	for _, k := range keys {
		found := false
		for _, c := range cols {
			if c == k {
				found = true
				break
			}
		}
		if !found {
			return "", dberr.Usagef("key column %q not present in rows", k)
		}
	}

	var vals []string
	for _, c := range cols {
		if !isKey[c] {
			vals = append(vals, c)
		}
	}
	if len(vals) == 0 {
		return strings.Join(keys, ", "), nil
	}
	return strings.Join(keys, ", ") + " => " + strings.Join(vals, ", "), nil
}

func encodeRows(rows [][]any) string {
	lit := make(literal.Rows, len(rows))
	for i, row := range rows {
		cells := make([]literal.Value, len(row))
		for j, cell := range row {
			cells[j] = literal.From(cell)
		}
		lit[i] = cells
	}
	return literal.EncodeValue(lit)
}
