package script

import (
	"strconv"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// SortCall is the input to Sort. Exactly one of Relation and Rule is set.
// Nil pointer options are left out of the ReorderSort argument list.
type SortCall struct {
	// Relation is a stored relation to read Columns from.
	Relation string `yaml:"relation,omitempty" json:"relation,omitempty"`

	// Rule is the body of an inline rule producing Columns, e.g.
	// `*users{name, age}, age > 30`.
	Rule string `yaml:"rule,omitempty" json:"rule,omitempty"`

	// Columns are the columns of the data rule.
	Columns []string `yaml:"columns" json:"columns"`

	// SortBy are the sort keys, each a column of the data rule.
	SortBy []string `yaml:"sort_by" json:"sort_by"`

	// Out selects the returned columns (defaults to Columns).
	Out []string `yaml:"out,omitempty" json:"out,omitempty"`

	Descending *bool `yaml:"descending,omitempty" json:"descending,omitempty"`
	BreakTies  *bool `yaml:"break_ties,omitempty" json:"break_ties,omitempty"`
	Skip       *int  `yaml:"skip,omitempty" json:"skip,omitempty"`
	Take       *int  `yaml:"take,omitempty" json:"take,omitempty"`

	// RankColumn names the leading rank column (default "rank").
	RankColumn string `yaml:"rank_column,omitempty" json:"rank_column,omitempty"`
}

// Sort emits a ReorderSort invocation over a data rule:
//
//	data[name, age] := *users{name, age}
//	?[rank, name, age] <~ ReorderSort(data[name, age], out: [name, age], sort_by: [age], descending: true, take: 10)
func Sort(c SortCall) (Request, error) {
	switch {
	case c.Relation == "" && strings.TrimSpace(c.Rule) == "":
		return Request{}, dberr.Usagef("sort: a relation or an inline rule is required")
	case c.Relation != "" && c.Rule != "":
		return Request{}, dberr.Usagef("sort: relation and inline rule are mutually exclusive")
	}
	if len(c.Columns) == 0 {
		return Request{}, dberr.Usagef("sort: columns are required")
	}
	cols, err := joinIdents(c.Columns)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("column", c.Columns); err != nil {
		return Request{}, err
	}
	if len(c.SortBy) == 0 {
		return Request{}, dberr.Usagef("sort: at least one sort key is required")
	}
	if err := subsetOf("sort key", c.SortBy, c.Columns); err != nil {
		return Request{}, err
	}

	out := c.Out
	if len(out) == 0 {
		out = c.Columns
	}
	if err := subsetOf("output column", out, c.Columns); err != nil {
		return Request{}, err
	}
	rank := c.RankColumn
	if rank == "" {
		rank = "rank"
	}
	if _, err := literal.Ident(rank); err != nil {
		return Request{}, err
	}
	for _, o := range out {
		if o == rank {
			return Request{}, dberr.Usagef("sort: output column %q collides with the rank column", o)
		}
	}

	if c.Skip != nil && *c.Skip < 0 {
		return Request{}, dberr.Usagef("sort: skip must be non-negative")
	}
	if c.Take != nil && *c.Take < 0 {
		return Request{}, dberr.Usagef("sort: take must be non-negative")
	}

	var b strings.Builder
	if c.Relation != "" {
		if _, err := literal.Ident(c.Relation); err != nil {
			return Request{}, err
		}
		b.WriteString("data[" + cols + "] := *" + c.Relation + "{" + cols + "}\n")
	} else {
		if strings.Contains(c.Rule, "\n:") || strings.Contains(c.Rule, ":=") {
			return Request{}, dberr.Usagef("sort: inline rule must be a rule body, not a full rule")
		}
		b.WriteString("data[" + cols + "] := " + strings.TrimSpace(c.Rule) + "\n")
	}

	outList := strings.Join(out, ", ")
	kws := []keyword{
		{"out", "[" + outList + "]"},
		{"sort_by", "[" + strings.Join(c.SortBy, ", ") + "]"},
	}
	if c.Descending != nil {
		kws = append(kws, keyword{"descending", strconv.FormatBool(*c.Descending)})
	}
	if c.BreakTies != nil {
		kws = append(kws, keyword{"break_ties", strconv.FormatBool(*c.BreakTies)})
	}
	if c.Skip != nil {
		kws = append(kws, keyword{"skip", strconv.Itoa(*c.Skip)})
	}
	if c.Take != nil {
		kws = append(kws, keyword{"take", strconv.Itoa(*c.Take)})
	}

	b.WriteString("?[" + rank + ", " + outList + "] <~ ReorderSort(data[" + cols + "], ")
	writeKeywords(&b, kws)
	b.WriteString(")")

	return Request{Script: b.String()}, nil
}

func subsetOf(what string, names, of []string) error {
	for _, n := range names {
		found := false
		for _, o := range of {
			if n == o {
				found = true
				break
			}
		}
		if !found {
			return dberr.Usagef("%s %q is not one of the data columns", what, n)
		}
	}
	return nil
}

// Bool returns a pointer to b, for optional SortCall and IngestCall flags.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
