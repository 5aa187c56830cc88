package script

import (
	"fmt"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// SelectCall reads columns from a stored relation.
type SelectCall struct {
	Relation string   `yaml:"relation" json:"relation"`
	Columns  []string `yaml:"columns" json:"columns"`

	// Where is a raw condition over Columns, appended to the rule body.
	Where string `yaml:"where,omitempty" json:"where,omitempty"`

	// Params are bound to $name placeholders used in Where.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Order is a raw :order argument, e.g. "-age, name".
	Order string `yaml:"order,omitempty" json:"order,omitempty"`

	Limit  int `yaml:"limit,omitempty" json:"limit,omitempty"`
	Offset int `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Select emits a read-only query over a stored relation:
//
//	?[id, name] := *users{id, name}, id > $min
//	:limit 10
func Select(c SelectCall) (Request, error) {
	if _, err := literal.Ident(c.Relation); err != nil {
		return Request{}, err
	}
	if len(c.Columns) == 0 {
		return Request{}, dberr.Usagef("select: columns are required")
	}
	cols, err := joinIdents(c.Columns)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("column", c.Columns); err != nil {
		return Request{}, err
	}
	if c.Limit < 0 || c.Offset < 0 {
		return Request{}, dberr.Usagef("select: limit and offset must be non-negative")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "?[%s] := *%s{%s}", cols, c.Relation, cols)
	if c.Where != "" {
		if err := checkExpr("where", c.Where); err != nil {
			return Request{}, err
		}
		b.WriteString(", " + c.Where)
	}
	if c.Order != "" {
		if err := checkExpr("order", c.Order); err != nil {
			return Request{}, err
		}
		b.WriteString("\n:order " + c.Order)
	}
	if c.Limit > 0 {
		fmt.Fprintf(&b, "\n:limit %d", c.Limit)
	}
	if c.Offset > 0 {
		fmt.Fprintf(&b, "\n:offset %d", c.Offset)
	}

	var params map[string]any
	if len(c.Params) > 0 {
		params = make(map[string]any, len(c.Params))
		for k, v := range c.Params {
			if _, err := literal.Ident(k); err != nil {
				return Request{}, err
			}
			params[k] = v
		}
	}
	return Request{Script: b.String(), Params: params}, nil
}
