package script

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// Request is an assembled script plus its out-of-band parameters.
// It is built per call and consumed immediately by a session.
type Request struct {
	// Script is the complete CozoScript text.
	Script string

	// Params holds named parameters referenced as $name in Script.
	Params map[string]any

	// Mutates reports whether Script writes data or changes schema.
	// Sessions route mutating requests to the mutable primitive.
	Mutates bool
}

// ParamsJSON renders Params as a JSON object; an empty map renders "{}".
func (r Request) ParamsJSON() (string, error) {
	if len(r.Params) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(r.Params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// ParamNames returns parameter names in sorted order.
func (r Request) ParamNames() []string {
	names := make([]string, 0, len(r.Params))
	for k := range r.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Raw wraps caller-written script text. The text is not validated.
func Raw(script string, params map[string]any, mutates bool) (Request, error) {
	if strings.TrimSpace(script) == "" {
		return Request{}, dberr.Usagef("script is empty")
	}
	return Request{Script: script, Params: params, Mutates: mutates}, nil
}

// noopScript is a constant rule with no rows: valid, read-only, and it
// decodes to an empty result.
const noopScript = "?[noop] <- []"

// Noop returns the request used for empty writes.
func Noop() Request {
	return Request{Script: noopScript}
}

// joinIdents validates names and joins them with ", ".
func joinIdents(names []string) (string, error) {
	if err := literal.Idents(names); err != nil {
		return "", err
	}
	return strings.Join(names, ", "), nil
}

// checkUnique rejects duplicate names within one list.
func checkUnique(what string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return dberr.Usagef("duplicate %s %q", what, n)
		}
		seen[n] = true
	}
	return nil
}

// checkExpr rejects expression text that could close the surrounding
// construct. Expressions are otherwise trusted caller input.
func checkExpr(what, expr string) error {
	if strings.ContainsAny(expr, "{}") || strings.Contains(expr, "\n:") {
		return dberr.Usagef("%s %q must not contain braces or directives", what, expr)
	}
	return nil
}

// keyword is one `name: value` argument of a fixed rule or index clause.
type keyword struct {
	name  string
	value string
}

func writeKeywords(b *strings.Builder, kws []keyword) {
	for i, kw := range kws {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(kw.name)
		b.WriteString(": ")
		b.WriteString(kw.value)
	}
}
