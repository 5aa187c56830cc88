package script

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/viterin/vek"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// DefaultK is the result limit used when SearchCall.K is zero.
const DefaultK = 10

// SearchCall is the input to VectorSearch, TextSearch and SimilaritySearch.
// Zero-valued optional fields are omitted from the index clause.
type SearchCall struct {
	// Relation and Index name the indexed relation and its index.
	Relation string `yaml:"relation" json:"relation"`
	Index    string `yaml:"index" json:"index"`

	// Fields are bound from the indexed relation and returned.
	Fields []string `yaml:"fields" json:"fields"`

	// Query is the search payload: a float vector for VectorSearch, text for
	// TextSearch and SimilaritySearch. It is always sent as $query.
	Query any `yaml:"query" json:"query"`

	// K is the result limit (DefaultK when zero).
	K int `yaml:"k,omitempty" json:"k,omitempty"`

	// Ef is the HNSW candidate-list size, trading speed for accuracy.
	Ef int `yaml:"ef,omitempty" json:"ef,omitempty"`

	// Radius drops HNSW matches farther than this distance.
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`

	// Filter is a raw pre-filter expression over the bound fields.
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty"`

	// ScoreKind selects the FTS scoring function ("tf_idf" or "tf").
	ScoreKind string `yaml:"score_kind,omitempty" json:"score_kind,omitempty"`

	// F64 builds the query vector with 64-bit elements.
	F64 bool `yaml:"f64,omitempty" json:"f64,omitempty"`

	// Normalize L2-normalises the query vector before it is sent.
	Normalize bool `yaml:"normalize,omitempty" json:"normalize,omitempty"`

	// Joins are raw conditions appended after the index clause, for hybrid
	// search. They are not validated beyond brace and directive checks.
	Joins []string `yaml:"joins,omitempty" json:"joins,omitempty"`

	// Head overrides the output columns. Defaults to Fields plus the
	// distance or score column. Needed when Joins bind extra variables.
	Head []string `yaml:"head,omitempty" json:"head,omitempty"`
}

// VectorSearch emits an HNSW index scan ordered by ascending distance.
//
//	?[id, title, distance] := ~docs:embedding{id, title | query: q, k: 5, bind_distance: distance}, q = vec($query)
//	:order distance
//	:limit 5
func VectorSearch(c SearchCall) (Request, error) {
	vector, err := queryVector(c.Query)
	if err != nil {
		return Request{}, err
	}
	if len(vector) == 0 {
		return Request{}, dberr.Usagef("vector search: query vector is empty")
	}
	if c.Normalize {
		norm := vek.Norm(vector)
		if norm == 0 {
			return Request{}, dberr.Usagef("vector search: cannot normalize a zero vector")
		}
		vector = vek.DivNumber(vector, norm)
	}
	if c.Ef < 0 {
		return Request{}, dberr.Usagef("vector search: ef must be non-negative")
	}
	if c.Radius < 0 {
		return Request{}, dberr.Usagef("vector search: radius must be non-negative")
	}

	k, err := resolveK(c.K)
	if err != nil {
		return Request{}, err
	}
	kws := []keyword{{"query", "q"}, {"k", strconv.Itoa(k)}}
	if c.Ef > 0 {
		kws = append(kws, keyword{"ef", strconv.Itoa(c.Ef)})
	}
	kws = append(kws, keyword{"bind_distance", "distance"})
	if c.Radius > 0 {
		kws = append(kws, keyword{"radius", literal.Encode(c.Radius)})
	}

	ctor := "vec($query)"
	if c.F64 {
		ctor = `vec($query, "F64")`
	}
	return indexSearch(c, "vector search", "distance", "distance", kws, []string{"q = " + ctor}, vector)
}

// TextSearch emits a full-text index scan ordered by descending score.
func TextSearch(c SearchCall) (Request, error) {
	text, ok := c.Query.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return Request{}, dberr.Usagef("text search: query must be non-empty text")
	}
	k, err := resolveK(c.K)
	if err != nil {
		return Request{}, err
	}

	kws := []keyword{{"query", "$query"}, {"k", strconv.Itoa(k)}, {"bind_score", "score"}}
	if c.ScoreKind != "" {
		if c.ScoreKind != "tf_idf" && c.ScoreKind != "tf" {
			return Request{}, dberr.Usagef("text search: unknown score_kind %q", c.ScoreKind)
		}
		kws = append(kws, keyword{"score_kind", literal.Encode(c.ScoreKind)})
	}
	return indexSearch(c, "text search", "score", "-score", kws, nil, text)
}

// SimilaritySearch emits a MinHash-LSH index scan. The payload is matched
// for near-duplicates; results carry no score and are unordered.
func SimilaritySearch(c SearchCall) (Request, error) {
	if c.Query == nil {
		return Request{}, dberr.Usagef("similarity search: query is required")
	}
	if s, ok := c.Query.(string); ok && strings.TrimSpace(s) == "" {
		return Request{}, dberr.Usagef("similarity search: query must be non-empty")
	}
	k, err := resolveK(c.K)
	if err != nil {
		return Request{}, err
	}
	kws := []keyword{{"query", "$query"}, {"k", strconv.Itoa(k)}}
	return indexSearch(c, "similarity search", "", "", kws, nil, c.Query)
}

func resolveK(k int) (int, error) {
	switch {
	case k < 0:
		return 0, dberr.Usagef("search limit k must be non-negative, got %d", k)
	case k == 0:
		return DefaultK, nil
	}
	return k, nil
}

// indexSearch assembles the rule shared by all index kinds. bound names the
// column the index binds (distance or score, empty for none); order is the
// :order argument.
func indexSearch(c SearchCall, what, bound, order string, kws []keyword, extra []string, query any) (Request, error) {
	if _, err := literal.Ident(c.Relation); err != nil {
		return Request{}, err
	}
	if _, err := literal.Ident(c.Index); err != nil {
		return Request{}, err
	}
	if len(c.Fields) == 0 {
		return Request{}, dberr.Usagef("%s: at least one field must be bound", what)
	}
	fields, err := joinIdents(c.Fields)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("field", c.Fields); err != nil {
		return Request{}, err
	}

	if c.Filter != "" {
		if err := checkExpr("filter", c.Filter); err != nil {
			return Request{}, err
		}
		kws = append(kws, keyword{"filter", c.Filter})
	}

	head := c.Head
	if len(head) == 0 {
		head = append([]string(nil), c.Fields...)
		if bound != "" {
			head = append(head, bound)
		}
	}
	headList, err := joinIdents(head)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("head column", head); err != nil {
		return Request{}, err
	}

	for _, j := range c.Joins {
		if strings.TrimSpace(j) == "" {
			return Request{}, dberr.Usagef("%s: empty join condition", what)
		}
		if strings.Contains(j, "\n:") || strings.Contains(j, ":=") || strings.Contains(j, "<-") {
			return Request{}, dberr.Usagef("%s: join condition %q must not start a new rule or directive", what, j)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "?[%s] := ~%s:%s{%s | ", headList, c.Relation, c.Index, fields)
	writeKeywords(&b, kws)
	b.WriteString("}")
	for _, cond := range append(extra, c.Joins...) {
		b.WriteString(", ")
		b.WriteString(cond)
	}
	if order != "" {
		b.WriteString("\n:order " + order)
	}
	k, _ := resolveK(c.K)
	fmt.Fprintf(&b, "\n:limit %d", k)

	return Request{Script: b.String(), Params: map[string]any{"query": query}}, nil
}

// queryVector accepts the vector shapes callers and decoded plan files use.
func queryVector(q any) ([]float64, error) {
	switch v := q.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []float32:
		out := make([]float64, len(v))
		for i, e := range v {
			out[i] = float64(e)
		}
		return out, nil
	case literal.Vector:
		return append([]float64(nil), v.Elems...), nil
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			switch n := e.(type) {
			case float64:
				out[i] = n
			case float32:
				out[i] = float64(n)
			case int:
				out[i] = float64(n)
			case int64:
				out[i] = float64(n)
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return nil, dberr.Usagef("vector search: element %d: %v", i, err)
				}
				out[i] = f
			default:
				return nil, dberr.Usagef("vector search: element %d is %T, not a number", i, e)
			}
		}
		return out, nil
	default:
		return nil, dberr.Usagef("vector search: query must be a float vector, got %T", q)
	}
}
