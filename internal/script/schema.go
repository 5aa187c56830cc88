package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// Column declares one column of a stored relation.
type Column struct {
	// Name is the column name.
	Name string `yaml:"name" json:"name"`

	// Type is the engine type text, e.g. "Int", "String?", "<F32; 128>".
	// Empty means untyped (Any).
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Default is a raw default expression, e.g. "now()" or "0".
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// CreateRelation emits a :create directive. Keys name the key columns; when
// empty the first declared column is the key.
//
//	:create users {id: Int => name: String, age: Int default 0}
func CreateRelation(name string, columns []Column, keys []string) (Request, error) {
	return schemaDirective("create", name, columns, keys)
}

// ReplaceRelation emits a :replace directive with the same shape as
// CreateRelation. The stored relation is dropped and recreated.
func ReplaceRelation(name string, columns []Column, keys []string) (Request, error) {
	return schemaDirective("replace", name, columns, keys)
}

func schemaDirective(directive, name string, columns []Column, keys []string) (Request, error) {
	if _, err := literal.Ident(name); err != nil {
		return Request{}, err
	}
	if len(columns) == 0 {
		return Request{}, dberr.Usagef("relation %q declares no columns", name)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	if err := literal.Idents(names); err != nil {
		return Request{}, err
	}
	if err := checkUnique("column", names); err != nil {
		return Request{}, err
	}

	if len(keys) == 0 {
		keys = names[:1]
	}
	if err := checkUnique("key column", keys); err != nil {
		return Request{}, err
	}
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	for _, k := range keys {
		declared := false
		for _, n := range names {
			if n == k {
				declared = true
				break
			}
		}
		if !declared {
			return Request{}, dberr.Usagef("key column %q is not a declared column of %q", k, name)
		}
	}

	var keyParts, valParts []string
	// Keys keep their declared column order, not the order they were listed.
	for _, c := range columns {
		part, err := columnDecl(c)
		if err != nil {
			return Request{}, err
		}
		if isKey[c.Name] {
			keyParts = append(keyParts, part)
		} else {
			valParts = append(valParts, part)
		}
	}

	body := strings.Join(keyParts, ", ")
	if len(valParts) > 0 {
		body += " => " + strings.Join(valParts, ", ")
	}

	return Request{
		Script:  fmt.Sprintf(":%s %s {%s}", directive, name, body),
		Mutates: true,
	}, nil
}

func columnDecl(c Column) (string, error) {
	decl := c.Name
	if c.Type != "" {
		if strings.ContainsAny(c.Type, "{}:=\n") {
			return "", dberr.Usagef("invalid type %q for column %q", c.Type, c.Name)
		}
		decl += ": " + c.Type
	}
	if c.Default != "" {
		if err := checkExpr("default for column "+c.Name, c.Default); err != nil {
			return "", err
		}
		decl += " default " + c.Default
	}
	return decl, nil
}

// RemoveRelations emits ::remove for the named stored relations.
func RemoveRelations(names ...string) (Request, error) {
	if len(names) == 0 {
		return Request{}, dberr.Usagef("no relations to remove")
	}
	list, err := joinIdents(names)
	if err != nil {
		return Request{}, err
	}
	return Request{Script: "::remove " + list, Mutates: true}, nil
}

// HNSWIndex describes a vector index. Zero-valued optional fields are
// omitted from the directive.
type HNSWIndex struct {
	Relation              string   `yaml:"relation" json:"relation"`
	Name                  string   `yaml:"name" json:"name"`
	Dim                   int      `yaml:"dim" json:"dim"`
	Fields                []string `yaml:"fields" json:"fields"`
	DType                 string   `yaml:"dtype,omitempty" json:"dtype,omitempty"`       // F32 | F64
	Distance              string   `yaml:"distance,omitempty" json:"distance,omitempty"` // L2 | Cosine | IP
	M                     int      `yaml:"m,omitempty" json:"m,omitempty"`
	EfConstruction        int      `yaml:"ef_construction,omitempty" json:"ef_construction,omitempty"`
	Filter                string   `yaml:"filter,omitempty" json:"filter,omitempty"`
	ExtendCandidates      bool     `yaml:"extend_candidates,omitempty" json:"extend_candidates,omitempty"`
	KeepPrunedConnections bool     `yaml:"keep_pruned_connections,omitempty" json:"keep_pruned_connections,omitempty"`
}

// CreateHNSWIndex emits ::hnsw create.
func CreateHNSWIndex(idx HNSWIndex) (Request, error) {
	target, err := indexTarget(idx.Relation, idx.Name)
	if err != nil {
		return Request{}, err
	}
	if idx.Dim <= 0 {
		return Request{}, dberr.Usagef("hnsw index %s: dim must be positive", target)
	}
	if len(idx.Fields) == 0 {
		return Request{}, dberr.Usagef("hnsw index %s: at least one field is required", target)
	}
	fields, err := joinIdents(idx.Fields)
	if err != nil {
		return Request{}, err
	}

	kws := []keyword{{"dim", strconv.Itoa(idx.Dim)}}
	if idx.M > 0 {
		kws = append(kws, keyword{"m", strconv.Itoa(idx.M)})
	}
	if idx.DType != "" {
		if idx.DType != "F32" && idx.DType != "F64" {
			return Request{}, dberr.Usagef("hnsw index %s: dtype must be F32 or F64", target)
		}
		kws = append(kws, keyword{"dtype", idx.DType})
	}
	kws = append(kws, keyword{"fields", "[" + fields + "]"})
	if idx.Distance != "" {
		switch idx.Distance {
		case "L2", "Cosine", "IP":
		default:
			return Request{}, dberr.Usagef("hnsw index %s: unknown distance %q", target, idx.Distance)
		}
		kws = append(kws, keyword{"distance", idx.Distance})
	}
	if idx.EfConstruction > 0 {
		kws = append(kws, keyword{"ef_construction", strconv.Itoa(idx.EfConstruction)})
	}
	if idx.Filter != "" {
		if err := checkExpr("index filter", idx.Filter); err != nil {
			return Request{}, err
		}
		kws = append(kws, keyword{"filter", idx.Filter})
	}
	if idx.ExtendCandidates {
		kws = append(kws, keyword{"extend_candidates", "true"})
	}
	if idx.KeepPrunedConnections {
		kws = append(kws, keyword{"keep_pruned_connections", "true"})
	}

	return indexDirective("hnsw", target, kws), nil
}

// FTSIndex describes a full-text index.
type FTSIndex struct {
	Relation  string   `yaml:"relation" json:"relation"`
	Name      string   `yaml:"name" json:"name"`
	Extractor string   `yaml:"extractor" json:"extractor"`
	Tokenizer string   `yaml:"tokenizer,omitempty" json:"tokenizer,omitempty"`
	Filters   []string `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// CreateFTSIndex emits ::fts create.
func CreateFTSIndex(idx FTSIndex) (Request, error) {
	target, err := indexTarget(idx.Relation, idx.Name)
	if err != nil {
		return Request{}, err
	}
	kws, err := textIndexKeywords(target, idx.Extractor, idx.Tokenizer, idx.Filters)
	if err != nil {
		return Request{}, err
	}
	return indexDirective("fts", target, kws), nil
}

// LSHIndex describes a MinHash-LSH similarity index.
type LSHIndex struct {
	Relation            string   `yaml:"relation" json:"relation"`
	Name                string   `yaml:"name" json:"name"`
	Extractor           string   `yaml:"extractor" json:"extractor"`
	Tokenizer           string   `yaml:"tokenizer,omitempty" json:"tokenizer,omitempty"`
	Filters             []string `yaml:"filters,omitempty" json:"filters,omitempty"`
	NGram               int      `yaml:"n_gram,omitempty" json:"n_gram,omitempty"`
	NPerm               int      `yaml:"n_perm,omitempty" json:"n_perm,omitempty"`
	TargetThreshold     float64  `yaml:"target_threshold,omitempty" json:"target_threshold,omitempty"`
	FalsePositiveWeight float64  `yaml:"false_positive_weight,omitempty" json:"false_positive_weight,omitempty"`
	FalseNegativeWeight float64  `yaml:"false_negative_weight,omitempty" json:"false_negative_weight,omitempty"`
}

// CreateLSHIndex emits ::lsh create.
func CreateLSHIndex(idx LSHIndex) (Request, error) {
	target, err := indexTarget(idx.Relation, idx.Name)
	if err != nil {
		return Request{}, err
	}
	kws, err := textIndexKeywords(target, idx.Extractor, idx.Tokenizer, idx.Filters)
	if err != nil {
		return Request{}, err
	}
	if idx.NGram > 0 {
		kws = append(kws, keyword{"n_gram", strconv.Itoa(idx.NGram)})
	}
	if idx.NPerm > 0 {
		kws = append(kws, keyword{"n_perm", strconv.Itoa(idx.NPerm)})
	}
	if idx.TargetThreshold != 0 {
		if idx.TargetThreshold < 0 || idx.TargetThreshold > 1 {
			return Request{}, dberr.Usagef("lsh index %s: target_threshold must be in (0, 1]", target)
		}
		kws = append(kws, keyword{"target_threshold", literal.Encode(idx.TargetThreshold)})
	}
	if idx.FalsePositiveWeight != 0 {
		kws = append(kws, keyword{"false_positive_weight", literal.Encode(idx.FalsePositiveWeight)})
	}
	if idx.FalseNegativeWeight != 0 {
		kws = append(kws, keyword{"false_negative_weight", literal.Encode(idx.FalseNegativeWeight)})
	}
	return indexDirective("lsh", target, kws), nil
}

func textIndexKeywords(target, extractor, tokenizer string, filters []string) ([]keyword, error) {
	if extractor == "" {
		return nil, dberr.Usagef("index %s: extractor is required", target)
	}
	if err := checkExpr("extractor", extractor); err != nil {
		return nil, err
	}
	kws := []keyword{{"extractor", extractor}}
	if tokenizer != "" {
		if err := checkExpr("tokenizer", tokenizer); err != nil {
			return nil, err
		}
		kws = append(kws, keyword{"tokenizer", tokenizer})
	}
	if len(filters) > 0 {
		for _, f := range filters {
			if err := checkExpr("token filter", f); err != nil {
				return nil, err
			}
		}
		kws = append(kws, keyword{"filters", "[" + strings.Join(filters, ", ") + "]"})
	}
	return kws, nil
}

// IndexKind names the index families the engine supports.
type IndexKind string

const (
	IndexHNSW IndexKind = "hnsw"
	IndexFTS  IndexKind = "fts"
	IndexLSH  IndexKind = "lsh"
)

// DropIndex emits ::<kind> drop relation:name.
func DropIndex(kind IndexKind, relation, name string) (Request, error) {
	switch kind {
	case IndexHNSW, IndexFTS, IndexLSH:
	default:
		return Request{}, dberr.Usagef("unknown index kind %q", kind)
	}
	target, err := indexTarget(relation, name)
	if err != nil {
		return Request{}, err
	}
	return Request{Script: fmt.Sprintf("::%s drop %s", kind, target), Mutates: true}, nil
}

func indexTarget(relation, name string) (string, error) {
	if _, err := literal.Ident(relation); err != nil {
		return "", err
	}
	if _, err := literal.Ident(name); err != nil {
		return "", err
	}
	return relation + ":" + name, nil
}

func indexDirective(kind, target string, kws []keyword) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "::%s create %s {", kind, target)
	writeKeywords(&b, kws)
	b.WriteString("}")
	return Request{Script: b.String(), Mutates: true}
}

// ListRelations emits ::relations.
func ListRelations() Request {
	return Request{Script: "::relations"}
}

// Columns emits ::columns for a stored relation.
func Columns(relation string) (Request, error) {
	if _, err := literal.Ident(relation); err != nil {
		return Request{}, err
	}
	return Request{Script: "::columns " + relation}, nil
}

// Indices emits ::indices for a stored relation.
func Indices(relation string) (Request, error) {
	if _, err := literal.Ident(relation); err != nil {
		return Request{}, err
	}
	return Request{Script: "::indices " + relation}, nil
}

// Running emits ::running, listing queries currently executing.
func Running() Request {
	return Request{Script: "::running"}
}

// Kill emits ::kill for a running query id, as reported by Running.
func Kill(id int64) (Request, error) {
	if id < 0 {
		return Request{}, dberr.Usagef("query id must be non-negative, got %d", id)
	}
	return Request{Script: "::kill " + strconv.FormatInt(id, 10), Mutates: true}, nil
}

// Compact emits ::compact.
func Compact() Request {
	return Request{Script: "::compact", Mutates: true}
}
