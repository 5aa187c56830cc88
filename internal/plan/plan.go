// Package plan loads request files: named, ordered lists of steps that each
// compile to one script.Request.
//
// Plans are written in YAML, JSON or CUE. A CUE file declares the plan under
// a top-level `plan:` field so it can share definitions with other fields:
//
//	plan: {
//	    name: "seed"
//	    steps: [
//	        {op: "create", relation: "users", columns: [{name: "id", type: "Int"}], keys: ["id"]},
//	        {op: "upsert", relation: "users", rows: [{id: 1}]},
//	    ]
//	}
package plan

import (
	"fmt"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/script"
)

// Op names the operation a step performs.
type Op string

const (
	OpUpsert           Op = "upsert"
	OpDelete           Op = "delete"
	OpCreate           Op = "create"
	OpGraph            Op = "graph"
	OpVectorSearch     Op = "vector_search"
	OpTextSearch       Op = "text_search"
	OpSimilaritySearch Op = "similarity_search"
	OpSort             Op = "sort"
	OpIngest           Op = "ingest"
	OpSelect           Op = "select"
	OpRaw              Op = "raw"
)

// Ops lists every supported operation.
var Ops = []Op{
	OpUpsert, OpDelete, OpCreate, OpGraph, OpVectorSearch, OpTextSearch,
	OpSimilaritySearch, OpSort, OpIngest, OpSelect, OpRaw,
}

func (o Op) valid() bool {
	for _, op := range Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Plan is a named, ordered list of steps.
type Plan struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`

	// Source is the file the plan was loaded from.
	Source string `yaml:"-" json:"-"`
}

// Step is one operation. Only the fields its Op reads are consulted.
type Step struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Op   Op     `yaml:"op" json:"op"`

	// upsert, delete, create
	Relation string           `yaml:"relation,omitempty" json:"relation,omitempty"`
	Rows     []map[string]any `yaml:"rows,omitempty" json:"rows,omitempty"`
	Keys     []string         `yaml:"keys,omitempty" json:"keys,omitempty"`
	Columns  []script.Column  `yaml:"columns,omitempty" json:"columns,omitempty"`
	Replace  bool             `yaml:"replace,omitempty" json:"replace,omitempty"`

	Graph  *script.GraphCall  `yaml:"graph,omitempty" json:"graph,omitempty"`
	Search *script.SearchCall `yaml:"search,omitempty" json:"search,omitempty"`
	Sort   *script.SortCall   `yaml:"sort,omitempty" json:"sort,omitempty"`
	Ingest *script.IngestCall `yaml:"ingest,omitempty" json:"ingest,omitempty"`
	Select *script.SelectCall `yaml:"select,omitempty" json:"select,omitempty"`

	// raw
	Script  string         `yaml:"script,omitempty" json:"script,omitempty"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Mutates bool           `yaml:"mutates,omitempty" json:"mutates,omitempty"`
}

// Label returns the step name, or its op when unnamed.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Op)
}

// Compile assembles the request for a single step.
func Compile(s Step) (script.Request, error) {
	switch s.Op {
	case OpUpsert:
		return script.Upsert(s.Relation, s.Rows)
	case OpDelete:
		return script.DeleteByKey(s.Relation, s.Keys, s.Rows)
	case OpCreate:
		if s.Replace {
			return script.ReplaceRelation(s.Relation, s.Columns, s.Keys)
		}
		return script.CreateRelation(s.Relation, s.Columns, s.Keys)
	case OpGraph:
		if s.Graph == nil {
			return script.Request{}, missing(s)
		}
		return script.Graph(*s.Graph)
	case OpVectorSearch, OpTextSearch, OpSimilaritySearch:
		if s.Search == nil {
			return script.Request{}, missing(s)
		}
		switch s.Op {
		case OpVectorSearch:
			return script.VectorSearch(*s.Search)
		case OpTextSearch:
			return script.TextSearch(*s.Search)
		default:
			return script.SimilaritySearch(*s.Search)
		}
	case OpSort:
		if s.Sort == nil {
			return script.Request{}, missing(s)
		}
		return script.Sort(*s.Sort)
	case OpIngest:
		if s.Ingest == nil {
			return script.Request{}, missing(s)
		}
		return script.Ingest(*s.Ingest)
	case OpSelect:
		if s.Select == nil {
			return script.Request{}, missing(s)
		}
		return script.Select(*s.Select)
	case OpRaw:
		return script.Raw(s.Script, s.Params, s.Mutates)
	case "":
		return script.Request{}, dberr.Usagef("step has no op")
	default:
		return script.Request{}, dberr.Usagef("unknown op %q", s.Op)
	}
}

func missing(s Step) error {
	field := string(s.Op)
	if i := strings.Index(field, "_search"); i >= 0 {
		field = "search"
	}
	return dberr.Usagef("%s step requires a %q block", s.Op, field)
}

// Compiled is a step together with its assembled request.
type Compiled struct {
	Index   int
	Step    Step
	Request script.Request
}

// Compile assembles every step in order, stopping at the first failure.
// The error names the plan and the failing step.
func (p Plan) Compile() ([]Compiled, error) {
	out := make([]Compiled, 0, len(p.Steps))
	for i, s := range p.Steps {
		req, err := Compile(s)
		if err != nil {
			return nil, fmt.Errorf("plan %s: step %d (%s): %w", p.Name, i+1, s.Label(), err)
		}
		out = append(out, Compiled{Index: i, Step: s, Request: req})
	}
	return out, nil
}

// Validate checks plan structure without assembling scripts.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return dberr.Usagef("plan has no name")
	}
	if len(p.Steps) == 0 {
		return dberr.Usagef("plan %s has no steps", p.Name)
	}
	for i, s := range p.Steps {
		if !s.Op.valid() {
			return dberr.Usagef("plan %s: step %d: unknown op %q", p.Name, i+1, s.Op)
		}
	}
	return nil
}
