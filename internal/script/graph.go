package script

import (
	"sort"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
)

// EdgeShape is the input arity an algorithm expects from its edge relation.
type EdgeShape int

const (
	// EdgesPlain takes [from, to]; a weight column is rejected.
	EdgesPlain EdgeShape = iota
	// EdgesWeightOptional takes [from, to] or [from, to, weight].
	EdgesWeightOptional
	// EdgesWeighted requires [from, to, weight].
	EdgesWeighted
)

// Need says whether an algorithm input is absent, optional or required.
type Need int

const (
	NeedNone Need = iota
	NeedOptional
	NeedRequired
)

// Algorithm describes one fixed-rule graph algorithm. The assembler reads
// descriptors generically; nothing branches on the algorithm name.
type Algorithm struct {
	// Name is the fixed rule name as the engine spells it.
	Name string

	Edges    EdgeShape
	Nodes    Need // node relation, referenced by expressions
	Starting Need
	Goals    Need

	// Options are literal-valued keywords, in emission order.
	Options []string

	// Expressions are keywords whose values are raw CozoScript expressions.
	Expressions []string

	// Required lists keywords (options or expressions) that must be set.
	Required []string

	// Outputs are the default output column names.
	Outputs []string
}

// Algorithm names.
const (
	PageRank                     = "PageRank"
	CommunityDetectionLouvain    = "CommunityDetectionLouvain"
	LabelPropagation             = "LabelPropagation"
	ConnectedComponents          = "ConnectedComponents"
	StronglyConnectedComponent   = "StronglyConnectedComponent"
	DegreeCentrality             = "DegreeCentrality"
	ClosenessCentrality          = "ClosenessCentrality"
	BetweennessCentrality        = "BetweennessCentrality"
	ClusteringCoefficients       = "ClusteringCoefficients"
	ShortestPathDijkstra         = "ShortestPathDijkstra"
	ShortestPathBFS              = "ShortestPathBFS"
	ShortestPathAStar            = "ShortestPathAStar"
	KShortestPathYen             = "KShortestPathYen"
	MinimumSpanningForestKruskal = "MinimumSpanningForestKruskal"
	MinimumSpanningTreePrim      = "MinimumSpanningTreePrim"
	TopSort                      = "TopSort"
	RandomWalk                   = "RandomWalk"
	BreadthFirstSearch           = "BreadthFirstSearch"
	DepthFirstSearch             = "DepthFirstSearch"
)

var algorithms = map[string]Algorithm{
	PageRank: {
		Name: PageRank, Edges: EdgesWeightOptional,
		Options: []string{"undirected", "theta", "epsilon", "iterations"},
		Outputs: []string{"node", "rank"},
	},
	CommunityDetectionLouvain: {
		Name: CommunityDetectionLouvain, Edges: EdgesWeightOptional,
		Options: []string{"undirected", "max_iter", "delta", "keep_depth"},
		Outputs: []string{"labels", "node"},
	},
	LabelPropagation: {
		Name: LabelPropagation, Edges: EdgesWeightOptional,
		Options: []string{"undirected", "max_iter"},
		Outputs: []string{"label", "node"},
	},
	ConnectedComponents: {
		Name: ConnectedComponents, Edges: EdgesPlain,
		Outputs: []string{"node", "component"},
	},
	StronglyConnectedComponent: {
		Name: StronglyConnectedComponent, Edges: EdgesPlain,
		Outputs: []string{"node", "component"},
	},
	DegreeCentrality: {
		Name: DegreeCentrality, Edges: EdgesPlain,
		Outputs: []string{"node", "degree", "out_degree", "in_degree"},
	},
	ClosenessCentrality: {
		Name: ClosenessCentrality, Edges: EdgesWeightOptional,
		Options: []string{"undirected"},
		Outputs: []string{"node", "centrality"},
	},
	BetweennessCentrality: {
		Name: BetweennessCentrality, Edges: EdgesWeightOptional,
		Options: []string{"undirected"},
		Outputs: []string{"node", "centrality"},
	},
	ClusteringCoefficients: {
		Name: ClusteringCoefficients, Edges: EdgesPlain,
		Outputs: []string{"node", "coefficient", "triangles", "degree"},
	},
	ShortestPathDijkstra: {
		Name: ShortestPathDijkstra, Edges: EdgesWeightOptional,
		Starting: NeedRequired, Goals: NeedOptional,
		Options: []string{"undirected", "keep_ties"},
		Outputs: []string{"start", "goal", "cost", "path"},
	},
	ShortestPathBFS: {
		Name: ShortestPathBFS, Edges: EdgesPlain,
		Starting: NeedRequired, Goals: NeedRequired,
		Outputs: []string{"start", "goal", "path"},
	},
	ShortestPathAStar: {
		Name: ShortestPathAStar, Edges: EdgesWeighted,
		Nodes: NeedRequired, Starting: NeedRequired, Goals: NeedRequired,
		Expressions: []string{"heuristic"},
		Required:    []string{"heuristic"},
		Outputs:     []string{"start", "goal", "cost", "path"},
	},
	KShortestPathYen: {
		Name: KShortestPathYen, Edges: EdgesWeightOptional,
		Starting: NeedRequired, Goals: NeedRequired,
		Options:  []string{"k", "undirected"},
		Required: []string{"k"},
		Outputs:  []string{"start", "goal", "cost", "path"},
	},
	MinimumSpanningForestKruskal: {
		Name: MinimumSpanningForestKruskal, Edges: EdgesWeightOptional,
		Outputs: []string{"src", "dst", "cost"},
	},
	MinimumSpanningTreePrim: {
		Name: MinimumSpanningTreePrim, Edges: EdgesWeightOptional,
		Starting: NeedOptional,
		Outputs:  []string{"src", "dst", "cost"},
	},
	TopSort: {
		Name: TopSort, Edges: EdgesPlain,
		Outputs: []string{"order", "node"},
	},
	RandomWalk: {
		Name: RandomWalk, Edges: EdgesPlain,
		Nodes: NeedRequired, Starting: NeedRequired,
		Options:     []string{"steps", "iterations"},
		Expressions: []string{"weight"},
		Required:    []string{"steps"},
		Outputs:     []string{"walk", "start", "path"},
	},
	BreadthFirstSearch: {
		Name: BreadthFirstSearch, Edges: EdgesPlain,
		Nodes: NeedRequired, Starting: NeedOptional,
		Options:     []string{"limit"},
		Expressions: []string{"condition"},
		Required:    []string{"condition"},
		Outputs:     []string{"start", "goal", "path"},
	},
	DepthFirstSearch: {
		Name: DepthFirstSearch, Edges: EdgesPlain,
		Nodes: NeedRequired, Starting: NeedOptional,
		Options:     []string{"limit"},
		Expressions: []string{"condition"},
		Required:    []string{"condition"},
		Outputs:     []string{"start", "goal", "path"},
	},
}

// LookupAlgorithm returns the descriptor for name.
func LookupAlgorithm(name string) (Algorithm, bool) {
	a, ok := algorithms[name]
	return a, ok
}

// Algorithms returns all supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for n := range algorithms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Expr marks a keyword value as a raw CozoScript expression rather than a
// literal value.
type Expr string

// GraphCall is the input to Graph.
type GraphCall struct {
	// Algorithm is one of the names returned by Algorithms.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Edges is the stored edge relation.
	Edges string `yaml:"edges" json:"edges"`

	// From and To name the endpoint columns of Edges (default "from", "to").
	From string `yaml:"from,omitempty" json:"from,omitempty"`
	To   string `yaml:"to,omitempty" json:"to,omitempty"`

	// Weight names a weight column of Edges; empty means unweighted.
	Weight string `yaml:"weight,omitempty" json:"weight,omitempty"`

	// Nodes is the stored node relation and NodeColumns its columns, the
	// first being the node id. Only algorithms that read node properties
	// take them.
	Nodes       string   `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	NodeColumns []string `yaml:"node_columns,omitempty" json:"node_columns,omitempty"`

	// Starting and Goals are node ids, sent as parameters.
	Starting []any `yaml:"starting,omitempty" json:"starting,omitempty"`
	Goals    []any `yaml:"goals,omitempty" json:"goals,omitempty"`

	// Options holds keyword arguments. Expression keywords take string or
	// Expr values; the rest are literal-encoded.
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`

	// Outputs overrides the output column names; the count must match.
	Outputs []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// Graph emits a two-stage graph-algorithm script: a local edge rule over the
// stored relation, then the fixed-rule invocation.
//
//	edges[from, to] := *follows{from, to}
//	?[node, rank] <~ PageRank(edges[from, to], theta: 0.85)
func Graph(c GraphCall) (Request, error) {
	algo, ok := algorithms[c.Algorithm]
	if !ok {
		return Request{}, dberr.Usagef("unknown graph algorithm %q (supported: %s)",
			c.Algorithm, strings.Join(Algorithms(), ", "))
	}
	if _, err := literal.Ident(c.Edges); err != nil {
		return Request{}, err
	}

	from, to := c.From, c.To
	if from == "" {
		from = "from"
	}
	if to == "" {
		to = "to"
	}
	edgeCols := []string{from, to}
	switch {
	case c.Weight != "" && algo.Edges == EdgesPlain:
		return Request{}, dberr.Usagef("%s does not take a weight column", algo.Name)
	case c.Weight == "" && algo.Edges == EdgesWeighted:
		return Request{}, dberr.Usagef("%s requires a weight column", algo.Name)
	case c.Weight != "":
		edgeCols = append(edgeCols, c.Weight)
	}
	edgeList, err := joinIdents(edgeCols)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("edge column", edgeCols); err != nil {
		return Request{}, err
	}

	outputs := algo.Outputs
	if len(c.Outputs) > 0 {
		if len(c.Outputs) != len(algo.Outputs) {
			return Request{}, dberr.Usagef("%s produces %d columns, %d output names given",
				algo.Name, len(algo.Outputs), len(c.Outputs))
		}
		outputs = c.Outputs
	}
	outList, err := joinIdents(outputs)
	if err != nil {
		return Request{}, err
	}
	if err := checkUnique("output column", outputs); err != nil {
		return Request{}, err
	}

	var b strings.Builder
	params := map[string]any{}
	inputs := []string{"edges[" + edgeList + "]"}

	b.WriteString("edges[" + edgeList + "] := *" + c.Edges + "{" + edgeList + "}\n")

	if err := checkNeed(algo.Name, "node relation", algo.Nodes, c.Nodes != ""); err != nil {
		return Request{}, err
	}
	if c.Nodes != "" {
		if _, err := literal.Ident(c.Nodes); err != nil {
			return Request{}, err
		}
		if len(c.NodeColumns) == 0 {
			return Request{}, dberr.Usagef("%s: node relation %q needs node_columns", algo.Name, c.Nodes)
		}
		nodeList, err := joinIdents(c.NodeColumns)
		if err != nil {
			return Request{}, err
		}
		b.WriteString("nodes[" + nodeList + "] := *" + c.Nodes + "{" + nodeList + "}\n")
		inputs = append(inputs, "nodes["+nodeList+"]")
	}

	if err := checkNeed(algo.Name, "starting nodes", algo.Starting, len(c.Starting) > 0); err != nil {
		return Request{}, err
	}
	if len(c.Starting) > 0 {
		b.WriteString("starting[node] <- $starting\n")
		params["starting"] = nodeRows(c.Starting)
		inputs = append(inputs, "starting[node]")
	}

	if err := checkNeed(algo.Name, "goal nodes", algo.Goals, len(c.Goals) > 0); err != nil {
		return Request{}, err
	}
	if len(c.Goals) > 0 {
		b.WriteString("goals[node] <- $goals\n")
		params["goals"] = nodeRows(c.Goals)
		inputs = append(inputs, "goals[node]")
	}

	kws, err := graphKeywords(algo, c.Options)
	if err != nil {
		return Request{}, err
	}

	b.WriteString("?[" + outList + "] <~ " + algo.Name + "(")
	b.WriteString(strings.Join(inputs, ", "))
	if len(kws) > 0 {
		b.WriteString(", ")
		writeKeywords(&b, kws)
	}
	b.WriteString(")")

	if len(params) == 0 {
		params = nil
	}
	return Request{Script: b.String(), Params: params}, nil
}

func checkNeed(algo, what string, need Need, given bool) error {
	switch {
	case need == NeedNone && given:
		return dberr.Usagef("%s does not take %s", algo, what)
	case need == NeedRequired && !given:
		return dberr.Usagef("%s requires %s", algo, what)
	}
	return nil
}

// nodeRows shapes node ids as single-column rows for a constant rule.
func nodeRows(ids []any) [][]any {
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{id}
	}
	return rows
}

func graphKeywords(algo Algorithm, opts map[string]any) ([]keyword, error) {
	known := make(map[string]bool, len(algo.Options)+len(algo.Expressions))
	for _, o := range algo.Options {
		known[o] = true
	}
	for _, e := range algo.Expressions {
		known[e] = true
	}

	unknown := make([]string, 0)
	for k := range opts {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, dberr.Usagef("%s does not accept option(s): %s", algo.Name, strings.Join(unknown, ", "))
	}
	for _, r := range algo.Required {
		if _, ok := opts[r]; !ok {
			return nil, dberr.Usagef("%s requires option %q", algo.Name, r)
		}
	}

	var kws []keyword
	for _, name := range algo.Options {
		v, ok := opts[name]
		if !ok {
			continue
		}
		if e, isExpr := v.(Expr); isExpr {
			if err := checkExpr(name, string(e)); err != nil {
				return nil, err
			}
			kws = append(kws, keyword{name, string(e)})
			continue
		}
		kws = append(kws, keyword{name, literal.Encode(v)})
	}
	for _, name := range algo.Expressions {
		v, ok := opts[name]
		if !ok {
			continue
		}
		var text string
		switch e := v.(type) {
		case Expr:
			text = string(e)
		case string:
			text = e
		default:
			return nil, dberr.Usagef("%s option %q must be an expression string, got %T", algo.Name, name, v)
		}
		if err := checkExpr(name, text); err != nil {
			return nil, err
		}
		kws = append(kws, keyword{name, text})
	}
	return kws, nil
}
