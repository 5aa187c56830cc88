package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cozoq/internal/dberr"
)

func TestAlgorithms_DescriptorsAreConsistent(t *testing.T) {
	names := Algorithms()
	require.Len(t, names, 19)

	for _, name := range names {
		algo, ok := LookupAlgorithm(name)
		require.True(t, ok, name)
		assert.Equal(t, name, algo.Name)
		assert.NotEmpty(t, algo.Outputs, name)

		declared := map[string]bool{}
		for _, o := range algo.Options {
			declared[o] = true
		}
		for _, e := range algo.Expressions {
			declared[e] = true
		}
		for _, r := range algo.Required {
			assert.True(t, declared[r], "%s requires undeclared keyword %q", name, r)
		}
	}

	_, ok := LookupAlgorithm("Nope")
	assert.False(t, ok)
}

func TestGraph_EveryAlgorithmAssemblesWithMinimalInputs(t *testing.T) {
	for _, name := range Algorithms() {
		algo, _ := LookupAlgorithm(name)
		t.Run(name, func(t *testing.T) {
			call := GraphCall{Algorithm: name, Edges: "e", Options: map[string]any{}}
			if algo.Edges == EdgesWeighted {
				call.Weight = "w"
			}
			if algo.Nodes == NeedRequired {
				call.Nodes = "n"
				call.NodeColumns = []string{"id", "x"}
			}
			if algo.Starting == NeedRequired {
				call.Starting = []any{"a"}
			}
			if algo.Goals == NeedRequired {
				call.Goals = []any{"b"}
			}
			for _, r := range algo.Required {
				call.Options[r] = Expr("1")
			}

			req, err := Graph(call)
			require.NoError(t, err)
			assert.Contains(t, req.Script, "<~ "+name+"(edges[")
			assert.False(t, req.Mutates)
		})
	}
}

func TestGraph_AStarWithNodesAndHeuristic(t *testing.T) {
	req, err := Graph(GraphCall{
		Algorithm:   ShortestPathAStar,
		Edges:       "roads",
		Weight:      "dist",
		Nodes:       "cities",
		NodeColumns: []string{"code", "lat", "lon"},
		Starting:    []any{"LHR"},
		Goals:       []any{"YUL"},
		Options:     map[string]any{"heuristic": "haversine_deg_input(lat, lon, goal_lat, goal_lon)"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"edges[from, to, dist] := *roads{from, to, dist}\n"+
			"nodes[code, lat, lon] := *cities{code, lat, lon}\n"+
			"starting[node] <- $starting\n"+
			"goals[node] <- $goals\n"+
			"?[start, goal, cost, path] <~ ShortestPathAStar(edges[from, to, dist], nodes[code, lat, lon], starting[node], goals[node], heuristic: haversine_deg_input(lat, lon, goal_lat, goal_lon))",
		req.Script)
	assert.Equal(t, [][]any{{"LHR"}}, req.Params["starting"])
	assert.Equal(t, [][]any{{"YUL"}}, req.Params["goals"])
}

func TestGraph_NodeIdsTravelAsParameters(t *testing.T) {
	req, err := Graph(GraphCall{
		Algorithm: ShortestPathBFS,
		Edges:     "links",
		Starting:  []any{`a"]`},
		Goals:     []any{"b"},
	})
	require.NoError(t, err)
	assert.NotContains(t, req.Script, `a"]`)
	assert.Equal(t, [][]any{{`a"]`}}, req.Params["starting"])
}

func TestGraph_OutputOverride(t *testing.T) {
	req, err := Graph(GraphCall{
		Algorithm: ConnectedComponents,
		Edges:     "links",
		Outputs:   []string{"member", "cluster"},
	})
	require.NoError(t, err)
	assert.Contains(t, req.Script, "?[member, cluster] <~ ConnectedComponents(edges[from, to])")
	assert.Nil(t, req.Params)
}

func TestGraph_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		call     GraphCall
		contains string
	}{
		{"unknown algorithm", GraphCall{Algorithm: "Magic", Edges: "e"}, "unknown graph algorithm"},
		{"bad edges", GraphCall{Algorithm: PageRank, Edges: "e e"}, "invalid identifier"},
		{"weight on plain", GraphCall{Algorithm: TopSort, Edges: "e", Weight: "w"}, "does not take a weight"},
		{"missing weight", GraphCall{Algorithm: ShortestPathAStar, Edges: "e"}, "requires a weight"},
		{"missing starting", GraphCall{Algorithm: ShortestPathDijkstra, Edges: "e"}, "requires starting nodes"},
		{"unexpected goals", GraphCall{Algorithm: PageRank, Edges: "e", Goals: []any{1}}, "does not take goal nodes"},
		{"unknown option", GraphCall{Algorithm: PageRank, Edges: "e", Options: map[string]any{"zeta": 1}}, "does not accept option(s): zeta"},
		{"missing required", GraphCall{Algorithm: KShortestPathYen, Edges: "e", Starting: []any{1}, Goals: []any{2}}, `requires option "k"`},
		{"output count", GraphCall{Algorithm: PageRank, Edges: "e", Outputs: []string{"only"}}, "produces 2 columns"},
		{"same endpoints", GraphCall{Algorithm: PageRank, Edges: "e", From: "a", To: "a"}, "duplicate edge column"},
		{"nodes without columns", GraphCall{Algorithm: BreadthFirstSearch, Edges: "e", Nodes: "n", Options: map[string]any{"condition": "x"}}, "needs node_columns"},
		{"expression type", GraphCall{
			Algorithm: BreadthFirstSearch, Edges: "e", Nodes: "n", NodeColumns: []string{"id"},
			Options: map[string]any{"condition": 5},
		}, "must be an expression string"},
		{"expression injection", GraphCall{
			Algorithm: BreadthFirstSearch, Edges: "e", Nodes: "n", NodeColumns: []string{"id"},
			Options: map[string]any{"condition": "x}\n:rm e {"},
		}, "must not contain braces"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Graph(tc.call)
			require.Error(t, err)
			assert.True(t, dberr.IsUsageError(err))
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestGraph_LiteralOptions(t *testing.T) {
	req, err := Graph(GraphCall{
		Algorithm: CommunityDetectionLouvain,
		Edges:     "e",
		Weight:    "w",
		Options:   map[string]any{"max_iter": 10, "undirected": true, "delta": 0.0001},
	})
	require.NoError(t, err)
	assert.Contains(t, req.Script, "CommunityDetectionLouvain(edges[from, to, w], undirected: true, max_iter: 10, delta: 0.0001)")
}
