package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cozoq/internal/dberr"
)

func TestCreateRelation_CompositeKeyKeepsDeclarationOrder(t *testing.T) {
	req, err := CreateRelation("edges", []Column{
		{Name: "from", Type: "String"},
		{Name: "to", Type: "String"},
		{Name: "weight", Type: "Float", Default: "1.0"},
	}, []string{"to", "from"})
	require.NoError(t, err)
	assert.Equal(t, ":create edges {from: String, to: String => weight: Float default 1.0}", req.Script)
	assert.True(t, req.Mutates)
}

func TestCreateRelation_KeysOnlyAndUntyped(t *testing.T) {
	req, err := CreateRelation("tags", []Column{{Name: "tag"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, ":create tags {tag}", req.Script)
}

func TestReplaceRelation(t *testing.T) {
	req, err := ReplaceRelation("users", []Column{{Name: "id", Type: "Int"}, {Name: "name"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, ":replace users {id: Int => name}", req.Script)
}

func TestCreateRelation_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		columns  []Column
		keys     []string
		contains string
	}{
		{"no columns", nil, nil, "declares no columns"},
		{"bad column", []Column{{Name: "1st"}}, nil, "invalid identifier"},
		{"duplicate column", []Column{{Name: "a"}, {Name: "a"}}, nil, `duplicate column "a"`},
		{"undeclared key", []Column{{Name: "a"}}, []string{"b"}, `key column "b" is not a declared column`},
		{"type injection", []Column{{Name: "a", Type: "Int} ::remove users {"}}, nil, "invalid type"},
		{"default injection", []Column{{Name: "a", Default: "0}\n:rm x {"}}, nil, "must not contain braces"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateRelation("users", tc.columns, tc.keys)
			require.Error(t, err)
			assert.True(t, dberr.IsUsageError(err))
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestRemoveRelations(t *testing.T) {
	req, err := RemoveRelations("a", "b")
	require.NoError(t, err)
	assert.Equal(t, "::remove a, b", req.Script)

	_, err = RemoveRelations()
	require.Error(t, err)
}

func TestCreateHNSWIndex(t *testing.T) {
	req, err := CreateHNSWIndex(HNSWIndex{
		Relation:       "docs",
		Name:           "embedding",
		Dim:            128,
		Fields:         []string{"vec"},
		DType:          "F32",
		Distance:       "Cosine",
		M:              16,
		EfConstruction: 200,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"::hnsw create docs:embedding {dim: 128, m: 16, dtype: F32, fields: [vec], distance: Cosine, ef_construction: 200}",
		req.Script)
	assert.True(t, req.Mutates)
}

func TestCreateHNSWIndex_Errors(t *testing.T) {
	base := HNSWIndex{Relation: "docs", Name: "e", Dim: 4, Fields: []string{"v"}}

	bad := base
	bad.Dim = 0
	_, err := CreateHNSWIndex(bad)
	assert.ErrorContains(t, err, "dim must be positive")

	bad = base
	bad.DType = "F16"
	_, err = CreateHNSWIndex(bad)
	assert.ErrorContains(t, err, "dtype must be F32 or F64")

	bad = base
	bad.Distance = "Manhattan"
	_, err = CreateHNSWIndex(bad)
	assert.ErrorContains(t, err, "unknown distance")

	bad = base
	bad.Fields = nil
	_, err = CreateHNSWIndex(bad)
	assert.ErrorContains(t, err, "at least one field")
}

func TestCreateFTSIndex(t *testing.T) {
	req, err := CreateFTSIndex(FTSIndex{
		Relation:  "docs",
		Name:      "body",
		Extractor: "content",
		Tokenizer: "Simple",
		Filters:   []string{"Lowercase", "Stemmer('english')"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"::fts create docs:body {extractor: content, tokenizer: Simple, filters: [Lowercase, Stemmer('english')]}",
		req.Script)
}

func TestCreateLSHIndex(t *testing.T) {
	req, err := CreateLSHIndex(LSHIndex{
		Relation:        "docs",
		Name:            "dedup",
		Extractor:       "content",
		NGram:           3,
		NPerm:           200,
		TargetThreshold: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"::lsh create docs:dedup {extractor: content, n_gram: 3, n_perm: 200, target_threshold: 0.7}",
		req.Script)

	_, err = CreateLSHIndex(LSHIndex{Relation: "docs", Name: "d", Extractor: "c", TargetThreshold: 2})
	assert.ErrorContains(t, err, "target_threshold")

	_, err = CreateLSHIndex(LSHIndex{Relation: "docs", Name: "d"})
	assert.ErrorContains(t, err, "extractor is required")
}

func TestDropIndex(t *testing.T) {
	req, err := DropIndex(IndexFTS, "docs", "body")
	require.NoError(t, err)
	assert.Equal(t, "::fts drop docs:body", req.Script)

	_, err = DropIndex(IndexKind("btree"), "docs", "body")
	assert.ErrorContains(t, err, "unknown index kind")
}

func TestSystemOps(t *testing.T) {
	assert.Equal(t, Request{Script: "::relations"}, ListRelations())
	assert.Equal(t, Request{Script: "::running"}, Running())
	assert.Equal(t, Request{Script: "::compact", Mutates: true}, Compact())

	req, err := Columns("users")
	require.NoError(t, err)
	assert.Equal(t, "::columns users", req.Script)

	req, err = Indices("users")
	require.NoError(t, err)
	assert.Equal(t, "::indices users", req.Script)

	req, err = Kill(42)
	require.NoError(t, err)
	assert.Equal(t, "::kill 42", req.Script)
	assert.True(t, req.Mutates)

	_, err = Kill(-1)
	assert.Error(t, err)

	_, err = Columns("users}")
	assert.Error(t, err)
}
