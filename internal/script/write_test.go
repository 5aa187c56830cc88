package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cozoq/internal/dberr"
)

func TestUpsert_SingleRow(t *testing.T) {
	req, err := Upsert("users", []map[string]any{{"id": 1, "name": "Alice"}})
	require.NoError(t, err)

	lines := strings.Split(req.Script, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `?[id, name] <- [[1, "Alice"]]`, lines[0])
	assert.Equal(t, ":put users {id, name}", lines[1])
	assert.True(t, req.Mutates)
	assert.Empty(t, req.Params)
}

func TestUpsert_ValuesAreInlinedNotInterpolated(t *testing.T) {
	req, err := Upsert("users", []map[string]any{
		{"id": 1, "name": `Bob"] :rm users {id}`},
	})
	require.NoError(t, err)

	// The hostile value stays inside one quoted literal.
	assert.Contains(t, req.Script, `"Bob\"] :rm users {id}"`)
	assert.Equal(t, 1, strings.Count(req.Script, "\n:"))
}

func TestUpsert_MultipleRowsSortedColumns(t *testing.T) {
	req, err := Upsert("people", []map[string]any{
		{"name": "Alice", "age": 30, "id": 1},
		{"name": "Bob", "age": 41.5, "id": 2},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"?[age, id, name] <- [[30, 1, \"Alice\"], [41.5, 2, \"Bob\"]]\n:put people {age, id, name}",
		req.Script)
}

func TestUpsert_EmptyRowsIsNoop(t *testing.T) {
	req, err := Upsert("users", nil)
	require.NoError(t, err)
	assert.Equal(t, Noop(), req)
	assert.False(t, req.Mutates)
}

func TestUpsert_EmptyRowsStillValidatesRelation(t *testing.T) {
	_, err := Upsert("bad name", nil)
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
}

func TestUpsert_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		relation string
		rows     []map[string]any
		contains string
	}{
		{"bad relation", "users;", []map[string]any{{"id": 1}}, "invalid identifier"},
		{"bad column", "users", []map[string]any{{"id x": 1}}, "invalid identifier"},
		{"mismatched width", "users", []map[string]any{{"id": 1}, {"id": 2, "name": "x"}}, "row 1 has 2 columns"},
		{"missing key", "users", []map[string]any{{"id": 1}, {"name": "x"}}, `missing column "id"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Upsert(tc.relation, tc.rows)
			require.Error(t, err)
			assert.True(t, dberr.IsUsageError(err))
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestDeleteByKey_ProjectsKeys(t *testing.T) {
	req, err := DeleteByKey("users", []string{"id"}, []map[string]any{
		{"id": 1, "name": "Alice"},
		{"id": 2, "name": "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, "?[id] <- [[1], [2]]\n:rm users {id}", req.Script)
	assert.True(t, req.Mutates)
}

func TestDeleteByKey_MissingKey(t *testing.T) {
	_, err := DeleteByKey("users", []string{"id"}, []map[string]any{{"name": "Alice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing key column "id"`)
}

func TestDeleteByKey_Empty(t *testing.T) {
	req, err := DeleteByKey("users", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Noop(), req)
}

func TestWrite_KeyValueSpec(t *testing.T) {
	tbl := Table{
		Columns: []string{"id", "name", "age"},
		Rows:    [][]any{{1, "Alice", 30}},
	}

	req, err := Write(ModeUpdate, "users", tbl, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, "?[id, name, age] <- [[1, \"Alice\", 30]]\n:update users {id => name, age}", req.Script)
}

func TestWrite_DeleteModeProjectsOntoKeys(t *testing.T) {
	tbl := Table{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{1, "Alice"}},
	}

	req, err := Write(ModeDelete, "users", tbl, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, "?[id] <- [[1]]\n:delete users {id}", req.Script)
}

func TestWrite_Errors(t *testing.T) {
	tbl := Table{Columns: []string{"id"}, Rows: [][]any{{1}}}

	_, err := Write(Mode("upsert"), "users", tbl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown write mode")

	_, err = Write(ModePut, "users", tbl, []string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key column "missing" not present`)

	_, err = Write(ModePut, "users", Table{Columns: []string{"id", "id"}, Rows: [][]any{{1, 2}}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate column "id"`)

	_, err = Write(ModePut, "users", Table{Columns: []string{"id"}, Rows: [][]any{{1, 2}}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 2 values")
}

func TestRaw(t *testing.T) {
	req, err := Raw("?[x] <- [[$v]]", map[string]any{"v": 1}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, req.ParamNames())

	params, err := req.ParamsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, params)

	_, err = Raw("   ", nil, false)
	require.Error(t, err)
	assert.True(t, dberr.IsUsageError(err))
}

func TestParamsJSON_Unmarshalable(t *testing.T) {
	req := Request{Script: "?[x] <- [[1]]", Params: map[string]any{"ch": make(chan int)}}
	_, err := req.ParamsJSON()
	require.Error(t, err)
}
