package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TextTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ok.json", `{"ok":true,"headers":["id","name"],"rows":[[1,"Alice"],[2,"Bob"]],"took":0.001}`)

	out, err := execute(t, "decode", path)
	require.NoError(t, err)
	assert.Equal(t, ""+
		"id  name\n"+
		"--  ----\n"+
		"1   Alice\n"+
		"2   Bob\n"+
		"(2 rows, took 0.001s)\n", out)
}

func TestDecode_JSONFromStdin(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(`{"ok":true,"headers":["n"],"rows":[[12345678901234567890]]}`))
	cmd.SetArgs([]string{"--format", "json", "decode", "-"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Columns []string            `json:"columns"`
			Rows    [][]json.RawMessage `json:"rows"`
			Took    *float64            `json:"took"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"n"}, resp.Data.Columns)
	assert.Equal(t, "12345678901234567890", string(resp.Data.Rows[0][0]))
	assert.Nil(t, resp.Data.Took)
}

func TestDecode_FailureEnvelope(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fail.json", `{"ok":false,"display":"relation users not found"}`)

	out, err := execute(t, "decode", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
	assert.Contains(t, out, "relation users not found")

	out, err = execute(t, "--format", "json", "decode", path)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeQuery, resp.Error.Code)
}

func TestDecode_MalformedEnvelopeIsQueryFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "junk.json", `not json`)

	out, err := execute(t, "decode", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "malformed response")
}

func TestDecode_MissingFile(t *testing.T) {
	out, err := execute(t, "decode", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
