package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cozoq/internal/journal"
	"github.com/roach88/cozoq/internal/testutil"
)

// createJournal creates a journal at path holding entries, numbered and
// timestamped deterministically.
func createJournal(t *testing.T, path string, entries ...journal.Entry) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	j, err := journal.Open(path,
		journal.WithSequencer(clock),
		journal.WithIDs(testutil.NewSequentialIDs("entry")),
		journal.WithNow(clock.Now),
	)
	require.NoError(t, err)
	defer j.Close()

	for _, e := range entries {
		_, err := j.Append(context.Background(), e)
		require.NoError(t, err)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
