package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cozoq/internal/session"
)

// ErrNotRecorded is returned by Replayer.Run for a script the journal has
// no entry for.
var ErrNotRecorded = errors.New("script not recorded in journal")

// ErrReplayUnsupported is returned by administrative calls on a Replayer.
var ErrReplayUnsupported = errors.New("operation not available during replay")

// Replayer serves recorded responses. It is both the driver and the engine
// of a replay session.
type Replayer struct {
	journal *Journal
}

// NewReplayer creates a replayer over j.
func NewReplayer(j *Journal) *Replayer {
	return &Replayer{journal: j}
}

// Init checks that the journal is readable.
func (r *Replayer) Init() error {
	if err := r.journal.db.Ping(); err != nil {
		return fmt.Errorf("journal unavailable: %w", err)
	}
	return nil
}

// Open returns the replayer itself; kind, path and options are ignored.
func (r *Replayer) Open(context.Context, session.Kind, string, string) (session.Engine, error) {
	return r, nil
}

// Run returns the most recent recorded response for the call. A recorded
// transport failure is returned as an error again.
func (r *Replayer) Run(ctx context.Context, script, paramsJSON string, immutable bool) (string, error) {
	fp := Fingerprint(script, paramsJSON, immutable)
	e, ok, err := r.journal.Lookup(ctx, fp)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w (fingerprint %s)", ErrNotRecorded, fp[:12])
	}
	if e.Err != "" {
		return "", fmt.Errorf("recorded failure (seq %d): %s", e.Seq, e.Err)
	}
	return e.Response, nil
}

func (r *Replayer) ExportRelations(context.Context, string) (string, error) {
	return "", fmt.Errorf("export: %w", ErrReplayUnsupported)
}

func (r *Replayer) ImportRelations(context.Context, string) error {
	return fmt.Errorf("import: %w", ErrReplayUnsupported)
}

func (r *Replayer) Backup(context.Context, string) error {
	return fmt.Errorf("backup: %w", ErrReplayUnsupported)
}

func (r *Replayer) Restore(context.Context, string) error {
	return fmt.Errorf("restore: %w", ErrReplayUnsupported)
}

func (r *Replayer) ImportFromBackup(context.Context, string, string) error {
	return fmt.Errorf("import from backup: %w", ErrReplayUnsupported)
}

// Close is a no-op; the journal is owned by the caller.
func (r *Replayer) Close() error { return nil }
