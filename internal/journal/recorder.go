package journal

import (
	"context"
	"log/slog"

	"github.com/roach88/cozoq/internal/session"
)

// Recorder is a session.Engine that forwards to another engine and appends
// every Run outcome to a journal. Administrative calls pass through
// unrecorded.
type Recorder struct {
	inner     session.Engine
	journal   *Journal
	sessionID string
	logger    *slog.Logger
}

// NewRecorder wraps inner. sessionID tags the recorded entries.
func NewRecorder(inner session.Engine, j *Journal, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{inner: inner, journal: j, sessionID: sessionID, logger: logger}
}

// Record returns a session.Options.WrapEngine hook that wraps each opened
// engine in a Recorder appending to j.
func Record(j *Journal, logger *slog.Logger) func(session.Engine, string) session.Engine {
	return func(inner session.Engine, sessionID string) session.Engine {
		return NewRecorder(inner, j, sessionID, logger)
	}
}

// Run forwards the call and records its outcome. A failure to record is
// logged and does not change what the caller sees.
func (r *Recorder) Run(ctx context.Context, script, paramsJSON string, immutable bool) (string, error) {
	raw, err := r.inner.Run(ctx, script, paramsJSON, immutable)

	e := Entry{
		SessionID: r.sessionID,
		Script:    script,
		Params:    paramsJSON,
		Immutable: immutable,
		Response:  raw,
	}
	if err != nil {
		e.Err = err.Error()
	}
	if stored, appendErr := r.journal.Append(context.WithoutCancel(ctx), e); appendErr != nil {
		r.logger.Warn("failed to record script", "error", appendErr)
	} else {
		r.logger.Debug("script recorded", "seq", stored.Seq, "fingerprint", stored.Fingerprint[:12])
	}
	return raw, err
}

func (r *Recorder) ExportRelations(ctx context.Context, relationsJSON string) (string, error) {
	return r.inner.ExportRelations(ctx, relationsJSON)
}

func (r *Recorder) ImportRelations(ctx context.Context, dataJSON string) error {
	return r.inner.ImportRelations(ctx, dataJSON)
}

func (r *Recorder) Backup(ctx context.Context, path string) error {
	return r.inner.Backup(ctx, path)
}

func (r *Recorder) Restore(ctx context.Context, path string) error {
	return r.inner.Restore(ctx, path)
}

func (r *Recorder) ImportFromBackup(ctx context.Context, path, relationsJSON string) error {
	return r.inner.ImportFromBackup(ctx, path, relationsJSON)
}

// Close closes the wrapped engine. The journal stays open.
func (r *Recorder) Close() error {
	return r.inner.Close()
}
