// Package session guards a connection to the query engine.
//
// A Session is Open from the moment it is created until Close, after which
// every operation fails with a SessionError wrapping dberr.ErrSessionClosed
// without reaching the engine. The open flag is a single atomic value; Close
// flips it with one compare-and-swap and then waits for calls already inside
// the engine before releasing it. A close racing an in-flight call therefore
// either lets that call finish against the open engine or fails it as closed.
//
// Sessions do not serialise calls, cache results, impose timeouts, or run
// background goroutines. Concurrent calls are passed to the engine as-is.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/result"
	"github.com/roach88/cozoq/internal/script"
)

// Kind selects the engine storage backend.
type Kind string

const (
	KindMem     Kind = "mem"
	KindSQLite  Kind = "sqlite"
	KindRocksDB Kind = "rocksdb"
)

// Persistent reports whether the kind stores data in a file.
func (k Kind) Persistent() bool {
	return k == KindSQLite || k == KindRocksDB
}

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMem, KindSQLite, KindRocksDB:
		return k, nil
	case "":
		return KindMem, nil
	default:
		return "", dberr.Usagef("unknown engine kind %q (mem, sqlite or rocksdb)", s)
	}
}

// Options configure Open.
type Options struct {
	Kind Kind

	// Path is the database file. Required for persistent kinds, ignored for
	// mem.
	Path string

	// EngineOptions are passed to the engine as a JSON object.
	EngineOptions map[string]any

	// Logger receives debug logs for every call. Defaults to slog.Default().
	Logger *slog.Logger

	// IDs generates the session id. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// WrapEngine, when set, wraps the opened engine before the session
	// uses it. It receives the new session id. journal.Record builds one.
	WrapEngine func(engine Engine, sessionID string) Engine
}

// Session is an open, guarded connection to the engine.
type Session struct {
	id     string
	kind   Kind
	engine Engine
	logger *slog.Logger
	open   atomic.Bool

	// calls is held shared by every engine call and exclusively by Close.
	calls sync.RWMutex
}

// Open initialises a session on a new engine from driver. Init must have
// succeeded for driver first.
func Open(ctx context.Context, driver Driver, opts Options) (*Session, error) {
	if driver == nil {
		return nil, dberr.NewSessionError("open", "no driver", nil)
	}
	if !initialised(driver) {
		return nil, dberr.NewSessionError("open", "engine runtime not initialised; call session.Init first", nil)
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindMem
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	path := opts.Path
	if kind.Persistent() && strings.TrimSpace(path) == "" {
		return nil, dberr.Usagef("engine kind %q requires a path", kind)
	}
	if !kind.Persistent() {
		path = ""
	}

	optionsJSON := "{}"
	if len(opts.EngineOptions) > 0 {
		data, err := json.Marshal(opts.EngineOptions)
		if err != nil {
			return nil, dberr.Usagef("engine options: %v", err)
		}
		optionsJSON = string(data)
	}

	if err := ctx.Err(); err != nil {
		return nil, dberr.NewSessionError("open", "", err)
	}
	engine, err := driver.Open(ctx, kind, path, optionsJSON)
	if err != nil {
		return nil, dberr.NewSessionError("open", fmt.Sprintf("open %s engine", kind), err)
	}

	s := newSession(engine, kind, opts.Logger, opts.IDs)
	if opts.WrapEngine != nil {
		s.engine = opts.WrapEngine(engine, s.id)
	}
	s.logger.Info("session opened", "kind", string(kind), "path", path)
	return s, nil
}

// New wraps an already-open engine in a session.
func New(engine Engine, logger *slog.Logger) *Session {
	return newSession(engine, "", logger, nil)
}

func newSession(engine Engine, kind Kind, logger *slog.Logger, ids IDGenerator) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	id := ids.Generate()
	s := &Session{
		id:     id,
		kind:   kind,
		engine: engine,
		logger: logger.With("session", id),
	}
	s.open.Store(true)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Kind returns the backend kind, empty for sessions built with New.
func (s *Session) Kind() Kind { return s.kind }

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool { return !s.open.Load() }

// Close releases the engine. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if !s.open.CompareAndSwap(true, false) {
		return nil
	}
	s.calls.Lock()
	defer s.calls.Unlock()
	s.logger.Info("session closed")
	if err := s.engine.Close(); err != nil {
		return dberr.NewSessionError("close", "", err)
	}
	return nil
}

// enter fails fast on a closed session or a done context. On success the
// caller may use the engine until it calls leave; Close waits for it.
func (s *Session) enter(ctx context.Context, op string) error {
	s.calls.RLock()
	if !s.open.Load() {
		s.calls.RUnlock()
		return dberr.Closed(op)
	}
	if err := ctx.Err(); err != nil {
		s.calls.RUnlock()
		return dberr.NewSessionError(op, "", err)
	}
	return nil
}

func (s *Session) leave() { s.calls.RUnlock() }

// transportError keeps errors already classified by the engine layer and
// wraps everything else as a session failure.
func transportError(op string, err error) error {
	if dberr.IsQueryError(err) || dberr.IsSessionError(err) || dberr.IsUsageError(err) {
		return err
	}
	return dberr.NewSessionError(op, "", err)
}

// Run executes script with params. immutable asks the engine to reject any
// write or schema change.
func (s *Session) Run(ctx context.Context, scriptText string, params map[string]any, immutable bool) (*result.Result, error) {
	if err := s.enter(ctx, "run"); err != nil {
		return nil, err
	}
	defer s.leave()
	paramsJSON := "{}"
	if len(params) > 0 {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, dberr.Usagef("query params: %v", err)
		}
		paramsJSON = string(data)
	}

	start := time.Now()
	raw, err := s.engine.Run(ctx, scriptText, paramsJSON, immutable)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Debug("script transport failed", "immutable", immutable, "elapsed", elapsed, "error", err)
		return nil, transportError("run", err)
	}

	res, err := result.DecodeString(raw)
	if err != nil {
		s.logger.Debug("script failed", "immutable", immutable, "elapsed", elapsed, "error", err)
		return nil, err
	}
	s.logger.Debug("script ran", "immutable", immutable, "rows", res.Len(), "elapsed", elapsed)
	return res, nil
}

// Query runs req read-only.
func (s *Session) Query(ctx context.Context, req script.Request) (*result.Result, error) {
	return s.Run(ctx, req.Script, req.Params, true)
}

// Mutate runs req with writes allowed.
func (s *Session) Mutate(ctx context.Context, req script.Request) (*result.Result, error) {
	return s.Run(ctx, req.Script, req.Params, false)
}

// Execute runs req, allowing writes only when req.Mutates is set.
func (s *Session) Execute(ctx context.Context, req script.Request) (*result.Result, error) {
	return s.Run(ctx, req.Script, req.Params, !req.Mutates)
}
