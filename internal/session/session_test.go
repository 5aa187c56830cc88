package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/result"
	"github.com/roach88/cozoq/internal/script"
	"github.com/roach88/cozoq/internal/testutil"
)

// fakeDriver hands out a fixed engine and counts Init calls.
type fakeDriver struct {
	mu       sync.Mutex
	engine   Engine
	initErr  error
	openErr  error
	inits    int
	opened   []string
	optsSeen []string
}

func (d *fakeDriver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	return d.initErr
}

func (d *fakeDriver) Open(_ context.Context, kind Kind, path, optionsJSON string) (Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, string(kind)+":"+path)
	d.optsSeen = append(d.optsSeen, optionsJSON)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.engine, nil
}

func openTest(t *testing.T, eng *testutil.MemoryEngine) *Session {
	t.Helper()
	d := &fakeDriver{engine: eng}
	require.NoError(t, Init(d))
	s, err := Open(context.Background(), d, Options{Kind: KindMem, IDs: testutil.NewSequentialIDs("sess")})
	require.NoError(t, err)
	return s
}

func TestInit_IsIdempotent(t *testing.T) {
	d := &fakeDriver{}
	require.NoError(t, Init(d))
	require.NoError(t, Init(d))
	assert.Equal(t, 1, d.inits)
}

func TestInit_FailureIsSticky(t *testing.T) {
	d := &fakeDriver{initErr: errors.New("no runtime")}

	err := Init(d)
	require.Error(t, err)
	assert.True(t, dberr.IsSessionError(err))
	assert.Equal(t, err, Init(d))
	assert.Equal(t, 1, d.inits)

	_, err = Open(context.Background(), d, Options{})
	assert.ErrorContains(t, err, "not initialised")
}

func TestOpen_RequiresInit(t *testing.T) {
	d := &fakeDriver{engine: testutil.NewMemoryEngine()}
	_, err := Open(context.Background(), d, Options{})
	require.Error(t, err)
	assert.True(t, dberr.IsSessionError(err))
	assert.Empty(t, d.opened)
}

func TestOpen_Validation(t *testing.T) {
	d := &fakeDriver{engine: testutil.NewMemoryEngine()}
	require.NoError(t, Init(d))
	ctx := context.Background()

	_, err := Open(ctx, d, Options{Kind: KindSQLite})
	assert.True(t, dberr.IsUsageError(err))

	_, err = Open(ctx, d, Options{Kind: "leveldb", Path: "x"})
	assert.True(t, dberr.IsUsageError(err))

	s, err := Open(ctx, d, Options{Kind: KindSQLite, Path: "data.db", EngineOptions: map[string]any{"cache": 10}})
	require.NoError(t, err)
	assert.Equal(t, KindSQLite, s.Kind())

	s, err = Open(ctx, d, Options{Path: "ignored.db"})
	require.NoError(t, err)
	assert.Equal(t, KindMem, s.Kind())

	assert.Equal(t, []string{"sqlite:data.db", "mem:"}, d.opened)
	assert.Equal(t, []string{`{"cache":10}`, "{}"}, d.optsSeen)
}

func TestOpen_DriverFailureIsSessionError(t *testing.T) {
	cause := errors.New("disk full")
	d := &fakeDriver{openErr: cause}
	require.NoError(t, Init(d))

	_, err := Open(context.Background(), d, Options{Kind: KindMem})
	require.Error(t, err)
	assert.True(t, dberr.IsSessionError(err))
	assert.ErrorIs(t, err, cause)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" SQLite ")
	require.NoError(t, err)
	assert.Equal(t, KindSQLite, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindMem, k)

	_, err = ParseKind("redis")
	assert.Error(t, err)
}

func TestSession_QueryDecodesResult(t *testing.T) {
	eng := testutil.NewMemoryEngine().PushResult([]string{"a", "b"}, [][]any{{1, 2}})
	s := openTest(t, eng)

	res, err := s.Query(context.Background(), script.Request{Script: "?[a, b] <- [[1, 2]]"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Columns())

	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Immutable)
	assert.Equal(t, "{}", calls[0].Params)
	assert.Equal(t, "sess-0001", s.ID())
}

func TestSession_ExecuteRoutesOnMutates(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)
	ctx := context.Background()

	req, err := script.Upsert("users", []map[string]any{{"id": 1, "name": "Alice"}})
	require.NoError(t, err)
	_, err = s.Execute(ctx, req)
	require.NoError(t, err)

	_, err = s.Execute(ctx, script.ListRelations())
	require.NoError(t, err)

	_, err = s.Mutate(ctx, script.Request{Script: "?[x] <- [[$v]]", Params: map[string]any{"v": "y"}})
	require.NoError(t, err)

	calls := eng.Calls()
	require.Len(t, calls, 3)
	assert.False(t, calls[0].Immutable)
	assert.Equal(t, "?[id, name] <- [[1, \"Alice\"]]\n:put users {id, name}", calls[0].Script)
	assert.True(t, calls[1].Immutable)
	assert.False(t, calls[2].Immutable)
	assert.Equal(t, `{"v":"y"}`, calls[2].Params)
}

func TestSession_EngineFailureIsQueryError(t *testing.T) {
	eng := testutil.NewMemoryEngine().PushFailure("syntax error")
	s := openTest(t, eng)

	_, err := s.Run(context.Background(), "?[", nil, true)
	var qe *dberr.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "syntax error", qe.Message)
	assert.False(t, dberr.IsSessionError(err))
}

func TestSession_TransportFailureIsSessionError(t *testing.T) {
	cause := errors.New("bridge crashed")
	eng := testutil.NewMemoryEngine().WithError(cause)
	s := openTest(t, eng)

	_, err := s.Run(context.Background(), "?[a] <- [[1]]", nil, true)
	require.Error(t, err)
	assert.True(t, dberr.IsSessionError(err))
	assert.ErrorIs(t, err, cause)
}

func TestSession_ClassifiedTransportErrorsPassThrough(t *testing.T) {
	qe := dberr.NewQueryError("already decoded", "{}")
	eng := testutil.NewMemoryEngine().WithError(qe)
	s := openTest(t, eng)

	_, err := s.Run(context.Background(), "x", nil, true)
	assert.Same(t, qe, err)
}

func TestSession_BadParamsAreUsageErrors(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)

	_, err := s.Run(context.Background(), "x", map[string]any{"c": make(chan int)}, true)
	assert.True(t, dberr.IsUsageError(err))
	assert.Empty(t, eng.Calls())
}

func TestSession_ClosedSessionNeverReachesEngine(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)
	require.NoError(t, s.Close())
	eng.FailOnUse(t)

	ctx := context.Background()
	ops := map[string]func() error{
		"run": func() error { _, err := s.Run(ctx, "x", nil, true); return err },
		"query": func() error {
			_, err := s.Query(ctx, script.ListRelations())
			return err
		},
		"mutate":  func() error { _, err := s.Mutate(ctx, script.Compact()); return err },
		"execute": func() error { _, err := s.Execute(ctx, script.Noop()); return err },
		"export":  func() error { _, err := s.Export(ctx, "users"); return err },
		"import":  func() error { return s.Import(ctx, `{"users":{}}`) },
		"backup":  func() error { return s.Backup(ctx, "b.db") },
		"restore": func() error { return s.Restore(ctx, "b.db") },
		"import_from_backup": func() error {
			return s.ImportFromBackup(ctx, "b.db", "users")
		},
		"upsert": func() error {
			_, err := s.Upsert(ctx, "users", []map[string]any{{"id": 1}})
			return err
		},
		"delete": func() error {
			_, err := s.Delete(ctx, "users", []string{"id"}, []map[string]any{{"id": 1}})
			return err
		},
		"create": func() error {
			return s.CreateRelation(ctx, "users", []script.Column{{Name: "id"}}, nil)
		},
		"relations": func() error { _, err := s.Relations(ctx); return err },
		"kill":      func() error { return s.Kill(ctx, 1) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, dberr.IsSessionError(err))
			assert.True(t, dberr.IsClosed(err))
		})
	}
	assert.Empty(t, eng.Calls())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)

	assert.False(t, s.IsClosed())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.Equal(t, 1, eng.CloseCount())
}

func TestSession_ConcurrentCallsAndClose(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Query(ctx, script.Noop())
			if err != nil {
				assert.True(t, dberr.IsClosed(err), "unexpected error: %v", err)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()

	assert.True(t, s.IsClosed())
	assert.Equal(t, 1, eng.CloseCount())
}

// blockingEngine parks Run until released and records whether any call
// reached it after Close.
type blockingEngine struct {
	*testutil.MemoryEngine
	entered   chan struct{}
	release   chan struct{}
	closed    atomic.Bool
	afterUsed atomic.Bool
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{
		MemoryEngine: testutil.NewMemoryEngine(),
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
}

func (e *blockingEngine) Run(ctx context.Context, script, paramsJSON string, immutable bool) (string, error) {
	if e.closed.Load() {
		e.afterUsed.Store(true)
	}
	e.entered <- struct{}{}
	<-e.release
	if e.closed.Load() {
		e.afterUsed.Store(true)
	}
	return e.MemoryEngine.Run(ctx, script, paramsJSON, immutable)
}

func (e *blockingEngine) Close() error {
	e.closed.Store(true)
	return e.MemoryEngine.Close()
}

func TestSession_CloseWaitsForInFlightCall(t *testing.T) {
	eng := newBlockingEngine()
	d := &fakeDriver{engine: eng}
	require.NoError(t, Init(d))
	s, err := Open(context.Background(), d, Options{Kind: KindMem, IDs: testutil.NewSequentialIDs("sess")})
	require.NoError(t, err)
	ctx := context.Background()

	runErr := make(chan error, 1)
	go func() {
		_, err := s.Query(ctx, script.Noop())
		runErr <- err
	}()
	<-eng.entered

	closeErr := make(chan error, 1)
	go func() { closeErr <- s.Close() }()
	require.Eventually(t, s.IsClosed, time.Second, time.Millisecond)

	lateErr := make(chan error, 1)
	go func() {
		_, err := s.Query(ctx, script.Noop())
		lateErr <- err
	}()

	select {
	case <-closeErr:
		t.Fatal("Close returned while a call was still inside the engine")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, eng.closed.Load(), "engine closed under an in-flight call")

	close(eng.release)
	require.NoError(t, <-runErr)
	require.NoError(t, <-closeErr)

	err = <-lateErr
	require.Error(t, err)
	assert.True(t, dberr.IsClosed(err))

	assert.True(t, eng.closed.Load())
	assert.False(t, eng.afterUsed.Load(), "engine used after Close")
	assert.Equal(t, 1, eng.CloseCount())
}

func TestSession_CancelledContext(t *testing.T) {
	eng := testutil.NewMemoryEngine().FailOnUse(t)
	s := New(eng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Query(ctx, script.Noop())
	require.Error(t, err)
	assert.True(t, dberr.IsSessionError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_AdminOperations(t *testing.T) {
	eng := testutil.NewMemoryEngine().
		PushExport(`{"ok":true,"data":{"users":{"headers":["id"],"rows":[[1]]}}}`)
	s := openTest(t, eng)
	ctx := context.Background()

	data, err := s.Export(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, data["users"].Headers)

	require.NoError(t, s.ImportRelations(ctx, map[string]result.Relation{
		"users": {Headers: []string{"id"}, Rows: [][]any{{2}}},
	}))
	require.NoError(t, s.Backup(ctx, "b.db"))
	require.NoError(t, s.Restore(ctx, "b.db"))
	require.NoError(t, s.ImportFromBackup(ctx, "b.db", "users", "edges"))

	calls := eng.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, `["users"]`, calls[0].Arg)
	assert.JSONEq(t, `{"users":{"headers":["id"],"rows":[[2]]}}`, calls[1].Arg)
	assert.Equal(t, "backup", calls[2].Method)
	assert.Equal(t, "restore", calls[3].Method)
	assert.Equal(t, `b.db ["users","edges"]`, calls[4].Arg)
}

func TestSession_AdminValidation(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)
	ctx := context.Background()

	assert.True(t, dberr.IsUsageError(s.Backup(ctx, " ")))
	assert.True(t, dberr.IsUsageError(s.Import(ctx, "")))
	assert.True(t, dberr.IsUsageError(s.ImportFromBackup(ctx, "b.db")))
	_, err := s.Export(ctx, "bad name")
	assert.True(t, dberr.IsUsageError(err))
	assert.Empty(t, eng.Calls())
}

func TestSession_AdminFailuresAreSessionErrors(t *testing.T) {
	eng := testutil.NewMemoryEngine().
		PushExport(`{"ok":false,"message":"no such relation"}`)
	s := openTest(t, eng)
	ctx := context.Background()

	_, err := s.Export(ctx, "ghost")
	assert.True(t, dberr.IsSessionError(err))

	eng.WithError(errors.New("read-only filesystem"))
	err = s.Backup(ctx, "b.db")
	assert.True(t, dberr.IsSessionError(err))
	assert.Contains(t, err.Error(), "session error: backup: read-only filesystem")
}

func TestSession_Relations(t *testing.T) {
	eng := testutil.NewMemoryEngine().
		PushResult([]string{"name", "arity"}, [][]any{{"users", 2}, {"edges", 3}})
	s := openTest(t, eng)

	names, err := s.Relations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "edges"}, names)
	assert.Equal(t, "::relations", eng.Calls()[0].Script)
}

func TestSession_CreateAndKill(t *testing.T) {
	eng := testutil.NewMemoryEngine()
	s := openTest(t, eng)
	ctx := context.Background()

	require.NoError(t, s.CreateRelation(ctx, "users", []script.Column{{Name: "id", Type: "Int"}}, nil))
	require.NoError(t, s.Kill(ctx, 7))

	calls := eng.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ":create users {id: Int}", calls[0].Script)
	assert.Equal(t, "::kill 7", calls[1].Script)
	assert.False(t, calls[1].Immutable)

	assert.True(t, dberr.IsUsageError(s.Kill(ctx, -1)))
}
