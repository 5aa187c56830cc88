package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// EngineCall captures one call made against a MemoryEngine.
type EngineCall struct {
	Method    string
	Script    string
	Params    string
	Immutable bool

	// Arg holds the path or JSON argument of non-script calls.
	Arg string
}

// MemoryEngine is an in-memory engine for unit tests. It records every call
// and answers Run with canned envelopes. It has no query semantics.
type MemoryEngine struct {
	mu        sync.Mutex
	t         testing.TB
	calls     []EngineCall
	responses []string
	exports   []string
	err       error
	closes    int
}

// NewMemoryEngine creates an engine answering every Run with an empty
// success envelope.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{}
}

// FailOnUse makes every call report a test error. Use it to prove that a
// code path never reaches the engine.
func (m *MemoryEngine) FailOnUse(t testing.TB) *MemoryEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
	return m
}

// WithError makes every subsequent call fail with err.
func (m *MemoryEngine) WithError(err error) *MemoryEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// PushResponse queues a raw envelope for the next Run.
func (m *MemoryEngine) PushResponse(raw string) *MemoryEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, raw)
	return m
}

// PushResult queues a success envelope with the given table.
func (m *MemoryEngine) PushResult(headers []string, rows [][]any) *MemoryEngine {
	return m.PushResponse(SuccessEnvelope(headers, rows))
}

// PushFailure queues a failure envelope with the given display message.
func (m *MemoryEngine) PushFailure(display string) *MemoryEngine {
	data, _ := json.Marshal(map[string]any{"ok": false, "display": display})
	return m.PushResponse(string(data))
}

// PushExport queues a payload for the next ExportRelations.
func (m *MemoryEngine) PushExport(raw string) *MemoryEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = append(m.exports, raw)
	return m
}

// SuccessEnvelope renders a success envelope.
func SuccessEnvelope(headers []string, rows [][]any) string {
	if headers == nil {
		headers = []string{}
	}
	if rows == nil {
		rows = [][]any{}
	}
	data, err := json.Marshal(map[string]any{"ok": true, "headers": headers, "rows": rows})
	if err != nil {
		panic(err)
	}
	return string(data)
}

// record logs the call and returns the configured error. Callers hold mu.
func (m *MemoryEngine) record(call EngineCall) error {
	if m.t != nil {
		m.t.Errorf("engine invoked unexpectedly: %s %q", call.Method, call.Script+call.Arg)
	}
	m.calls = append(m.calls, call)
	return m.err
}

func (m *MemoryEngine) Run(_ context.Context, script, paramsJSON string, immutable bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(EngineCall{Method: "run", Script: script, Params: paramsJSON, Immutable: immutable}); err != nil {
		return "", err
	}
	if len(m.responses) == 0 {
		return SuccessEnvelope(nil, nil), nil
	}
	raw := m.responses[0]
	m.responses = m.responses[1:]
	return raw, nil
}

func (m *MemoryEngine) ExportRelations(_ context.Context, relationsJSON string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record(EngineCall{Method: "export", Arg: relationsJSON}); err != nil {
		return "", err
	}
	if len(m.exports) == 0 {
		return `{"ok":true,"data":{}}`, nil
	}
	raw := m.exports[0]
	m.exports = m.exports[1:]
	return raw, nil
}

func (m *MemoryEngine) ImportRelations(_ context.Context, dataJSON string) error {
	return m.simple("import", dataJSON)
}

func (m *MemoryEngine) Backup(_ context.Context, path string) error {
	return m.simple("backup", path)
}

func (m *MemoryEngine) Restore(_ context.Context, path string) error {
	return m.simple("restore", path)
}

func (m *MemoryEngine) ImportFromBackup(_ context.Context, path, relationsJSON string) error {
	return m.simple("import_from_backup", path+" "+relationsJSON)
}

func (m *MemoryEngine) simple(method, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(EngineCall{Method: method, Arg: arg})
}

// Close counts closes; it never fails and is not recorded as a call.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Calls returns a snapshot of recorded calls.
func (m *MemoryEngine) Calls() []EngineCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EngineCall(nil), m.calls...)
}

// CloseCount returns how many times Close was called.
func (m *MemoryEngine) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
