package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/cozoq/internal/dberr"
)

// Engine is an open connection to the query engine. Implementations carry
// scripts across the process boundary and return the engine's raw JSON.
//
// Run returns the response envelope for both successful and failed scripts;
// a non-nil error means the call itself could not be carried out.
type Engine interface {
	Run(ctx context.Context, script, paramsJSON string, immutable bool) (string, error)

	// ExportRelations takes a JSON array of relation names and returns the
	// export envelope.
	ExportRelations(ctx context.Context, relationsJSON string) (string, error)

	// ImportRelations takes data in the export format.
	ImportRelations(ctx context.Context, dataJSON string) error

	Backup(ctx context.Context, path string) error
	Restore(ctx context.Context, path string) error

	// ImportFromBackup copies the named relations (a JSON array) out of a
	// backup file without restoring the rest of it.
	ImportFromBackup(ctx context.Context, path, relationsJSON string) error

	Close() error
}

// Driver opens engines. Init prepares the process-wide runtime and must
// succeed before Open is called.
type Driver interface {
	Init() error
	Open(ctx context.Context, kind Kind, path, optionsJSON string) (Engine, error)
}

type initState struct {
	once sync.Once
	done atomic.Bool
	err  error
}

// inits tracks initialisation per driver value. Drivers must be comparable
// (typically pointers).
var inits sync.Map

// Init runs driver.Init exactly once per driver. Later calls return the
// result of the first call. Call it at process start so runtime failures
// surface before any session is opened.
func Init(driver Driver) error {
	if driver == nil {
		return dberr.NewSessionError("init", "no driver", nil)
	}
	v, _ := inits.LoadOrStore(driver, &initState{})
	st := v.(*initState)
	st.once.Do(func() {
		if err := driver.Init(); err != nil {
			st.err = dberr.NewSessionError("init", "runtime initialisation failed", err)
		}
		st.done.Store(true)
	})
	return st.err
}

// initialised reports whether Init has completed successfully for driver.
func initialised(driver Driver) bool {
	v, ok := inits.Load(driver)
	if !ok {
		return false
	}
	st := v.(*initState)
	return st.done.Load() && st.err == nil
}

// IDGenerator produces session identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
