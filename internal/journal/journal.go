// Package journal records every script a session carries to the engine in
// an append-only SQLite file, and replays recorded responses.
//
// A Recorder wraps a live session.Engine and appends one Entry per Run;
// pass Record(j, logger) as session.Options.WrapEngine to record a session. A
// Replayer is itself a session.Engine and session.Driver: it answers Run
// with the most recent recorded response whose Fingerprint matches, so a
// session can be driven offline from a journal.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial entries table
// 2 - Added index on entries.session_id
const currentSchemaVersion = 2

// Entry is one recorded script call.
type Entry struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	SessionID string `json:"session_id,omitempty"`
	Script    string `json:"script"`

	// Params is the JSON object sent with the script.
	Params    string `json:"params"`
	Immutable bool   `json:"immutable"`

	Fingerprint string `json:"fingerprint"`

	// Response is the raw envelope the engine returned. Empty when the
	// call failed in transport; Err then holds the failure text.
	Response string `json:"response,omitempty"`
	Err      string `json:"error,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// IDGenerator produces entry identifiers.
type IDGenerator interface {
	Generate() string
}

type uuidV7 struct{}

func (uuidV7) Generate() string { return uuid.Must(uuid.NewV7()).String() }

// Journal is an open journal file.
type Journal struct {
	db    *sql.DB
	clock Sequencer
	ids   IDGenerator
	now   func() time.Time
}

// Option configures Open.
type Option func(*Journal)

// WithSequencer replaces the clock that stamps entry seq numbers.
func WithSequencer(s Sequencer) Option {
	return func(j *Journal) { j.clock = s }
}

// WithIDs replaces the entry ID generator (UUIDv7 by default).
func WithIDs(g IDGenerator) Option {
	return func(j *Journal) { j.ids = g }
}

// WithNow replaces the wall clock used for RecordedAt.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// Open creates or opens a journal at path. ":memory:" gives a private
// in-memory journal.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// journals on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{db: db, ids: uuidV7{}, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	if j.clock == nil {
		var maxSeq sql.NullInt64
		if err := db.QueryRow("SELECT MAX(seq) FROM entries").Scan(&maxSeq); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to read journal position: %w", err)
		}
		j.clock = NewClockAt(maxSeq.Int64)
	}
	return j, nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

// Append stores e. ID, Seq, Fingerprint and RecordedAt are filled in when
// zero. The stored entry is returned.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.Script == "" {
		return Entry{}, errors.New("append entry: empty script")
	}
	if e.Params == "" {
		e.Params = "{}"
	}
	if e.ID == "" {
		e.ID = j.ids.Generate()
	}
	if e.Seq == 0 {
		e.Seq = j.clock.Next()
	}
	if e.Fingerprint == "" {
		e.Fingerprint = Fingerprint(e.Script, e.Params, e.Immutable)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}
	e.RecordedAt = e.RecordedAt.UTC()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entries
		(id, seq, session_id, script, params, immutable, fingerprint, response, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Seq,
		e.SessionID,
		e.Script,
		e.Params,
		e.Immutable,
		e.Fingerprint,
		e.Response,
		e.Err,
		e.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

const entryColumns = `id, seq, session_id, script, params, immutable, fingerprint, response, error, recorded_at`

// List returns entries in seq order. limit <= 0 returns all of them;
// otherwise the most recent limit entries are returned, still in seq order.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = j.db.QueryContext(ctx, `
			SELECT `+entryColumns+` FROM (
				SELECT * FROM entries ORDER BY seq DESC LIMIT ?
			) ORDER BY seq ASC
		`, limit)
	} else {
		rows, err = j.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY seq ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Lookup returns the most recent entry with the given fingerprint.
func (j *Journal) Lookup(ctx context.Context, fingerprint string) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE fingerprint = ?
		ORDER BY seq DESC
		LIMIT 1
	`, fingerprint)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e          Entry
		recordedAt string
	)
	err := s.Scan(&e.ID, &e.Seq, &e.SessionID, &e.Script, &e.Params, &e.Immutable,
		&e.Fingerprint, &e.Response, &e.Err, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry %s: recorded_at: %w", e.ID, err)
	}
	return e, nil
}
