// Package summarystore implements a pluggable persistent cache for
// function summaries (spec.md section 4.11), keyed by function name plus
// argument shape, so interprocedural fixpoints survive across analyzer
// runs instead of being recomputed from scratch every invocation.
//
// Grounded on the teacher's internal/database.DatabaseModule: a
// DSN-scheme-dispatched *sql.DB behind one small CRUD surface
// (DBConnection.Type selects mysql/postgres/sqlite3/sqlserver there; here
// the DSN's own scheme prefix selects the driver, which is the more
// idiomatic Go way to do the same dispatch). internal/summary.State itself
// has no exported fields to marshal (by design: cells and the embedded
// numerical domain are private, reachable only through the Join/Leq/Compose
// combinators spec.md names), so what is persisted here is a Record: the
// caller-supplied, already-reduced-to-plain-data view of a summary (its
// top/bottom flags plus one interval per tracked variable) rather than a
// serialization of the live abstract-value object. A cache hit reconstructs
// nothing on its own; it hands the Record back to the caller, who rebuilds
// whatever *summary.State shape it needs via summary.Top/Bottom/Unchanged
// plus the domain's own Set/AddConstraint operations.
package summarystore

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"absint/internal/aerrors"
)

// Backend names the dispatched driver, mirroring DBConnection.Type.
type Backend string

const (
	MySQL    Backend = "mysql"
	Postgres Backend = "postgres"
	SQLite3  Backend = "sqlite3"  // cgo driver, mattn/go-sqlite3
	SQLite   Backend = "sqlite"   // pure-Go driver, modernc.org/sqlite
	SQLServer Backend = "sqlserver"
)

// VarFact is one tracked variable's interval fact inside a Record, plain
// enough to round-trip through JSON without depending on internal/bound's
// richer (possibly infinite) Bound type; infinities are represented as nil.
type VarFact struct {
	Name string `json:"name"`
	Lo   *string `json:"lo"`
	Hi   *string `json:"hi"`
}

// Record is the persisted, flattened view of one function summary at one
// argument shape.
type Record struct {
	Function   string    `json:"function"`
	ArgShape   string    `json:"arg_shape"`
	Bottom     bool      `json:"bottom"`
	Top        bool      `json:"top"`
	Facts      []VarFact `json:"facts"`
	ComputedAt time.Time `json:"computed_at"`
}

// Store is a summary cache backed by a SQL database, DSN-scheme-dispatched
// the same way the teacher's DatabaseModule.Connect dispatches on
// DBConnection.Type.
type Store struct {
	db      *sql.DB
	backend Backend
}

// backendOf inspects dsn's scheme prefix, mirroring the teacher's
// Type-string dispatch but driven by the connection string itself rather
// than a separately-supplied type tag (the more idiomatic `database/sql`
// convention: the DSN already names its driver).
func backendOf(dsn string) (Backend, string) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return MySQL, strings.TrimPrefix(dsn, "mysql://")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn
	case strings.HasPrefix(dsn, "sqlserver://"):
		return SQLServer, dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return SQLite3, strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return SQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		// A bare path defaults to the pure-Go sqlite driver: no cgo
		// toolchain requirement for the common "just cache to a local
		// file" case.
		return SQLite, dsn
	}
}

func driverName(b Backend) string {
	switch b {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLServer:
		return "sqlserver"
	case SQLite3:
		return "sqlite3"
	default:
		return "sqlite"
	}
}

// Open connects to dsn, selecting the driver from its scheme, and ensures
// the summaries table exists.
func Open(dsn string) (*Store, error) {
	backend, conn := backendOf(dsn)
	db, err := sql.Open(driverName(backend), conn)
	if err != nil {
		return nil, aerrors.Wrap(err, "summarystore: open")
	}
	s := &Store{db: db, backend: backend}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	ddl := `CREATE TABLE IF NOT EXISTS summaries (
		function   TEXT NOT NULL,
		arg_shape  TEXT NOT NULL,
		payload    TEXT NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (function, arg_shape)
	)`
	if _, err := s.db.Exec(ddl); err != nil {
		return aerrors.Wrap(err, "summarystore: migrate")
	}
	return nil
}

// Close closes the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

// Put upserts rec, keyed by (rec.Function, rec.ArgShape). Postgres uses
// ON CONFLICT; other backends use a delete-then-insert, which is sound here
// because every write happens from a single analyzer run with no concurrent
// writer to the same key (spec.md section 5's "writes require exclusion",
// upheld at the caller's orchestrator level, not re-implemented as DB-level
// locking here).
func (s *Store) Put(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return aerrors.Wrap(err, "summarystore: marshal")
	}
	now := rec.ComputedAt
	if now.IsZero() {
		now = time.Now()
	}

	if s.backend == Postgres {
		q := `INSERT INTO summaries (function, arg_shape, payload, computed_at)
		      VALUES ($1, $2, $3, $4)
		      ON CONFLICT (function, arg_shape) DO UPDATE SET payload = $3, computed_at = $4`
		_, err = s.db.Exec(q, rec.Function, rec.ArgShape, string(payload), now)
		if err != nil {
			return aerrors.Wrap(err, "summarystore: put")
		}
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return aerrors.Wrap(err, "summarystore: begin")
	}
	if _, err := tx.Exec(`DELETE FROM summaries WHERE function = ? AND arg_shape = ?`, rec.Function, rec.ArgShape); err != nil {
		tx.Rollback()
		return aerrors.Wrap(err, "summarystore: delete-before-insert")
	}
	if _, err := tx.Exec(`INSERT INTO summaries (function, arg_shape, payload, computed_at) VALUES (?, ?, ?, ?)`,
		rec.Function, rec.ArgShape, string(payload), now); err != nil {
		tx.Rollback()
		return aerrors.Wrap(err, "summarystore: insert")
	}
	return aerrors.Wrap(tx.Commit(), "summarystore: commit")
}

// Get looks up the summary for (function, argShape); ok is false on a
// cache miss (which is not an error — the caller recomputes the summary
// from the function body in that case).
func (s *Store) Get(function, argShape string) (Record, bool, error) {
	q := `SELECT payload FROM summaries WHERE function = ? AND arg_shape = ?`
	if s.backend == Postgres {
		q = `SELECT payload FROM summaries WHERE function = $1 AND arg_shape = $2`
	}
	row := s.db.QueryRow(q, function, argShape)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, aerrors.Wrap(err, "summarystore: get")
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, false, aerrors.Wrap(err, "summarystore: unmarshal")
	}
	return rec, true, nil
}

// Invalidate drops every cached summary for function, used when the
// driver re-analyzes a function whose body changed (e.g. incremental
// re-analysis across a recompile).
func (s *Store) Invalidate(function string) error {
	q := `DELETE FROM summaries WHERE function = ?`
	if s.backend == Postgres {
		q = `DELETE FROM summaries WHERE function = $1`
	}
	_, err := s.db.Exec(q, function)
	return aerrors.Wrap(err, "summarystore: invalidate")
}
