// Package symdex maintains a SQLite index of class summaries: one
// snapshot per compiler run, each class recorded with its flags, its
// parents, and its member names. The index serves tooling that inspects
// a world without holding it in memory or diffs member sets across
// runs; it does not reload symbols, pickles do that.
package symdex

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/corvus/sema"
)

var log = commonlog.GetLogger("corvus.symdex")

// ErrNotFound indicates the requested class is not in the snapshot.
var ErrNotFound = errors.New("class not found in index")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	run        INTEGER NOT NULL,
	label      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS classes (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	name    TEXT NOT NULL,
	flags   TEXT NOT NULL,
	parents TEXT NOT NULL,
	PRIMARY KEY (run_id, name)
);
CREATE TABLE IF NOT EXISTS members (
	run_id TEXT NOT NULL REFERENCES runs(id),
	class  TEXT NOT NULL,
	pos    INTEGER NOT NULL,
	name   TEXT NOT NULL,
	kind   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS members_by_name ON members (run_id, name);
`

// Store is a symbol index backed by a SQLite database. ":memory:" gives
// a throwaway in-process index.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates an index database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("symdex: opening database: %w", err)
	}
	// one connection: an in-memory database exists per connection, and
	// the engine is single-threaded anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("symdex: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("symdex: creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Snapshot describes one recorded run.
type Snapshot struct {
	ID        string
	Run       sema.RunID
	Label     string
	CreatedAt time.Time
	Classes   int
}

// ClassRow is one indexed class.
type ClassRow struct {
	Name    string
	Flags   string
	Parents []string
}

// MemberRow is one indexed member.
type MemberRow struct {
	Name string
	Kind string
}

// Member kinds as stored.
const (
	KindClass  = "class"
	KindModule = "module"
	KindMethod = "method"
	KindValue  = "value"
)

// Snapshot records every class reachable from the given roots (the root
// package when none are given) under a fresh snapshot id. Pending
// classes are forced along the way; a completion cycle aborts the
// snapshot and surfaces as an error.
func (s *Store) Snapshot(ctx *sema.Context, label string, roots ...*sema.Symbol) (*Snapshot, error) {
	if len(roots) == 0 {
		roots = []*sema.Symbol{ctx.Defs().RootPackage}
	}
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Run:       ctx.Run(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("symdex: beginning snapshot: %w", err)
	}
	w := &walker{ctx: ctx, tx: tx, snap: snap, seen: make(map[*sema.Symbol]bool)}
	err = sema.CatchCyclic(func() {
		for _, root := range roots {
			if w.err != nil {
				break
			}
			w.visit(root)
		}
	})
	if err == nil {
		err = w.err
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("symdex: snapshot %s: %w", label, err)
	}

	_, err = tx.Exec(
		"INSERT INTO runs (id, run, label, created_at) VALUES (?, ?, ?, ?)",
		snap.ID, uint32(snap.Run), snap.Label, snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("symdex: recording run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("symdex: committing snapshot: %w", err)
	}
	log.Debugf("snapshot %s (%s): %d classes", snap.Label, snap.ID, snap.Classes)
	return snap, nil
}

// walker records classes depth-first. Packages are traversed but not
// recorded; everything else that is a class gets a row.
type walker struct {
	ctx  *sema.Context
	tx   *sql.Tx
	snap *Snapshot
	seen map[*sema.Symbol]bool
	err  error
}

func (w *walker) visit(sym *sema.Symbol) {
	if w.err != nil || !sym.Exists() || !sym.IsClass() || w.seen[sym] {
		return
	}
	w.seen[sym] = true
	ctx := w.ctx
	d := sym.Denot()

	if !d.RawFlags().Is(sema.Package) {
		w.record(sym)
		if w.err != nil {
			return
		}
	}
	sym.Class().Decls(ctx).ForEach(func(m *sema.Symbol) {
		if m.IsClass() {
			w.visit(m)
		}
	})
}

func (w *walker) record(cls *sema.Symbol) {
	ctx := w.ctx
	d := cls.Denot()
	full := ctx.SymFullName(cls)
	flags := d.Flags(ctx).String()

	var parents []string
	for _, p := range cls.Class().DirectParents(ctx) {
		if pc := sema.ClassSymOf(ctx, p); pc.Exists() {
			parents = append(parents, ctx.SymFullName(pc))
		}
	}

	_, err := w.tx.Exec(
		"INSERT OR REPLACE INTO classes (run_id, name, flags, parents) VALUES (?, ?, ?, ?)",
		w.snap.ID, full, flags, strings.Join(parents, " "),
	)
	if err != nil {
		w.err = fmt.Errorf("recording class %s: %w", full, err)
		return
	}

	pos := 0
	cls.Class().Decls(ctx).ForEach(func(m *sema.Symbol) {
		if w.err != nil {
			return
		}
		_, err := w.tx.Exec(
			"INSERT INTO members (run_id, class, pos, name, kind) VALUES (?, ?, ?, ?, ?)",
			w.snap.ID, full, pos, ctx.SymName(m), memberKind(m),
		)
		if err != nil {
			w.err = fmt.Errorf("recording member %s.%s: %w", full, ctx.SymName(m), err)
			return
		}
		pos++
	})
	w.snap.Classes++
}

// memberKind classifies a member from its creation-time flags, so
// recording a class never forces its members.
func memberKind(m *sema.Symbol) string {
	switch {
	case m.IsClass():
		return KindClass
	case m.Denot().RawFlags().Is(sema.Module):
		return KindModule
	case m.Denot().RawFlags().Is(sema.Method):
		return KindMethod
	default:
		return KindValue
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Runs lists the recorded snapshots, most recent first.
func (s *Store) Runs() ([]Snapshot, error) {
	rows, err := s.db.Query("SELECT id, run, label, created_at FROM runs ORDER BY rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("symdex: querying runs: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var run uint32
		var created string
		if err := rows.Scan(&snap.ID, &run, &snap.Label, &created); err != nil {
			return nil, fmt.Errorf("symdex: scanning run: %w", err)
		}
		snap.Run = sema.RunID(run)
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("symdex: parsing run timestamp: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// counts go in a second pass: rows must be drained before the
	// connection can serve another query
	for i := range snaps {
		if err := s.db.QueryRow(
			"SELECT COUNT(*) FROM classes WHERE run_id = ?", snaps[i].ID,
		).Scan(&snaps[i].Classes); err != nil {
			return nil, fmt.Errorf("symdex: counting classes: %w", err)
		}
	}
	return snaps, nil
}

// Classes lists a snapshot's classes by full name.
func (s *Store) Classes(runID string) ([]ClassRow, error) {
	rows, err := s.db.Query(
		"SELECT name, flags, parents FROM classes WHERE run_id = ? ORDER BY name", runID)
	if err != nil {
		return nil, fmt.Errorf("symdex: querying classes: %w", err)
	}
	defer rows.Close()

	var out []ClassRow
	for rows.Next() {
		row, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// Class returns one class summary, or ErrNotFound.
func (s *Store) Class(runID, name string) (*ClassRow, error) {
	row := s.db.QueryRow(
		"SELECT name, flags, parents FROM classes WHERE run_id = ? AND name = ?", runID, name)
	out, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return out, err
}

// Members lists a class's members in declaration order.
func (s *Store) Members(runID, class string) ([]MemberRow, error) {
	rows, err := s.db.Query(
		"SELECT name, kind FROM members WHERE run_id = ? AND class = ? ORDER BY pos",
		runID, class)
	if err != nil {
		return nil, fmt.Errorf("symdex: querying members: %w", err)
	}
	defer rows.Close()

	var out []MemberRow
	for rows.Next() {
		var m MemberRow
		if err := rows.Scan(&m.Name, &m.Kind); err != nil {
			return nil, fmt.Errorf("symdex: scanning member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClassesDeclaring returns the classes that declare a member of the
// given name, sorted.
func (s *Store) ClassesDeclaring(runID, member string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT class FROM members WHERE run_id = ? AND name = ? ORDER BY class",
		runID, member)
	if err != nil {
		return nil, fmt.Errorf("symdex: querying declarations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("symdex: scanning declaration: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(r rowScanner) (*ClassRow, error) {
	var row ClassRow
	var parents string
	if err := r.Scan(&row.Name, &row.Flags, &parents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("symdex: scanning class: %w", err)
	}
	if parents != "" {
		row.Parents = strings.Fields(parents)
	}
	return &row, nil
}
