// pkg/store/store.go
// Package store persists songs and report rows in SQLite and keeps the live
// buffers informed through the event bus.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	_ "modernc.org/sqlite"

	"github.com/songledger/songledger/pkg/event"
	"github.com/songledger/songledger/pkg/record"
)

// Store is the SQLite-backed persistence collaborator.
type Store struct {
	path   string
	db     *sql.DB
	lock   *flock.Flock
	logger zerolog.Logger
	noLock bool

	mu     sync.Mutex
	closed bool
	bus    event.Publisher
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithoutLock skips the lock file. Useful for read-only one-shot commands.
func WithoutLock() Option {
	return func(s *Store) {
		s.noLock = true
	}
}

// Open opens (or creates) the database at path, takes the lock file next to
// it and migrates the schema.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Logger()

	if !s.noLock {
		s.lock = flock.New(path + ".lock")
		locked, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("Store opened")
	return s, nil
}

// Close releases the database and the lock file. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.unlock()
	return err
}

func (s *Store) unlock() {
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release lock file")
		}
	}
}

func (s *Store) migrate() error {
	for _, stmt := range createStatements() {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	current := semver.MustParse(SchemaVersion)
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		return err
	case err != nil:
		return err
	}

	v, err := semver.NewVersion(stored)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", stored, err)
	}
	if v.Major() > current.Major() {
		return fmt.Errorf("%w: %s > %s", ErrSchemaTooNew, v, current)
	}
	if v.LessThan(current) {
		s.logger.Info().Str("from", v.String()).Str("to", current.String()).Msg("Upgrading schema version")
		_, err = s.db.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, SchemaVersion)
		return err
	}
	return nil
}

// SchemaVersion returns the version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	return v, err
}

// Rows returns every row of g's table ordered by id.
func (s *Store) Rows(ctx context.Context, g event.Group) ([]record.Record, error) {
	t, err := TableFor(g)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+strings.Join(t.Columns, ", ")+" FROM "+t.Name+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows, len(t.Columns))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one row by id.
func (s *Store) Get(ctx context.Context, g event.Group, id string) (record.Record, error) {
	t, err := TableFor(g)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+strings.Join(t.Columns, ", ")+" FROM "+t.Name+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, &NotFoundError{Table: t.Name, ID: id}
	}
	return scanRecord(rows, len(t.Columns))
}

// Save validates fields and writes them as one row of g's table. Without an
// id a new row is created; with one, the given fields are merged over the
// stored row (or a new row with that id is created). The saved row is
// returned with the id first.
func (s *Store) Save(ctx context.Context, g event.Group, fields map[string]string) (record.Record, error) {
	t, err := TableFor(g)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(t.Columns))
	for k, v := range t.Defaults {
		merged[k] = v
	}
	id := strings.TrimSpace(fields["id"])
	if id != "" {
		existing, err := s.Get(ctx, g, id)
		switch {
		case err == nil:
			for i, c := range t.Columns {
				merged[c] = existing[i]
			}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	for k, v := range fields {
		merged[k] = strings.TrimSpace(v)
	}
	if err := t.validate(merged); err != nil {
		return nil, err
	}

	cols := t.Columns[1:]
	args := make([]any, 0, len(t.Columns))
	var query string
	if id == "" {
		vals, err := t.values(cols, merged)
		if err != nil {
			return nil, err
		}
		args = append(args, vals...)
		query = "INSERT INTO " + t.Name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	} else {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, &ValidationError{Table: t.Name, Problems: map[string]string{"id": reasons["number"]}}
		}
		id = strconv.FormatInt(n, 10)
		vals, err := t.values(cols, merged)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		args = append(args, vals...)
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = c + " = excluded." + c
		}
		query = "INSERT INTO " + t.Name + " (" + strings.Join(t.Columns, ", ") + ") VALUES (" + placeholders(len(t.Columns)) +
			") ON CONFLICT(id) DO UPDATE SET " + strings.Join(sets, ", ")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", t.Name, err)
	}
	if id == "" {
		newID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", t.Name, err)
		}
		id = strconv.FormatInt(newID, 10)
	}
	return s.Get(ctx, g, id)
}

// Delete removes ids from g's table and reports how many rows went away.
func (s *Store) Delete(ctx context.Context, g event.Group, ids []string) (int64, error) {
	t, err := TableFor(g)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+t.Name+" WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, n int) (record.Record, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(record.Record, n)
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[i] = cast.ToString(v)
	}
	return rec, nil
}

// values converts merged fields to query arguments in cols order. Integer
// columns are read as base-10, so "010" is stored as 10.
func (t Table) values(cols []string, merged map[string]string) ([]any, error) {
	out := make([]any, len(cols))
	for i, c := range cols {
		val := merged[c]
		if c != "play_count" {
			out[i] = val
			continue
		}
		if val == "" {
			out[i] = int64(0)
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, &ValidationError{Table: t.Name, Problems: map[string]string{c: reasons["number"]}}
		}
		out[i] = n
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
