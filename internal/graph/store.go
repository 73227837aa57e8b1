/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package graph is a small embedded graph database on top of SQLite.
// Nodes are bare addresses carrying typed key/value fields; edges are directed and
// typed by an EdgeKind. Well-known root nodes are reachable by alias. All access goes
// through Store.View (shared) or Store.Update (exclusive, transactional).
package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	applog "barnacle/internal/log"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ID is a node address. Addresses of removed nodes may be handed out again.
type ID int64

// EdgeKind types an edge so that one node can take part in several relations.
type EdgeKind string

const (
	// Member links a root node to every entity of its category.
	Member EdgeKind = "member"
	// Owns links a parent entity to a child it owns.
	Owns EdgeKind = "owns"
	// Next links consecutive elements of an ordered list.
	Next EdgeKind = "next"
	// Refers links an element to an entity it points at without owning it.
	Refers EdgeKind = "refers"
	// Active links a state root node to the entity currently selected.
	Active EdgeKind = "active"
)

// Root node aliases created on first open.
const (
	RootGames         = "games"
	RootProfiles      = "profiles"
	RootMods          = "mods"
	RootModEntries    = "mod_entries"
	RootTools         = "tools"
	RootActiveGame    = "active_game"
	RootActiveProfile = "active_profile"
	RootModelVersion  = "model_version"
	RootNextUID       = "next_uid"
)

// Roots lists every alias bootstrapped by Open, in creation order.
var Roots = []string{
	RootGames, RootProfiles, RootMods, RootModEntries, RootTools,
	RootActiveGame, RootActiveProfile, RootModelVersion, RootNextUID,
}

// Field keys stored on state root nodes.
const (
	FieldNextUID = "next_uid"
	FieldVersion = "version"
)

// ErrNotFound reports a missing node, alias or field.
var ErrNotFound = errors.New("not found")

// Options tunes how a store is opened.
type Options struct {
	// ModelVersion is the data model version the caller understands. Defaults to 1.
	ModelVersion int64
	// Migrations upgrade older stores; each step runs in its own write transaction.
	Migrations []Migration
	Logger     *slog.Logger
}

// Store guards one embedded graph database: any number of concurrent View calls, or a
// single Update, never both.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	log  *slog.Logger
}

var memSeq atomic.Int64

// Open opens (or creates) the graph database file at path, bootstraps root nodes and
// brings the data model up to opts.ModelVersion.
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	return open(dsn, path, opts)
}

// OpenMemory returns an isolated in-memory store, used by tests.
func OpenMemory(opts Options) (*Store, error) {
	dsn := fmt.Sprintf("file:graphmem%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", memSeq.Add(1))
	return open(dsn, "", opts)
}

func open(dsn, path string, opts Options) (*Store, error) {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("graph")
	}
	l = l.With(slog.String("db", displayPath(path)))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises access and keeps an in-memory database alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path, log: l}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if path != "" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	want := opts.ModelVersion
	if want <= 0 {
		want = 1
	}
	stored, err := s.bootstrap(want)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(stored, want, opts.Migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Debug("graph store ready", slog.Int64("model_version", want))
	return s, nil
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS aliases (
			name    TEXT    PRIMARY KEY,
			node_id INTEGER NOT NULL REFERENCES nodes(id)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			id      INTEGER PRIMARY KEY,
			from_id INTEGER NOT NULL REFERENCES nodes(id),
			to_id   INTEGER NOT NULL REFERENCES nodes(id),
			kind    TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id, kind);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id, kind);`,
		`CREATE TABLE IF NOT EXISTS node_values (
			node_id INTEGER NOT NULL REFERENCES nodes(id),
			key     TEXT    NOT NULL,
			kind    INTEGER NOT NULL,
			value,
			PRIMARY KEY(node_id, key)
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure graph schema: %w", err)
		}
	}
	return nil
}

// bootstrap inserts any missing root node and seeds next_uid and the model version.
// It returns the model version found in the store.
func (s *Store) bootstrap(fresh int64) (int64, error) {
	var stored int64
	err := s.Update(func(tx *Tx) error {
		for _, name := range Roots {
			if _, _, err := tx.ensureAlias(name); err != nil {
				return err
			}
		}
		next, err := tx.Alias(RootNextUID)
		if err != nil {
			return err
		}
		if _, err := tx.Value(next, FieldNextUID); errors.Is(err, ErrNotFound) {
			if err := tx.SetValue(next, FieldNextUID, Uint(0)); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		mv, err := tx.Alias(RootModelVersion)
		if err != nil {
			return err
		}
		v, err := tx.Value(mv, FieldVersion)
		switch {
		case errors.Is(err, ErrNotFound):
			stored = fresh
			return tx.SetValue(mv, FieldVersion, Int(fresh))
		case err != nil:
			return err
		default:
			stored = v.Int
			return nil
		}
	})
	if err != nil {
		return 0, fmt.Errorf("bootstrap graph: %w", err)
	}
	return stored, nil
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// View runs fn with shared access. fn must not call View or Update itself.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run(fn, true)
}

// Update runs fn with exclusive access inside one transaction. If fn returns an error
// nothing it did is kept. fn must not call View or Update itself.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(fn, false)
}

func (s *Store) run(fn func(tx *Tx) error, readOnly bool) (err error) {
	ctx := context.Background()
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{ctx: ctx, tx: sqlTx, readOnly: readOnly}
	returned := false
	defer func() {
		if returned {
			return
		}
		// fn panicked or called runtime.Goexit
		_ = sqlTx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()
	ferr := fn(tx)
	returned = true
	if ferr != nil {
		_ = sqlTx.Rollback()
		return ferr
	}
	if readOnly {
		// nothing to keep; rollback ends the read transaction
		_ = sqlTx.Rollback()
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ModelVersion returns the data model version recorded in the store.
func (s *Store) ModelVersion() (int64, error) {
	var v int64
	err := s.View(func(tx *Tx) error {
		id, err := tx.Alias(RootModelVersion)
		if err != nil {
			return err
		}
		val, err := tx.Value(id, FieldVersion)
		if err != nil {
			return err
		}
		v = val.Int
		return nil
	})
	return v, err
}

// BackupPath returns the timestamped backup file name used for the store at t.
func BackupPath(dbPath string, t time.Time) string {
	base := filepath.Base(dbPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.Join(filepath.Dir(dbPath), fmt.Sprintf("%s-%s%s.bak", stem, t.Format("20060102-150405"), ext))
}

// Backup writes a consistent copy of the database next to it and returns its path.
func (s *Store) Backup() (string, error) {
	if s.path == "" {
		return "", errors.New("in-memory store has no backup location")
	}
	path := BackupPath(s.path, time.Now())
	if err := s.BackupTo(path); err != nil {
		return "", err
	}
	return path, nil
}

// BackupTo writes a consistent copy of the database to path. An existing file is replaced.
func (s *Store) BackupTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure backup dir: %w", err)
	}
	_ = os.Remove(path)
	if _, err := s.db.ExecContext(context.Background(), "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	s.log.Info("database backup written", slog.String("path", path))
	return nil
}
