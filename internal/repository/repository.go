/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package repository stores the mod library (Games, Profiles, Mods, ModEntries and Tools)
// in an embedded graph and keeps each entity's directory under the library dir in step
// with it. Entities are handed out as lightweight handles; every method re-reads the
// store, so a handle always reflects the current state or fails with ErrRemovedEntity.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"barnacle/internal/graph"
	applog "barnacle/internal/log"
)

// CurrentModelVersion is the data model this build reads and writes.
const CurrentModelVersion = 2

// DBFileName is the graph database file inside the state dir.
const DBFileName = "data.db"

// Config tells the repository where things live.
type Config struct {
	LibraryDir string
	StateDir   string
	Logger     *slog.Logger
}

// Repository is the entry point to the mod library.
type Repository struct {
	store      *graph.Store
	libraryDir string
	log        *slog.Logger
}

// Open opens the library database in cfg.StateDir, creating and migrating it as needed.
func Open(cfg Config) (*Repository, error) {
	if cfg.LibraryDir == "" || cfg.StateDir == "" {
		return nil, errors.New("library and state dir are required")
	}
	l := cfg.Logger
	if l == nil {
		l = applog.WithComponent("repository")
	}
	if err := os.MkdirAll(cfg.LibraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := graph.Open(filepath.Join(cfg.StateDir, DBFileName), storeOptions(l))
	if err != nil {
		return nil, wrap("open repository", err)
	}
	l.Info("repository opened", slog.String("library", cfg.LibraryDir), slog.String("db", store.Path()))
	return &Repository{store: store, libraryDir: cfg.LibraryDir, log: l}, nil
}

// OpenMemory returns a repository backed by an in-memory store. Entity directories are
// still created under libraryDir.
func OpenMemory(libraryDir string) (*Repository, error) {
	l := applog.WithComponent("repository")
	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := graph.OpenMemory(storeOptions(l))
	if err != nil {
		return nil, wrap("open repository", err)
	}
	return &Repository{store: store, libraryDir: libraryDir, log: l}, nil
}

func storeOptions(l *slog.Logger) graph.Options {
	return graph.Options{
		ModelVersion: CurrentModelVersion,
		Migrations:   migrations,
		Logger:       l.With(slog.String("component", "graph")),
	}
}

// Close releases the database.
func (r *Repository) Close() error { return r.store.Close() }

// LibraryDir returns the root directory holding every Game's files.
func (r *Repository) LibraryDir() string { return r.libraryDir }

// ModelVersion returns the data model version recorded in the database.
func (r *Repository) ModelVersion() (int64, error) {
	v, err := r.store.ModelVersion()
	return v, wrap("model version", err)
}

// Backup writes a copy of the database next to it.
func (r *Repository) Backup() (string, error) {
	p, err := r.store.Backup()
	return p, wrap("backup", err)
}

// ActiveProfile is the active Profile of the active Game.
func (r *Repository) ActiveProfile() (Profile, bool, error) {
	g, ok, err := r.ActiveGame()
	if err != nil || !ok {
		return Profile{}, false, err
	}
	return g.ActiveProfile()
}

// graph helpers shared by the entity files; all of them run inside a caller's transaction

func member(tx *graph.Tx, root string) ([]graph.ID, error) {
	id, err := tx.Alias(root)
	if err != nil {
		return nil, err
	}
	return tx.Targets(id, graph.Member)
}

func isMember(tx *graph.Tx, root string, addr graph.ID) (bool, error) {
	id, err := tx.Alias(root)
	if err != nil {
		return false, err
	}
	src, err := tx.Sources(addr, graph.Member)
	if err != nil {
		return false, err
	}
	for _, s := range src {
		if s == id {
			return true, nil
		}
	}
	return false, nil
}

// owned lists the children of parent that are members of root, in insertion order.
func owned(tx *graph.Tx, parent graph.ID, root string) ([]graph.ID, error) {
	children, err := tx.Targets(parent, graph.Owns)
	if err != nil {
		return nil, err
	}
	out := children[:0]
	for _, c := range children {
		ok, err := isMember(tx, root, c)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// owner returns the single parent of child.
func owner(tx *graph.Tx, child graph.ID) (graph.ID, error) {
	parents, err := tx.Sources(child, graph.Owns)
	if err != nil {
		return 0, err
	}
	if len(parents) != 1 {
		return 0, corrupt("node %d has %d owners", child, len(parents))
	}
	return parents[0], nil
}

// named returns the entity called name among the kind targets of from that belong to
// root. The match is looked up by value rather than by reading every sibling.
func named(tx *graph.Tx, from graph.ID, kind graph.EdgeKind, root, name string) (graph.ID, bool, error) {
	ids, err := tx.FindByValue(from, kind, fieldName, graph.String(name))
	if err != nil {
		return 0, false, err
	}
	for _, id := range ids {
		ok, err := isMember(tx, root, id)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// insertEntity allocates a Uid, creates the node and links it under its root.
func insertEntity(tx *graph.Tx, root string, values map[string]graph.Value) (EntityID, error) {
	uid, err := allocUid(tx)
	if err != nil {
		return EntityID{}, err
	}
	values[fieldUid] = graph.Uint(uint64(uid))
	addr, err := tx.InsertNode(values)
	if err != nil {
		return EntityID{}, err
	}
	rootID, err := tx.Alias(root)
	if err != nil {
		return EntityID{}, err
	}
	if err := tx.InsertEdge(rootID, addr, graph.Member); err != nil {
		return EntityID{}, err
	}
	return EntityID{addr: addr, uid: uid}, nil
}

func contains(ids []graph.ID, id graph.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// renameDir moves oldDir to newDir when both differ and oldDir exists.
func renameDir(oldDir, newDir string) error {
	if oldDir == newDir {
		return nil
	}
	if _, err := os.Stat(oldDir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if _, err := os.Stat(newDir); err == nil {
		return fmt.Errorf("rename dir: %w", &os.PathError{Op: "rename", Path: newDir, Err: os.ErrExist})
	}
	if err := os.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
		return fmt.Errorf("rename dir: %w", err)
	}
	if err := moveDir(oldDir, newDir); err != nil {
		return fmt.Errorf("rename dir: %w", err)
	}
	return nil
}

// moveDir is os.Rename; tests swap it to observe the lock state during the move.
var moveDir = os.Rename

// discard removes an entity whose node was committed but whose directory could not be
// set up afterwards, and returns cause annotated with op.
func (r *Repository) discard(op string, id EntityID, cause error) error {
	err := r.store.Update(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		return tx.RemoveNode(addr)
	})
	if err != nil && !errors.Is(err, ErrRemovedEntity) {
		r.log.Error("could not undo add", slog.String("op", op), slog.String("entity", id.String()), slog.Any("err", err))
	}
	return wrap(op, cause)
}

// restoreName puts old back after a committed rename whose directory move failed. A name
// changed again in the meantime is left alone.
func (r *Repository) restoreName(op string, id EntityID, old, name string, cause error) error {
	err := r.store.Update(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		cur, err := readField[string](tx, addr, fieldName)
		if err != nil || cur != name {
			return err
		}
		return writeField(tx, addr, fieldName, old)
	})
	if err != nil {
		r.log.Error("could not undo rename", slog.String("op", op), slog.String("entity", id.String()), slog.Any("err", err))
	}
	return wrap(op, cause)
}
