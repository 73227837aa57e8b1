/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"barnacle/internal/archive"
	"barnacle/internal/graph"
)

// Mod is an installed mod of one Game. Its files live read-only in
// <game dir>/mods/<name>.
type Mod struct {
	repo *Repository
	id   EntityID
}

func (m Mod) ID() EntityID { return m.id }

func (m Mod) Equal(o Mod) bool { return m.id.Equal(o.id) }

// AddMod creates a Mod of g. A non-empty sourcePath (archive or directory) is unpacked
// into the Mod's directory, which is then made read-only; otherwise the directory
// starts out empty. Unpacking happens before the Mod is recorded, so the store stays
// available while large archives are read.
func (g Game) AddMod(name, sourcePath string) (Mod, error) {
	var staged string
	if sourcePath != "" {
		s, err := g.repo.stage(sourcePath)
		if err != nil {
			return Mod{}, wrap("add mod", err)
		}
		staged = s
	}
	dropStage := func() {
		if staged != "" {
			_ = archive.RemoveTree(staged)
		}
	}

	var m Mod
	var dir string
	err := g.repo.store.Update(func(tx *graph.Tx) error {
		game, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		siblings, err := owned(tx, game, graph.RootMods)
		if err != nil {
			return err
		}
		if err := checkName(tx, siblings, name, 0); err != nil {
			return err
		}
		id, err := insertEntity(tx, graph.RootMods, map[string]graph.Value{fieldName: graph.String(name)})
		if err != nil {
			return err
		}
		if err := tx.InsertEdge(game, id.addr, graph.Owns); err != nil {
			return err
		}
		if dir, err = childDir(tx, g.repo.libraryDir, id.addr, modsDir); err != nil {
			return err
		}
		m = Mod{repo: g.repo, id: id}
		return nil
	})
	if err != nil {
		dropStage()
		return Mod{}, wrap("add mod", err)
	}
	if err := place(staged, dir); err != nil {
		dropStage()
		return Mod{}, g.repo.discard("add mod", m.id, err)
	}
	g.repo.log.Info("added mod", slog.String("mod", name), slog.String("source", sourcePath))
	return m, nil
}

// extract is archive.Extract; tests swap it to observe the lock state during unpacking.
var extract = archive.Extract

// stage unpacks src into a fresh directory under the library dir, on the same volume
// as its final place.
func (r *Repository) stage(src string) (string, error) {
	dir, err := os.MkdirTemp(r.libraryDir, ".install-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	if err := extract(src, dir); err != nil {
		_ = archive.RemoveTree(dir)
		return "", fmt.Errorf("install mod: %w", err)
	}
	return dir, nil
}

// place moves a staged tree to dir and locks it, or creates an empty dir when nothing
// was staged.
func place(staged, dir string) error {
	if staged == "" {
		if err := makeDir(dir); err != nil {
			return fmt.Errorf("create mod dir: %w", err)
		}
		return nil
	}
	if err := os.Chmod(staged, 0o755); err != nil {
		return fmt.Errorf("install mod: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("install mod: %w", err)
	}
	if err := moveDir(staged, dir); err != nil {
		return fmt.Errorf("install mod: %w", err)
	}
	if err := archive.SetTreeReadOnly(dir); err != nil {
		_ = archive.RemoveTree(dir)
		return fmt.Errorf("protect mod dir: %w", err)
	}
	return nil
}

func (m Mod) Name() (string, error) { return getField[string](m.repo.store, m.id, fieldName) }

// SetName renames the Mod and its directory. Names stay unique within the Game.
func (m Mod) SetName(name string) error {
	return renameChild(m.repo, "rename mod", m.id, graph.RootMods, modsDir, name)
}

// Parent returns the Game owning the Mod.
func (m Mod) Parent() (Game, error) {
	id, err := parentOf(m.repo, m.id)
	if err != nil {
		return Game{}, wrap("mod parent", err)
	}
	return Game{repo: m.repo, id: id}, nil
}

func (m Mod) Dir() (string, error) {
	var dir string
	err := m.repo.store.View(func(tx *graph.Tx) error {
		addr, err := m.id.resolve(tx)
		if err != nil {
			return err
		}
		dir, err = childDir(tx, m.repo.libraryDir, addr, modsDir)
		return err
	})
	return dir, wrap("mod dir", err)
}

// Remove deletes the Mod, every ModEntry referring to it in any Profile, and its files.
func (m Mod) Remove() error {
	var name, dir string
	var dropped int
	err := m.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := m.id.resolve(tx)
		if err != nil {
			return err
		}
		if name, err = readField[string](tx, addr, fieldName); err != nil {
			return err
		}
		if dir, err = childDir(tx, m.repo.libraryDir, addr, modsDir); err != nil {
			return err
		}
		entries, err := tx.Sources(addr, graph.Refers)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := spliceOut(tx, e); err != nil {
				return err
			}
		}
		dropped = len(entries)
		return tx.RemoveNode(addr)
	})
	if err != nil {
		return wrap("remove mod", err)
	}
	if err := archive.RemoveTree(dir); err != nil {
		return wrap("remove mod", fmt.Errorf("remove mod dir: %w", err))
	}
	m.repo.log.Info("removed mod", slog.String("mod", name), slog.Int("entries", dropped))
	return nil
}
