/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"barnacle/internal/archive"
	"barnacle/internal/graph"
)

const (
	profilesDir = "profiles"
	modsDir     = "mods"
)

// Profile is a named load order for one Game. Exactly one Profile per Game is active
// whenever the Game has any.
type Profile struct {
	repo *Repository
	id   EntityID
}

func (p Profile) ID() EntityID { return p.id }

func (p Profile) Equal(o Profile) bool { return p.id.Equal(o.id) }

// AddProfile creates a Profile of g. Names are unique per Game. The first Profile of a
// Game becomes its active one.
func (g Game) AddProfile(name string) (Profile, error) {
	var p Profile
	var dir string
	err := g.repo.store.Update(func(tx *graph.Tx) error {
		game, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		siblings, err := owned(tx, game, graph.RootProfiles)
		if err != nil {
			return err
		}
		if err := checkName(tx, siblings, name, 0); err != nil {
			return err
		}
		id, err := insertEntity(tx, graph.RootProfiles, map[string]graph.Value{fieldName: graph.String(name)})
		if err != nil {
			return err
		}
		if err := tx.InsertEdge(game, id.addr, graph.Owns); err != nil {
			return err
		}
		if _, ok, err := activeProfileOf(tx, game); err != nil {
			return err
		} else if !ok {
			if err := setActiveAmong(tx, graph.RootActiveProfile, siblings, id.addr); err != nil {
				return err
			}
		}
		if dir, err = childDir(tx, g.repo.libraryDir, id.addr, profilesDir); err != nil {
			return err
		}
		p = Profile{repo: g.repo, id: id}
		return nil
	})
	if err != nil {
		return Profile{}, wrap("add profile", err)
	}
	if err := makeDir(dir); err != nil {
		return Profile{}, g.repo.discard("add profile", p.id, fmt.Errorf("create profile dir: %w", err))
	}
	g.repo.log.Info("created profile", slog.String("profile", name), slog.String("dir", dir))
	return p, nil
}

func (p Profile) Name() (string, error) { return getField[string](p.repo.store, p.id, fieldName) }

// SetName renames the Profile and its directory. Names stay unique within the Game.
func (p Profile) SetName(name string) error {
	return renameChild(p.repo, "rename profile", p.id, graph.RootProfiles, profilesDir, name)
}

// Parent returns the Game owning the Profile.
func (p Profile) Parent() (Game, error) {
	id, err := parentOf(p.repo, p.id)
	if err != nil {
		return Game{}, wrap("profile parent", err)
	}
	return Game{repo: p.repo, id: id}, nil
}

// Dir returns <game dir>/profiles/<name>.
func (p Profile) Dir() (string, error) {
	var dir string
	err := p.repo.store.View(func(tx *graph.Tx) error {
		addr, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		dir, err = childDir(tx, p.repo.libraryDir, addr, profilesDir)
		return err
	})
	return dir, wrap("profile dir", err)
}

// Remove deletes the Profile, its ModEntries and its directory. When it was the active
// Profile, the first remaining sibling becomes active.
func (p Profile) Remove() error {
	entries, err := p.ModEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := e.Remove(); err != nil && !errors.Is(err, ErrRemovedEntity) {
			return wrap("remove profile", err)
		}
	}
	var name, dir string
	err = p.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		if name, err = readField[string](tx, addr, fieldName); err != nil {
			return err
		}
		if dir, err = childDir(tx, p.repo.libraryDir, addr, profilesDir); err != nil {
			return err
		}
		game, err := owner(tx, addr)
		if err != nil {
			return err
		}
		active, err := activeTargets(tx, graph.RootActiveProfile)
		if err != nil {
			return err
		}
		if err := tx.RemoveNode(addr); err != nil {
			return err
		}
		if !contains(active, addr) {
			return nil
		}
		rest, err := owned(tx, game, graph.RootProfiles)
		if err != nil || len(rest) == 0 {
			return err
		}
		return setActiveAmong(tx, graph.RootActiveProfile, rest, rest[0])
	})
	if err != nil {
		return wrap("remove profile", err)
	}
	if err := archive.RemoveTree(dir); err != nil {
		return wrap("remove profile", fmt.Errorf("remove profile dir: %w", err))
	}
	p.repo.log.Info("removed profile", slog.String("profile", name))
	return nil
}

// Activate makes this the active Profile of its Game. Other Games keep their own.
func (p Profile) Activate() error {
	err := p.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		game, err := owner(tx, addr)
		if err != nil {
			return err
		}
		siblings, err := owned(tx, game, graph.RootProfiles)
		if err != nil {
			return err
		}
		return setActiveAmong(tx, graph.RootActiveProfile, siblings, addr)
	})
	return wrap("activate profile", err)
}

func (p Profile) IsActive() (bool, error) {
	var ok bool
	err := p.repo.store.View(func(tx *graph.Tx) error {
		addr, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		active, err := activeTargets(tx, graph.RootActiveProfile)
		ok = contains(active, addr)
		return err
	})
	return ok, wrap("profile is active", err)
}

// childDir returns <library>/<game>/<sub>/<name> for a Profile or Mod at addr.
func childDir(tx *graph.Tx, libraryDir string, addr graph.ID, sub string) (string, error) {
	game, err := owner(tx, addr)
	if err != nil {
		return "", err
	}
	gameName, err := readField[string](tx, game, fieldName)
	if err != nil {
		return "", err
	}
	name, err := readField[string](tx, addr, fieldName)
	if err != nil {
		return "", err
	}
	return filepath.Join(libraryDir, dirName(gameName), sub, dirName(name)), nil
}

func parentOf(r *Repository, id EntityID) (EntityID, error) {
	var parent EntityID
	err := r.store.View(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		game, err := owner(tx, addr)
		if err != nil {
			return err
		}
		parent, err = loadEntityID(tx, game)
		return err
	})
	return parent, err
}

// renameChild renames a Profile or Mod, keeping names unique among the Game's children of
// the same kind, then moves its directory.
func renameChild(r *Repository, op string, id EntityID, root, sub, name string) error {
	var old, oldDir, newDir string
	err := r.store.Update(func(tx *graph.Tx) error {
		addr, err := id.resolve(tx)
		if err != nil {
			return err
		}
		if old, err = readField[string](tx, addr, fieldName); err != nil || old == name {
			return err
		}
		game, err := owner(tx, addr)
		if err != nil {
			return err
		}
		siblings, err := owned(tx, game, root)
		if err != nil {
			return err
		}
		if err := checkName(tx, siblings, name, addr); err != nil {
			return err
		}
		if oldDir, err = childDir(tx, r.libraryDir, addr, sub); err != nil {
			return err
		}
		newDir = filepath.Join(filepath.Dir(oldDir), dirName(name))
		return writeField(tx, addr, fieldName, name)
	})
	if err != nil {
		return wrap(op, err)
	}
	if old == name {
		return nil
	}
	if err := renameDir(oldDir, newDir); err != nil {
		return r.restoreName(op, id, old, name, err)
	}
	r.log.Info("renamed", slog.String("kind", root), slog.String("from", old), slog.String("to", name))
	return nil
}
