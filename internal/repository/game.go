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
	"os"
	"path/filepath"
	"syscall"

	"barnacle/internal/archive"
	"barnacle/internal/graph"
)

const (
	fieldName       = "name"
	fieldDeployKind = "deploy_kind"
	fieldTargets    = "targets"
)

// Game is a handle to a game in the library. It owns Profiles and Mods and has a
// directory named after it under the library dir.
type Game struct {
	repo *Repository
	id   EntityID
}

// ID returns the handle's identity.
func (g Game) ID() EntityID { return g.id }

// Equal reports whether both handles refer to the same Game.
func (g Game) Equal(o Game) bool { return g.id.Equal(o.id) }

// AddGame creates a Game and its directory. The first Game becomes the active one.
func (r *Repository) AddGame(name string, kind DeployKind) (Game, error) {
	var g Game
	dir := filepath.Join(r.libraryDir, dirName(name))
	err := r.store.Update(func(tx *graph.Tx) error {
		games, err := member(tx, graph.RootGames)
		if err != nil {
			return err
		}
		if err := checkName(tx, games, name, 0); err != nil {
			return err
		}
		id, err := insertEntity(tx, graph.RootGames, map[string]graph.Value{
			fieldName:       graph.String(name),
			fieldDeployKind: graph.String(kind.String()),
			fieldTargets:    graph.Strings(nil),
		})
		if err != nil {
			return err
		}
		active, err := activeTargets(tx, graph.RootActiveGame)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			if err := setActive(tx, graph.RootActiveGame, id.addr); err != nil {
				return err
			}
		}
		g = Game{repo: r, id: id}
		return nil
	})
	if err != nil {
		return Game{}, wrap("add game", err)
	}
	if err := makeDir(dir); err != nil {
		return Game{}, r.discard("add game", g.id, fmt.Errorf("create game dir: %w", err))
	}
	r.log.Info("created game", slog.String("game", name), slog.String("deploy_kind", kind.String()))
	return g, nil
}

// Games lists every Game in the order they were added.
func (r *Repository) Games() ([]Game, error) {
	var out []Game
	err := r.store.View(func(tx *graph.Tx) error {
		ids, err := member(tx, graph.RootGames)
		if err != nil {
			return err
		}
		out, err = loadAll(tx, ids, func(id EntityID) Game { return Game{repo: r, id: id} })
		return err
	})
	return out, wrap("list games", err)
}

// SearchGame finds a Game by exact name.
func (r *Repository) SearchGame(name string) (Game, bool, error) {
	var g Game
	var found bool
	err := r.store.View(func(tx *graph.Tx) error {
		root, err := tx.Alias(graph.RootGames)
		if err != nil {
			return err
		}
		addr, ok, err := named(tx, root, graph.Member, graph.RootGames, name)
		if err != nil || !ok {
			return err
		}
		id, err := loadEntityID(tx, addr)
		if err != nil {
			return err
		}
		g, found = Game{repo: r, id: id}, true
		return nil
	})
	if err != nil {
		return Game{}, false, wrap("search game", err)
	}
	return g, found, nil
}

// ActiveGame returns the active Game. If none is marked but Games exist, the first one
// is made active.
func (r *Repository) ActiveGame() (Game, bool, error) {
	var g Game
	var found, heal bool
	err := r.store.View(func(tx *graph.Tx) error {
		active, err := activeTargets(tx, graph.RootActiveGame)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			id, err := loadEntityID(tx, active[0])
			if err != nil {
				return err
			}
			g, found = Game{repo: r, id: id}, true
			return nil
		}
		games, err := member(tx, graph.RootGames)
		heal = len(games) > 0
		return err
	})
	if err != nil {
		return Game{}, false, wrap("active game", err)
	}
	if found || !heal {
		return g, found, nil
	}
	err = r.store.Update(func(tx *graph.Tx) error {
		addr, ok, err := promoteFirst(tx, graph.RootActiveGame, func() ([]graph.ID, error) {
			return member(tx, graph.RootGames)
		})
		if err != nil || !ok {
			return err
		}
		id, err := loadEntityID(tx, addr)
		if err != nil {
			return err
		}
		g, found = Game{repo: r, id: id}, true
		return nil
	})
	if err != nil {
		return Game{}, false, wrap("active game", err)
	}
	if found {
		r.log.Debug("promoted first game to active")
	}
	return g, found, nil
}

func (g Game) Name() (string, error) { return getField[string](g.repo.store, g.id, fieldName) }

// SetName renames the Game and moves its directory along. Names must stay unique.
func (g Game) SetName(name string) error {
	var old string
	err := g.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		if old, err = readField[string](tx, addr, fieldName); err != nil || old == name {
			return err
		}
		games, err := member(tx, graph.RootGames)
		if err != nil {
			return err
		}
		if err := checkName(tx, games, name, addr); err != nil {
			return err
		}
		return writeField(tx, addr, fieldName, name)
	})
	if err != nil {
		return wrap("rename game", err)
	}
	if old == name {
		return nil
	}
	if err := renameDir(filepath.Join(g.repo.libraryDir, dirName(old)), filepath.Join(g.repo.libraryDir, dirName(name))); err != nil {
		return g.repo.restoreName("rename game", g.id, old, name, err)
	}
	g.repo.log.Info("renamed game", slog.String("from", old), slog.String("to", name))
	return nil
}

func (g Game) DeployKind() (DeployKind, error) {
	return getField[DeployKind](g.repo.store, g.id, fieldDeployKind)
}

func (g Game) SetDeployKind(kind DeployKind) error {
	return setField(g.repo.store, g.id, fieldDeployKind, kind)
}

// Targets are the directories mods get deployed into.
func (g Game) Targets() ([]string, error) {
	return getField[[]string](g.repo.store, g.id, fieldTargets)
}

func (g Game) SetTargets(targets []string) error {
	return setField(g.repo.store, g.id, fieldTargets, targets)
}

// Dir returns the Game's directory under the library dir.
func (g Game) Dir() (string, error) {
	name, err := g.Name()
	if err != nil {
		return "", err
	}
	return filepath.Join(g.repo.libraryDir, dirName(name)), nil
}

func (g Game) dirTx(tx *graph.Tx, addr graph.ID) (string, error) {
	name, err := readField[string](tx, addr, fieldName)
	if err != nil {
		return "", err
	}
	return filepath.Join(g.repo.libraryDir, dirName(name)), nil
}

// Remove deletes the Game with all its Profiles and Mods and its directory. If it was
// active, the first remaining Game takes over.
func (g Game) Remove() error {
	profiles, err := g.Profiles()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := p.Remove(); err != nil && !errors.Is(err, ErrRemovedEntity) {
			return wrap("remove game", err)
		}
	}
	mods, err := g.Mods()
	if err != nil {
		return err
	}
	for _, m := range mods {
		if err := m.Remove(); err != nil && !errors.Is(err, ErrRemovedEntity) {
			return wrap("remove game", err)
		}
	}

	var name, dir string
	err = g.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		if name, err = readField[string](tx, addr, fieldName); err != nil {
			return err
		}
		if dir, err = g.dirTx(tx, addr); err != nil {
			return err
		}
		return tx.RemoveNode(addr)
	})
	if err != nil {
		return wrap("remove game", err)
	}
	if err := archive.RemoveTree(dir); err != nil {
		return wrap("remove game", fmt.Errorf("remove game dir: %w", err))
	}
	if _, _, err := g.repo.ActiveGame(); err != nil {
		return err
	}
	g.repo.log.Info("removed game", slog.String("game", name))
	return nil
}

// Activate makes this the active Game.
func (g Game) Activate() error {
	err := g.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		return setActive(tx, graph.RootActiveGame, addr)
	})
	return wrap("activate game", err)
}

func (g Game) IsActive() (bool, error) {
	var ok bool
	err := g.repo.store.View(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		active, err := activeTargets(tx, graph.RootActiveGame)
		ok = contains(active, addr)
		return err
	})
	return ok, wrap("game is active", err)
}

// Profiles lists the Game's Profiles in the order they were added.
func (g Game) Profiles() ([]Profile, error) {
	var out []Profile
	err := g.repo.store.View(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		ids, err := owned(tx, addr, graph.RootProfiles)
		if err != nil {
			return err
		}
		out, err = loadAll(tx, ids, func(id EntityID) Profile { return Profile{repo: g.repo, id: id} })
		return err
	})
	return out, wrap("list profiles", err)
}

// SearchProfile finds one of the Game's Profiles by exact name.
func (g Game) SearchProfile(name string) (Profile, bool, error) {
	id, ok, err := g.searchChild(graph.RootProfiles, name)
	if err != nil || !ok {
		return Profile{}, false, wrap("search profile", err)
	}
	return Profile{repo: g.repo, id: id}, true, nil
}

// Mods lists the Game's Mods in the order they were added.
func (g Game) Mods() ([]Mod, error) {
	var out []Mod
	err := g.repo.store.View(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		ids, err := owned(tx, addr, graph.RootMods)
		if err != nil {
			return err
		}
		out, err = loadAll(tx, ids, func(id EntityID) Mod { return Mod{repo: g.repo, id: id} })
		return err
	})
	return out, wrap("list mods", err)
}

// SearchMod finds one of the Game's Mods by exact name.
func (g Game) SearchMod(name string) (Mod, bool, error) {
	id, ok, err := g.searchChild(graph.RootMods, name)
	if err != nil || !ok {
		return Mod{}, false, wrap("search mod", err)
	}
	return Mod{repo: g.repo, id: id}, true, nil
}

func (g Game) searchChild(root, name string) (EntityID, bool, error) {
	var id EntityID
	var found bool
	err := g.repo.store.View(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		child, ok, err := named(tx, addr, graph.Owns, root, name)
		if err != nil || !ok {
			return err
		}
		id, err = loadEntityID(tx, child)
		found = err == nil
		return err
	})
	return id, found, err
}

// ActiveProfile returns the Game's active Profile. It is absent only when the Game has
// no Profiles; a missing marker is repaired by activating the first Profile.
func (g Game) ActiveProfile() (Profile, bool, error) {
	var p Profile
	var found, heal bool
	err := g.repo.store.View(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		act, ok, err := activeProfileOf(tx, addr)
		if err != nil {
			return err
		}
		if ok {
			id, err := loadEntityID(tx, act)
			if err != nil {
				return err
			}
			p, found = Profile{repo: g.repo, id: id}, true
			return nil
		}
		profiles, err := owned(tx, addr, graph.RootProfiles)
		heal = len(profiles) > 0
		return err
	})
	if err != nil {
		return Profile{}, false, wrap("active profile", err)
	}
	if found || !heal {
		return p, found, nil
	}
	err = g.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := g.id.resolve(tx)
		if err != nil {
			return err
		}
		act, ok, err := activeProfileOf(tx, addr)
		if err != nil {
			return err
		}
		if !ok {
			profiles, err := owned(tx, addr, graph.RootProfiles)
			if err != nil || len(profiles) == 0 {
				return err
			}
			if err := setActiveAmong(tx, graph.RootActiveProfile, profiles, profiles[0]); err != nil {
				return err
			}
			act = profiles[0]
		}
		id, err := loadEntityID(tx, act)
		if err != nil {
			return err
		}
		p, found = Profile{repo: g.repo, id: id}, true
		return nil
	})
	if err != nil {
		return Profile{}, false, wrap("active profile", err)
	}
	return p, found, nil
}

// checkName rejects name if another entity in scope already uses it or maps to the same
// directory. except is the entity being renamed, or 0.
func checkName(tx *graph.Tx, scope []graph.ID, name string, except graph.ID) error {
	want := dirName(name)
	for _, id := range scope {
		if id == except {
			continue
		}
		n, err := readField[string](tx, id, fieldName)
		if err != nil {
			return err
		}
		if n == name || dirName(n) == want {
			return fmt.Errorf("%q: %w", name, ErrDuplicateName)
		}
	}
	return nil
}

func loadAll[T any](tx *graph.Tx, ids []graph.ID, mk func(EntityID) T) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, addr := range ids {
		id, err := loadEntityID(tx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, mk(id))
	}
	return out, nil
}

func activeTargets(tx *graph.Tx, root string) ([]graph.ID, error) {
	id, err := tx.Alias(root)
	if err != nil {
		return nil, err
	}
	return tx.Targets(id, graph.Active)
}

// setActive points root at addr and drops every other marker.
func setActive(tx *graph.Tx, root string, addr graph.ID) error {
	rootID, err := tx.Alias(root)
	if err != nil {
		return err
	}
	if err := tx.RemoveEdgesFrom(rootID, graph.Active); err != nil {
		return err
	}
	return tx.InsertEdge(rootID, addr, graph.Active)
}

// setActiveAmong points root at addr, dropping only markers to nodes in scope. Markers
// held by other Games stay.
func setActiveAmong(tx *graph.Tx, root string, scope []graph.ID, addr graph.ID) error {
	rootID, err := tx.Alias(root)
	if err != nil {
		return err
	}
	for _, s := range scope {
		if err := tx.RemoveEdge(rootID, s, graph.Active); err != nil {
			return err
		}
	}
	return tx.InsertEdge(rootID, addr, graph.Active)
}

// promoteFirst activates the first candidate when root points nowhere.
func promoteFirst(tx *graph.Tx, root string, candidates func() ([]graph.ID, error)) (graph.ID, bool, error) {
	active, err := activeTargets(tx, root)
	if err != nil {
		return 0, false, err
	}
	if len(active) > 0 {
		return active[0], true, nil
	}
	ids, err := candidates()
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}
	if err := setActive(tx, root, ids[0]); err != nil {
		return 0, false, err
	}
	return ids[0], true, nil
}

// activeProfileOf returns the active Profile among game's Profiles.
func activeProfileOf(tx *graph.Tx, game graph.ID) (graph.ID, bool, error) {
	active, err := activeTargets(tx, graph.RootActiveProfile)
	if err != nil {
		return 0, false, err
	}
	profiles, err := owned(tx, game, graph.RootProfiles)
	if err != nil {
		return 0, false, err
	}
	for _, p := range profiles {
		if contains(active, p) {
			return p, true, nil
		}
	}
	return 0, false, nil
}

// makeDir creates dir unless a directory is already there.
func makeDir(dir string) error {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return &os.PathError{Op: "mkdir", Path: dir, Err: syscall.ENOTDIR}
		}
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
