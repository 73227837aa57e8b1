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
	"os"
	"path/filepath"
	"testing"

	"barnacle/internal/graph"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := OpenMemory(filepath.Join(t.TempDir(), "library"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func mustGame(t *testing.T, r *Repository, name string) Game {
	t.Helper()
	g, err := r.AddGame(name, CreationEngine)
	if err != nil {
		t.Fatalf("add game %s: %v", name, err)
	}
	return g
}

func TestAddGameCreatesDirectory(t *testing.T) {
	r := newRepo(t)
	mustGame(t, r, "Skyrim")
	games, err := r.Games()
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("games = %d, want 1", len(games))
	}
	g := games[0]
	if name, _ := g.Name(); name != "Skyrim" {
		t.Fatalf("name = %q", name)
	}
	if kind, _ := g.DeployKind(); kind != CreationEngine {
		t.Fatalf("deploy kind = %v", kind)
	}
	dir, err := g.Dir()
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if dir != filepath.Join(r.LibraryDir(), "skyrim") {
		t.Fatalf("dir = %s", dir)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Fatalf("game dir missing: %v", err)
	}
	if targets, err := g.Targets(); err != nil || len(targets) != 0 {
		t.Fatalf("targets = %v, %v", targets, err)
	}
}

func TestDuplicateNames(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim SE")
	if _, err := r.AddGame("Skyrim SE", Overlay); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate game err = %v", err)
	}
	if _, err := r.AddGame("skyrim se", Overlay); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("same directory err = %v", err)
	}
	if kind, err := g.DeployKind(); err != nil || kind != CreationEngine {
		t.Fatalf("first game changed: %v %v", kind, err)
	}
	if games, _ := r.Games(); len(games) != 1 {
		t.Fatalf("games = %d", len(games))
	}

	if _, err := g.AddProfile("Default"); err != nil {
		t.Fatalf("add profile: %v", err)
	}
	if _, err := g.AddProfile("Default"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate profile err = %v", err)
	}
	other := mustGame(t, r, "Oblivion")
	if _, err := other.AddProfile("Default"); err != nil {
		t.Fatalf("same profile name in another game: %v", err)
	}

	if _, err := g.AddMod("SkyUI", ""); err != nil {
		t.Fatalf("add mod: %v", err)
	}
	if _, err := g.AddMod("SkyUI", ""); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate mod err = %v", err)
	}

	if _, err := r.AddTool("xEdit", "/opt/xedit", ""); err != nil {
		t.Fatalf("add tool: %v", err)
	}
	if _, err := r.AddTool("xEdit", "/opt/other", "-q"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate tool err = %v", err)
	}
}

func TestRemovedGameInvalidatesChildren(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p, _ := g.AddProfile("Default")
	m, _ := g.AddMod("SkyUI", "")
	e, err := p.AddModEntry(m)
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	dir, _ := g.Dir()
	if err := g.Remove(); err != nil {
		t.Fatalf("remove game: %v", err)
	}
	if _, err := g.Name(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("game name err = %v", err)
	}
	if _, err := p.Name(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("profile name err = %v", err)
	}
	if _, err := m.Name(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("mod name err = %v", err)
	}
	if _, err := e.Enabled(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("entry err = %v", err)
	}
	if err := p.Remove(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("second remove err = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("game dir still present: %v", err)
	}
	if _, ok, err := r.ActiveGame(); err != nil || ok {
		t.Fatalf("active game after removing the last = %v %v", ok, err)
	}
}

func TestStaleHandleAfterAddressReuse(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	tool, _ := r.AddTool("LOOT", "/opt/loot", "")
	if err := tool.Remove(); err != nil {
		t.Fatalf("remove tool: %v", err)
	}
	other, _ := r.AddTool("BodySlide", "/opt/bs", "")
	if other.id.addr != tool.id.addr {
		t.Skipf("address not recycled (%d vs %d)", other.id.addr, tool.id.addr)
	}
	if _, err := tool.Name(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("stale handle err = %v", err)
	}
	if name, _ := other.Name(); name != "BodySlide" {
		t.Fatalf("new tool name = %q", name)
	}
	if tool.Equal(other) {
		t.Fatalf("handles with different uids compare equal")
	}
	if !g.Equal(g) {
		t.Fatalf("handle not equal to itself")
	}
}

func TestActiveGamePromotion(t *testing.T) {
	r := newRepo(t)
	g1 := mustGame(t, r, "G1")
	g2 := mustGame(t, r, "G2")
	if ok, _ := g1.IsActive(); !ok {
		t.Fatalf("first game not active")
	}
	if ok, _ := g2.IsActive(); ok {
		t.Fatalf("second game active")
	}
	if err := g1.Remove(); err != nil {
		t.Fatalf("remove g1: %v", err)
	}
	active, ok, err := r.ActiveGame()
	if err != nil || !ok || !active.Equal(g2) {
		t.Fatalf("active = %v %v %v", active.id, ok, err)
	}
	g3 := mustGame(t, r, "G3")
	if err := g3.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if ok, _ := g2.IsActive(); ok {
		t.Fatalf("two active games")
	}
	_ = g3.Remove()
	_ = g2.Remove()
	if _, ok, _ := r.ActiveGame(); ok {
		t.Fatalf("active game with no games")
	}
}

func TestActiveGameSelfHeals(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "G1")
	_ = r.store.Update(func(tx *graph.Tx) error {
		root, _ := tx.Alias(graph.RootActiveGame)
		return tx.RemoveEdgesFrom(root, graph.Active)
	})
	active, ok, err := r.ActiveGame()
	if err != nil || !ok || !active.Equal(g) {
		t.Fatalf("healed active = %v %v", ok, err)
	}
	if ok, _ := g.IsActive(); !ok {
		t.Fatalf("repair not persisted")
	}
}

func TestActiveProfilePromotion(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	if _, ok, err := g.ActiveProfile(); err != nil || ok {
		t.Fatalf("active profile without profiles = %v %v", ok, err)
	}
	p1, _ := g.AddProfile("P1")
	p2, _ := g.AddProfile("P2")
	if ok, _ := p1.IsActive(); !ok {
		t.Fatalf("first profile not active")
	}
	if err := p1.Remove(); err != nil {
		t.Fatalf("remove p1: %v", err)
	}
	active, ok, err := g.ActiveProfile()
	if err != nil || !ok || !active.Equal(p2) {
		t.Fatalf("active = %v %v", ok, err)
	}
	if err := p2.Remove(); err != nil {
		t.Fatalf("remove p2: %v", err)
	}
	if _, ok, _ := g.ActiveProfile(); ok {
		t.Fatalf("active profile after removing all")
	}
}

func TestActiveProfileIsPerGame(t *testing.T) {
	r := newRepo(t)
	g1 := mustGame(t, r, "G1")
	g2 := mustGame(t, r, "G2")
	a1, _ := g1.AddProfile("A")
	b1, _ := g1.AddProfile("B")
	a2, _ := g2.AddProfile("A")
	if ok, _ := a1.IsActive(); !ok {
		t.Fatalf("first profile of another game cleared G1's active profile")
	}
	if err := b1.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if ok, _ := a1.IsActive(); ok {
		t.Fatalf("sibling still active")
	}
	if ok, _ := a2.IsActive(); !ok {
		t.Fatalf("other game's profile lost its active mark")
	}
	got, ok, err := r.ActiveProfile()
	if err != nil || !ok || !got.Equal(b1) {
		t.Fatalf("repository active profile = %v %v", ok, err)
	}
	parent, err := b1.Parent()
	if err != nil || !parent.Equal(g1) {
		t.Fatalf("parent = %v", err)
	}
}

func TestModEntryRemovalKeepsOrder(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p, _ := g.AddProfile("Default")
	names := []string{"M1", "M2", "M3", "M4", "M5", "M6"}
	for _, n := range names {
		m, err := g.AddMod(n, "")
		if err != nil {
			t.Fatalf("add mod %s: %v", n, err)
		}
		if _, err := p.AddModEntry(m); err != nil {
			t.Fatalf("add entry %s: %v", n, err)
		}
	}
	remove := func(pick func([]ModEntry) ModEntry) {
		entries, err := p.ModEntries()
		if err != nil {
			t.Fatalf("entries: %v", err)
		}
		if err := p.RemoveModEntry(pick(entries)); err != nil {
			t.Fatalf("remove entry: %v", err)
		}
	}
	remove(func(es []ModEntry) ModEntry { return es[0] })
	remove(func(es []ModEntry) ModEntry { return es[3] })
	remove(func(es []ModEntry) ModEntry { return es[len(es)-1] })

	assertOrder(t, p, "M2", "M3", "M4")
}

func assertOrder(t *testing.T, p Profile, want ...string) {
	t.Helper()
	entries, mods, err := p.LoadOrder()
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if len(entries) != len(want) || len(mods) != len(want) {
		t.Fatalf("entries = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		name, err := entries[i].Name()
		if err != nil {
			t.Fatalf("entry %d name: %v", i, err)
		}
		if name != w {
			t.Fatalf("entry %d = %s, want %s", i, name, w)
		}
		if mn, _ := mods[i].Name(); mn != w {
			t.Fatalf("mod %d = %s, want %s", i, mn, w)
		}
	}
}

func TestMoveModEntry(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p, _ := g.AddProfile("Default")
	var entries []ModEntry
	for _, n := range []string{"A", "B", "C", "D"} {
		m, _ := g.AddMod(n, "")
		e, err := p.AddModEntry(m)
		if err != nil {
			t.Fatalf("add entry: %v", err)
		}
		entries = append(entries, e)
	}
	if err := p.MoveModEntry(entries[3], 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertOrder(t, p, "D", "A", "B", "C")
	if err := p.MoveModEntry(entries[0], 99); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertOrder(t, p, "D", "B", "C", "A")
	if err := p.MoveModEntry(entries[2], 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertOrder(t, p, "D", "C", "B", "A")

	other, _ := g.AddProfile("Other")
	if err := other.MoveModEntry(entries[0], 0); !errors.Is(err, ErrNotInProfile) {
		t.Fatalf("foreign move err = %v", err)
	}
	if err := other.RemoveModEntry(entries[0]); !errors.Is(err, ErrNotInProfile) {
		t.Fatalf("foreign remove err = %v", err)
	}
	holder, err := entries[0].Profile()
	if err != nil || !holder.Equal(p) {
		t.Fatalf("entry profile = %v", err)
	}
}

func TestModEntryFields(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p, _ := g.AddProfile("Default")
	m, _ := g.AddMod("SkyUI", "")
	e, _ := p.AddModEntry(m)
	if on, err := e.Enabled(); err != nil || !on {
		t.Fatalf("enabled = %v %v", on, err)
	}
	if notes, err := e.Notes(); err != nil || notes != "" {
		t.Fatalf("notes = %q %v", notes, err)
	}
	_ = e.SetEnabled(false)
	_ = e.SetNotes("load after USSEP")
	if on, _ := e.Enabled(); on {
		t.Fatalf("still enabled")
	}
	if notes, _ := e.Notes(); notes != "load after USSEP" {
		t.Fatalf("notes = %q", notes)
	}
	got, err := e.Mod()
	if err != nil || !got.Equal(m) {
		t.Fatalf("entry mod = %v", err)
	}
	if err := e.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if entries, _ := p.ModEntries(); len(entries) != 0 {
		t.Fatalf("entries left: %d", len(entries))
	}
}

func TestAddModEntryFromOtherGame(t *testing.T) {
	r := newRepo(t)
	g1 := mustGame(t, r, "G1")
	g2 := mustGame(t, r, "G2")
	p, _ := g1.AddProfile("Default")
	m, _ := g2.AddMod("Foreign", "")
	if _, err := p.AddModEntry(m); !errors.Is(err, ErrParentGameMismatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestRemoveModDropsEntries(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p1, _ := g.AddProfile("P1")
	p2, _ := g.AddProfile("P2")
	a, _ := g.AddMod("A", "")
	b, _ := g.AddMod("B", "")
	c, _ := g.AddMod("C", "")
	for _, p := range []Profile{p1, p2} {
		for _, m := range []Mod{a, b, c} {
			if _, err := p.AddModEntry(m); err != nil {
				t.Fatalf("add entry: %v", err)
			}
		}
	}
	if err := b.Remove(); err != nil {
		t.Fatalf("remove mod: %v", err)
	}
	assertOrder(t, p1, "A", "C")
	assertOrder(t, p2, "A", "C")
	if mods, _ := g.Mods(); len(mods) != 2 {
		t.Fatalf("mods = %d", len(mods))
	}
}

func TestRenameMovesDirectories(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	p, _ := g.AddProfile("Default")
	if err := g.SetName("Skyrim SE"); err != nil {
		t.Fatalf("rename game: %v", err)
	}
	dir, _ := g.Dir()
	if filepath.Base(dir) != "skyrim_se" {
		t.Fatalf("dir = %s", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("renamed dir missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.LibraryDir(), "skyrim")); !os.IsNotExist(err) {
		t.Fatalf("old dir still present")
	}
	pdir, _ := p.Dir()
	if pdir != filepath.Join(dir, "profiles", "default") {
		t.Fatalf("profile dir = %s", pdir)
	}
	if err := p.SetName("Survival"); err != nil {
		t.Fatalf("rename profile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "profiles", "survival")); err != nil {
		t.Fatalf("profile dir not moved: %v", err)
	}

	mustGame(t, r, "Oblivion")
	if err := g.SetName("Oblivion"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("rename to taken name err = %v", err)
	}
	if name, _ := g.Name(); name != "Skyrim SE" {
		t.Fatalf("name after failed rename = %q", name)
	}
	if err := g.SetName("Skyrim SE"); err != nil {
		t.Fatalf("no-op rename: %v", err)
	}
}

func TestRenameRestoredWhenDirectoryBlocked(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	blocker := filepath.Join(r.LibraryDir(), "skyrim_se")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if err := g.SetName("Skyrim SE"); !errors.Is(err, os.ErrExist) {
		t.Fatalf("rename onto occupied dir err = %v", err)
	}
	if name, _ := g.Name(); name != "Skyrim" {
		t.Fatalf("name after failed move = %q", name)
	}
	if _, err := os.Stat(filepath.Join(r.LibraryDir(), "skyrim")); err != nil {
		t.Fatalf("original dir gone: %v", err)
	}

	p, _ := g.AddProfile("Default")
	pdir, _ := p.Dir()
	if err := os.WriteFile(filepath.Join(filepath.Dir(pdir), "survival"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if err := p.SetName("Survival"); !errors.Is(err, os.ErrExist) {
		t.Fatalf("profile rename err = %v", err)
	}
	if name, _ := p.Name(); name != "Default" {
		t.Fatalf("profile name after failed move = %q", name)
	}
}

func TestAddDiscardedWhenDirectoryCannotBeCreated(t *testing.T) {
	r := newRepo(t)
	if err := os.WriteFile(filepath.Join(r.LibraryDir(), "morrowind"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := r.AddGame("Morrowind", OpenMW); err == nil {
		t.Fatalf("game added over a regular file")
	}
	if games, _ := r.Games(); len(games) != 0 {
		t.Fatalf("game kept after failed mkdir: %d", len(games))
	}
	if _, ok, _ := r.ActiveGame(); ok {
		t.Fatalf("discarded game still active")
	}

	g := mustGame(t, r, "Oblivion")
	gdir, _ := g.Dir()
	if err := os.MkdirAll(filepath.Join(gdir, "profiles"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(gdir, "profiles", "default"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := g.AddProfile("Default"); err == nil {
		t.Fatalf("profile added over a regular file")
	}
	if profiles, _ := g.Profiles(); len(profiles) != 0 {
		t.Fatalf("profile kept after failed mkdir: %d", len(profiles))
	}
	if _, err := g.AddProfile("Other"); err != nil {
		t.Fatalf("add profile after discard: %v", err)
	}
	if p, ok, _ := g.ActiveProfile(); !ok {
		t.Fatalf("no active profile")
	} else if name, _ := p.Name(); name != "Other" {
		t.Fatalf("active profile = %q", name)
	}
}

func TestSearchByName(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	other := mustGame(t, r, "Oblivion")
	p, _ := g.AddProfile("Default")
	m, _ := g.AddMod("Default", "")
	_, _ = other.AddProfile("Survival")
	tool, _ := r.AddTool("LOOT", "/opt/loot", "")

	if got, ok, err := r.SearchGame("Oblivion"); err != nil || !ok || !got.Equal(other) {
		t.Fatalf("search game = %v %v", ok, err)
	}
	if _, ok, err := r.SearchGame("Morrowind"); err != nil || ok {
		t.Fatalf("search missing game = %v %v", ok, err)
	}
	if got, ok, err := g.SearchProfile("Default"); err != nil || !ok || !got.Equal(p) {
		t.Fatalf("search profile = %v %v", ok, err)
	}
	if got, ok, err := g.SearchMod("Default"); err != nil || !ok || !got.Equal(m) {
		t.Fatalf("search mod = %v %v", ok, err)
	}
	if _, ok, err := g.SearchProfile("Survival"); err != nil || ok {
		t.Fatalf("profile of another game found: %v %v", ok, err)
	}
	if got, ok, err := r.SearchTool("LOOT"); err != nil || !ok || !got.Equal(tool) {
		t.Fatalf("search tool = %v %v", ok, err)
	}
}

func TestGameFields(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Morrowind")
	if err := g.SetDeployKind(OpenMW); err != nil {
		t.Fatalf("set deploy kind: %v", err)
	}
	if k, _ := g.DeployKind(); k != OpenMW {
		t.Fatalf("deploy kind = %v", k)
	}
	want := []string{"/games/morrowind/Data Files"}
	if err := g.SetTargets(want); err != nil {
		t.Fatalf("set targets: %v", err)
	}
	got, _ := g.Targets()
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("targets = %v", got)
	}
	found, ok, err := r.SearchGame("Morrowind")
	if err != nil || !ok || !found.Equal(g) {
		t.Fatalf("search = %v %v", ok, err)
	}
	if _, ok, _ := r.SearchGame("Daggerfall"); ok {
		t.Fatalf("found missing game")
	}
}

func TestTools(t *testing.T) {
	r := newRepo(t)
	tool, err := r.AddTool("xEdit", "/opt/xedit/xEdit.exe", "-IKnowWhatImDoing")
	if err != nil {
		t.Fatalf("add tool: %v", err)
	}
	if args, _ := tool.Args(); args != "-IKnowWhatImDoing" {
		t.Fatalf("args = %q", args)
	}
	_ = tool.SetArgs("")
	_ = tool.SetPath("/usr/bin/xedit")
	if p, _ := tool.Path(); p != "/usr/bin/xedit" {
		t.Fatalf("path = %q", p)
	}
	if err := tool.SetName("SSEEdit"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok, _ := r.SearchTool("SSEEdit"); !ok {
		t.Fatalf("renamed tool not found")
	}
	tools, _ := r.Tools()
	if len(tools) != 1 {
		t.Fatalf("tools = %d", len(tools))
	}
	if err := tool.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := tool.Path(); !errors.Is(err, ErrRemovedEntity) {
		t.Fatalf("removed tool err = %v", err)
	}
}

func TestUidsIncrease(t *testing.T) {
	r := newRepo(t)
	a, err := newUid(r.store)
	if err != nil {
		t.Fatalf("uid: %v", err)
	}
	b, _ := newUid(r.store)
	if b != a+1 {
		t.Fatalf("uids %d then %d", a, b)
	}
}

func TestSchemaViolationPanics(t *testing.T) {
	r := newRepo(t)
	g := mustGame(t, r, "Skyrim")
	_ = r.store.Update(func(tx *graph.Tx) error {
		return tx.SetValue(g.id.addr, fieldName, graph.Int(3))
	})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on mistyped field")
		}
	}()
	_, _ = g.Name()
}
