/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(Options{})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBootstrapCreatesRoots(t *testing.T) {
	s := openMem(t)
	err := s.View(func(tx *Tx) error {
		for _, name := range Roots {
			if _, err := tx.Alias(name); err != nil {
				return fmt.Errorf("alias %s: %w", name, err)
			}
		}
		next, _ := tx.Alias(RootNextUID)
		v, err := tx.Value(next, FieldNextUID)
		if err != nil {
			return err
		}
		if v.Kind != KindUint || v.Uint != 0 {
			return fmt.Errorf("next_uid = %v, want 0", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v, err := s.ModelVersion(); err != nil || v != 1 {
		t.Fatalf("model version = %d, %v", v, err)
	}
}

func TestReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = s.Update(func(tx *Tx) error {
		next, _ := tx.Alias(RootNextUID)
		return tx.SetValue(next, FieldNextUID, Uint(7))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	var gamesBefore ID
	_ = s.View(func(tx *Tx) error { gamesBefore, _ = tx.Alias(RootGames); return nil })
	_ = s.Close()

	s, err = Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	var games ID
	var next Value
	err = s.View(func(tx *Tx) (err error) {
		if games, err = tx.Alias(RootGames); err != nil {
			return err
		}
		root, err := tx.Alias(RootNextUID)
		if err != nil {
			return err
		}
		next, err = tx.Value(root, FieldNextUID)
		return err
	})
	if err != nil {
		t.Fatalf("view after reopen: %v", err)
	}
	if games != gamesBefore {
		t.Fatalf("games root moved: %d != %d", games, gamesBefore)
	}
	if next.Uint != 7 {
		t.Fatalf("next_uid after reopen = %v", next)
	}
}

func TestValuesRoundTrip(t *testing.T) {
	s := openMem(t)
	in := map[string]Value{
		"i":  Int(-3),
		"u":  Uint(42),
		"s":  String("Skyrim SE"),
		"b":  Bool(true),
		"l":  Strings([]string{"a.exe", "b.exe"}),
		"l0": Strings(nil),
	}
	var id ID
	if err := s.Update(func(tx *Tx) (err error) { id, err = tx.InsertNode(in); return err }); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got := map[string]Value{}
	var missingErr error
	err := s.View(func(tx *Tx) error {
		for k := range in {
			v, err := tx.Value(id, k)
			if err != nil {
				return fmt.Errorf("value %s: %w", k, err)
			}
			got[k] = v
		}
		_, missingErr = tx.Value(id, "missing")
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for k, want := range in {
		if got[k].String() != want.String() || got[k].Kind != want.Kind {
			t.Fatalf("value %s = %v (%s), want %v (%s)", k, got[k], got[k].Kind, want, want.Kind)
		}
	}
	if !errors.Is(missingErr, ErrNotFound) {
		t.Fatalf("missing key err = %v", missingErr)
	}
}

func TestRemovedAddressIsRecycled(t *testing.T) {
	s := openMem(t)
	var a, b ID
	_ = s.Update(func(tx *Tx) (err error) {
		a, err = tx.InsertNode(map[string]Value{"uid": Uint(1)})
		return err
	})
	_ = s.Update(func(tx *Tx) error { return tx.RemoveNode(a) })
	_ = s.Update(func(tx *Tx) (err error) {
		b, err = tx.InsertNode(map[string]Value{"uid": Uint(2)})
		return err
	})
	if a != b {
		t.Fatalf("expected address %d to be reused, got %d", a, b)
	}
	var v Value
	if err := s.View(func(tx *Tx) (err error) { v, err = tx.Value(b, "uid"); return err }); err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Uint != 2 {
		t.Fatalf("uid at recycled address = %v", v)
	}
}

func TestEdgesKeepInsertionOrder(t *testing.T) {
	s := openMem(t)
	var want, ordered, found, missing, owns, sources, afterRemove, afterClear []ID
	var root ID
	err := s.Update(func(tx *Tx) (err error) {
		if root, err = tx.Alias(RootGames); err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			id, err := tx.InsertNode(map[string]Value{"name": String(string(rune('a' + i)))})
			if err != nil {
				return err
			}
			if err := tx.InsertEdge(root, id, Member); err != nil {
				return err
			}
			want = append(want, id)
		}
		if ordered, err = tx.Targets(root, Member); err != nil {
			return err
		}
		if found, err = tx.FindByValue(root, Member, "name", String("c")); err != nil {
			return err
		}
		if missing, err = tx.FindByValue(root, Member, "name", String("z")); err != nil {
			return err
		}
		if owns, err = tx.Targets(root, Owns); err != nil {
			return err
		}
		if sources, err = tx.Sources(want[1], Member); err != nil {
			return err
		}
		if err := tx.RemoveNode(want[1]); err != nil {
			return err
		}
		if afterRemove, err = tx.Targets(root, Member); err != nil {
			return err
		}
		if err := tx.RemoveEdgesFrom(root, Member); err != nil {
			return err
		}
		afterClear, err = tx.Targets(root, Member)
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ordered) != len(want) {
		t.Fatalf("targets = %v, want %v", ordered, want)
	}
	for i := range want {
		if ordered[i] != want[i] {
			t.Fatalf("targets = %v, want %v", ordered, want)
		}
	}
	if len(found) != 1 || found[0] != want[2] {
		t.Fatalf("find c = %v", found)
	}
	if len(missing) != 0 {
		t.Fatalf("find z = %v", missing)
	}
	if len(owns) != 0 {
		t.Fatalf("owns edges leaked: %v", owns)
	}
	if len(sources) != 1 || sources[0] != root {
		t.Fatalf("sources = %v", sources)
	}
	if len(afterRemove) != 3 {
		t.Fatalf("incident edge not removed: %v", afterRemove)
	}
	if len(afterClear) != 0 {
		t.Fatalf("edges left: %v", afterClear)
	}
}

func TestFindByValueReturnsEveryMatch(t *testing.T) {
	s := openMem(t)
	var a, c, found []ID
	err := s.Update(func(tx *Tx) error {
		root, err := tx.Alias(RootGames)
		if err != nil {
			return err
		}
		for _, name := range []string{"Default", "Other", "Default"} {
			id, err := tx.InsertNode(map[string]Value{"name": String(name)})
			if err != nil {
				return err
			}
			if err := tx.InsertEdge(root, id, Owns); err != nil {
				return err
			}
			a = append(a, id)
		}
		// same text stored under another kind must not match
		id, err := tx.InsertNode(map[string]Value{"name": Strings([]string{"Default"})})
		if err != nil {
			return err
		}
		if err := tx.InsertEdge(root, id, Owns); err != nil {
			return err
		}
		c = append(c, a[0], a[2])
		found, err = tx.FindByValue(root, Owns, "name", String("Default"))
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(found) != len(c) || found[0] != c[0] || found[1] != c[1] {
		t.Fatalf("found = %v, want %v", found, c)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openMem(t)
	boom := errors.New("boom")
	var id ID
	err := s.Update(func(tx *Tx) (err error) {
		id, err = tx.InsertNode(map[string]Value{"name": String("x")})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var ok bool
	if err := s.View(func(tx *Tx) (err error) { ok, err = tx.NodeExists(id); return err }); err != nil {
		t.Fatalf("view: %v", err)
	}
	if ok {
		t.Fatalf("node survived rollback")
	}
}

func TestUpdateRollsBackOnPanic(t *testing.T) {
	s := openMem(t)
	var id ID
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic was swallowed")
			}
		}()
		_ = s.Update(func(tx *Tx) (err error) {
			if id, err = tx.InsertNode(nil); err != nil {
				return err
			}
			panic("schema violation")
		})
	}()
	var ok bool
	if err := s.View(func(tx *Tx) (err error) { ok, err = tx.NodeExists(id); return err }); err != nil {
		t.Fatalf("store unusable after panic: %v", err)
	}
	if ok {
		t.Fatalf("node survived panic rollback")
	}
}

func TestUpdateRollsBackOnGoexit(t *testing.T) {
	s := openMem(t)
	var id ID
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Update(func(tx *Tx) (err error) {
			if id, err = tx.InsertNode(nil); err != nil {
				return err
			}
			runtime.Goexit()
			return nil
		})
	}()
	<-done
	var ok bool
	if err := s.View(func(tx *Tx) (err error) { ok, err = tx.NodeExists(id); return err }); err != nil {
		t.Fatalf("store unusable after goexit: %v", err)
	}
	if ok {
		t.Fatalf("node survived goexit")
	}
}

func TestViewRejectsWrites(t *testing.T) {
	s := openMem(t)
	err := s.View(func(tx *Tx) error {
		_, err := tx.InsertNode(nil)
		return err
	})
	if err == nil {
		t.Fatalf("expected write in view to fail")
	}
}

func TestEdgeToMissingNode(t *testing.T) {
	s := openMem(t)
	err := s.Update(func(tx *Tx) error {
		root, _ := tx.Alias(RootGames)
		return tx.InsertEdge(root, 9999, Member)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMigrationBacksUpAndBumpsVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")
	s, err := Open(path, Options{ModelVersion: 1})
	if err != nil {
		t.Fatalf("open v1: %v", err)
	}
	var node ID
	_ = s.Update(func(tx *Tx) (err error) {
		node, err = tx.InsertNode(map[string]Value{"name": String("a")})
		return err
	})
	_ = s.Close()

	applied := 0
	steps := []Migration{{
		Version: 2,
		Name:    "add flag",
		Apply: func(tx *Tx) error {
			applied++
			return tx.SetValue(node, "flag", Bool(true))
		},
	}}
	s, err = Open(path, Options{ModelVersion: 2, Migrations: steps})
	if err != nil {
		t.Fatalf("open v2: %v", err)
	}
	if v, _ := s.ModelVersion(); v != 2 {
		t.Fatalf("version = %d", v)
	}
	var flag Value
	if err := s.View(func(tx *Tx) (err error) { flag, err = tx.Value(node, "flag"); return err }); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !flag.Bool {
		t.Fatalf("flag = %v", flag)
	}
	_ = s.Close()
	if applied != 1 {
		t.Fatalf("applied = %d", applied)
	}

	entries, _ := os.ReadDir(dir)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "data-") && strings.HasSuffix(e.Name(), ".db.bak") {
			backups++
		}
	}
	if backups != 1 {
		t.Fatalf("backups = %d (%v)", backups, entries)
	}

	// newer data than the build understands is only warned about
	s, err = Open(path, Options{ModelVersion: 1, Migrations: steps})
	if err != nil {
		t.Fatalf("open older build: %v", err)
	}
	defer s.Close()
	if v, _ := s.ModelVersion(); v != 2 {
		t.Fatalf("downgraded to %d", v)
	}
	if applied != 1 {
		t.Fatalf("migration re-applied")
	}
}
