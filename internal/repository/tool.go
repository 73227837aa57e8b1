/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"log/slog"

	"barnacle/internal/graph"
)

const (
	fieldPath = "path"
	fieldArgs = "args"
)

// Tool is an external program (a launcher, an editor) that can be run against the
// library. Tools have no directory of their own.
type Tool struct {
	repo *Repository
	id   EntityID
}

func (t Tool) ID() EntityID { return t.id }

func (t Tool) Equal(o Tool) bool { return t.id.Equal(o.id) }

// AddTool registers a Tool. Names are unique across the library; args may be empty.
func (r *Repository) AddTool(name, path, args string) (Tool, error) {
	var t Tool
	err := r.store.Update(func(tx *graph.Tx) error {
		tools, err := member(tx, graph.RootTools)
		if err != nil {
			return err
		}
		if err := checkName(tx, tools, name, 0); err != nil {
			return err
		}
		id, err := insertEntity(tx, graph.RootTools, map[string]graph.Value{
			fieldName: graph.String(name),
			fieldPath: graph.String(path),
			fieldArgs: graph.String(args),
		})
		t = Tool{repo: r, id: id}
		return err
	})
	if err != nil {
		return Tool{}, wrap("add tool", err)
	}
	r.log.Info("added tool", slog.String("tool", name), slog.String("path", path))
	return t, nil
}

// Tools lists every Tool in the order they were added.
func (r *Repository) Tools() ([]Tool, error) {
	var out []Tool
	err := r.store.View(func(tx *graph.Tx) error {
		ids, err := member(tx, graph.RootTools)
		if err != nil {
			return err
		}
		out, err = loadAll(tx, ids, func(id EntityID) Tool { return Tool{repo: r, id: id} })
		return err
	})
	return out, wrap("list tools", err)
}

func (r *Repository) SearchTool(name string) (Tool, bool, error) {
	var t Tool
	var found bool
	err := r.store.View(func(tx *graph.Tx) error {
		root, err := tx.Alias(graph.RootTools)
		if err != nil {
			return err
		}
		addr, ok, err := named(tx, root, graph.Member, graph.RootTools, name)
		if err != nil || !ok {
			return err
		}
		id, err := loadEntityID(tx, addr)
		t, found = Tool{repo: r, id: id}, err == nil
		return err
	})
	if err != nil {
		return Tool{}, false, wrap("search tool", err)
	}
	return t, found, nil
}

func (t Tool) Name() (string, error) { return getField[string](t.repo.store, t.id, fieldName) }

func (t Tool) SetName(name string) error {
	err := t.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := t.id.resolve(tx)
		if err != nil {
			return err
		}
		tools, err := member(tx, graph.RootTools)
		if err != nil {
			return err
		}
		if err := checkName(tx, tools, name, addr); err != nil {
			return err
		}
		return writeField(tx, addr, fieldName, name)
	})
	return wrap("rename tool", err)
}

// Path is the Tool's executable.
func (t Tool) Path() (string, error) { return getField[string](t.repo.store, t.id, fieldPath) }

func (t Tool) SetPath(path string) error { return setField(t.repo.store, t.id, fieldPath, path) }

// Args are extra command line arguments, empty when there are none.
func (t Tool) Args() (string, error) { return getField[string](t.repo.store, t.id, fieldArgs) }

func (t Tool) SetArgs(args string) error { return setField(t.repo.store, t.id, fieldArgs, args) }

func (t Tool) Remove() error {
	var name string
	err := t.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := t.id.resolve(tx)
		if err != nil {
			return err
		}
		if name, err = readField[string](tx, addr, fieldName); err != nil {
			return err
		}
		return tx.RemoveNode(addr)
	})
	if err != nil {
		return wrap("remove tool", err)
	}
	t.repo.log.Info("removed tool", slog.String("tool", name))
	return nil
}
