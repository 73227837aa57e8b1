/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx is the view of the store handed to View and Update callbacks. It is only valid for
// the duration of the callback.
type Tx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

var errReadOnly = errors.New("write attempted in a read-only transaction")

func (t *Tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// InsertNode creates a node carrying values and returns its address.
func (t *Tx) InsertNode(values map[string]Value) (ID, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(t.ctx, `INSERT INTO nodes DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	id := ID(n)
	for k, v := range values {
		if err := t.SetValue(id, k, v); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// RemoveNode deletes the node, its values and every edge touching it.
func (t *Tx) RemoveNode(id ID) error {
	if err := t.writable(); err != nil {
		return err
	}
	ok, err := t.NodeExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("remove node %d: %w", id, ErrNotFound)
	}
	n := int64(id)
	stmts := []struct {
		q    string
		args []any
	}{
		{`DELETE FROM edges WHERE from_id = ? OR to_id = ?`, []any{n, n}},
		{`DELETE FROM node_values WHERE node_id = ?`, []any{n}},
		{`DELETE FROM aliases WHERE node_id = ?`, []any{n}},
		{`DELETE FROM nodes WHERE id = ?`, []any{n}},
	}
	for _, st := range stmts {
		if _, err := t.tx.ExecContext(t.ctx, st.q, st.args...); err != nil {
			return fmt.Errorf("remove node %d: %w", id, err)
		}
	}
	return nil
}

// NodeExists reports whether an address is currently in use.
func (t *Tx) NodeExists(id ID) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, `SELECT 1 FROM nodes WHERE id = ?`, int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup node %d: %w", id, err)
	}
	return true, nil
}

// Alias resolves a named root node.
func (t *Tx) Alias(name string) (ID, error) {
	var n int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT node_id FROM aliases WHERE name = ?`, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("alias %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("alias %q: %w", name, err)
	}
	return ID(n), nil
}

// ensureAlias returns the node for name, creating both when missing.
func (t *Tx) ensureAlias(name string) (ID, bool, error) {
	id, err := t.Alias(name)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}
	id, err = t.InsertNode(nil)
	if err != nil {
		return 0, false, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `INSERT INTO aliases(name, node_id) VALUES(?, ?)`, name, int64(id)); err != nil {
		return 0, false, fmt.Errorf("create alias %q: %w", name, err)
	}
	return id, true, nil
}

// InsertEdge links from to to. Edges are kept in insertion order.
func (t *Tx) InsertEdge(from, to ID, kind EdgeKind) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, id := range []ID{from, to} {
		ok, err := t.NodeExists(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("insert %s edge %d->%d: node %d: %w", kind, from, to, id, ErrNotFound)
		}
	}
	if _, err := t.tx.ExecContext(t.ctx, `INSERT INTO edges(from_id, to_id, kind) VALUES(?, ?, ?)`,
		int64(from), int64(to), string(kind)); err != nil {
		return fmt.Errorf("insert %s edge %d->%d: %w", kind, from, to, err)
	}
	return nil
}

// RemoveEdge deletes every edge of kind from from to to. Removing nothing is not an error.
func (t *Tx) RemoveEdge(from, to ID, kind EdgeKind) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM edges WHERE from_id = ? AND to_id = ? AND kind = ?`,
		int64(from), int64(to), string(kind)); err != nil {
		return fmt.Errorf("remove %s edge %d->%d: %w", kind, from, to, err)
	}
	return nil
}

// RemoveEdgesFrom deletes every outgoing edge of kind.
func (t *Tx) RemoveEdgesFrom(from ID, kind EdgeKind) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM edges WHERE from_id = ? AND kind = ?`,
		int64(from), string(kind)); err != nil {
		return fmt.Errorf("remove %s edges from %d: %w", kind, from, err)
	}
	return nil
}

// Targets lists the nodes reached from from over kind, oldest edge first.
func (t *Tx) Targets(from ID, kind EdgeKind) ([]ID, error) {
	return t.ids(`SELECT to_id FROM edges WHERE from_id = ? AND kind = ? ORDER BY id`, from, kind)
}

// Sources lists the nodes with an edge of kind into to, oldest edge first.
func (t *Tx) Sources(to ID, kind EdgeKind) ([]ID, error) {
	return t.ids(`SELECT from_id FROM edges WHERE to_id = ? AND kind = ? ORDER BY id`, to, kind)
}

func (t *Tx) ids(q string, id ID, kind EdgeKind) ([]ID, error) {
	rows, err := t.tx.QueryContext(t.ctx, q, int64(id), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s edges of %d: %w", kind, id, err)
	}
	defer func() { _ = rows.Close() }()
	var out []ID
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan %s edge of %d: %w", kind, id, err)
		}
		out = append(out, ID(n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s edges of %d: %w", kind, id, err)
	}
	return out, nil
}

// Value reads one field of a node. A missing node or key yields ErrNotFound.
func (t *Tx) Value(id ID, key string) (Value, error) {
	var kind int64
	var raw any
	err := t.tx.QueryRowContext(t.ctx, `SELECT kind, value FROM node_values WHERE node_id = ? AND key = ?`,
		int64(id), key).Scan(&kind, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Value{}, fmt.Errorf("value %q of node %d: %w", key, id, ErrNotFound)
	}
	if err != nil {
		return Value{}, fmt.Errorf("value %q of node %d: %w", key, id, err)
	}
	v, err := decode(Kind(kind), raw)
	if err != nil {
		return Value{}, fmt.Errorf("value %q of node %d: %w", key, id, err)
	}
	return v, nil
}

// SetValue writes (or replaces) one field of an existing node.
func (t *Tx) SetValue(id ID, key string, v Value) error {
	if err := t.writable(); err != nil {
		return err
	}
	raw, err := v.encode()
	if err != nil {
		return fmt.Errorf("set %q on node %d: %w", key, id, err)
	}
	ok, err := t.NodeExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("set %q on node %d: %w", key, id, ErrNotFound)
	}
	if _, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO node_values(node_id, key, kind, value) VALUES(?, ?, ?, ?)
		ON CONFLICT(node_id, key) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		int64(id), key, int64(v.Kind), raw); err != nil {
		return fmt.Errorf("set %q on node %d: %w", key, id, err)
	}
	return nil
}

// FindByValue lists the targets of from over kind whose field key equals v, oldest
// edge first.
func (t *Tx) FindByValue(from ID, kind EdgeKind, key string, v Value) ([]ID, error) {
	raw, err := v.encode()
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT e.to_id FROM edges e
		JOIN node_values nv ON nv.node_id = e.to_id AND nv.key = ?
		WHERE e.from_id = ? AND e.kind = ? AND nv.kind = ? AND nv.value = ?
		ORDER BY e.id`,
		key, int64(from), string(kind), int64(v.Kind), raw)
	if err != nil {
		return nil, fmt.Errorf("find %s=%s under %d: %w", key, v, from, err)
	}
	defer func() { _ = rows.Close() }()
	var out []ID
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("find %s=%s under %d: %w", key, v, from, err)
		}
		out = append(out, ID(n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s=%s under %d: %w", key, v, from, err)
	}
	return out, nil
}
