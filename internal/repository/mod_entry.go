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
	fieldEnabled = "enabled"
	fieldNotes   = "notes"
)

// ModEntry is one slot of a Profile's load order. It refers to a Mod of the same Game
// and carries per-Profile state.
//
// A Profile's entries form a chain: Profile -next-> e1 -next-> e2 ... The chain is
// the load order.
type ModEntry struct {
	repo *Repository
	id   EntityID
}

func (e ModEntry) ID() EntityID { return e.id }

func (e ModEntry) Equal(o ModEntry) bool { return e.id.Equal(o.id) }

// AddModEntry appends mod to the end of the Profile's load order, enabled.
func (p Profile) AddModEntry(mod Mod) (ModEntry, error) {
	var e ModEntry
	err := p.repo.store.Update(func(tx *graph.Tx) error {
		profile, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		modAddr, err := mod.id.resolve(tx)
		if err != nil {
			return err
		}
		pg, err := owner(tx, profile)
		if err != nil {
			return err
		}
		mg, err := owner(tx, modAddr)
		if err != nil {
			return err
		}
		if pg != mg {
			return ErrParentGameMismatch
		}
		chain, err := walkChain(tx, profile)
		if err != nil {
			return err
		}
		tail := profile
		if len(chain) > 0 {
			tail = chain[len(chain)-1]
		}
		id, err := insertEntity(tx, graph.RootModEntries, map[string]graph.Value{
			fieldEnabled: graph.Bool(true),
			fieldNotes:   graph.String(""),
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEdge(tail, id.addr, graph.Next); err != nil {
			return err
		}
		if err := tx.InsertEdge(id.addr, modAddr, graph.Refers); err != nil {
			return err
		}
		e = ModEntry{repo: p.repo, id: id}
		return nil
	})
	if err != nil {
		return ModEntry{}, wrap("add mod entry", err)
	}
	p.repo.log.Debug("added mod entry", slog.String("entry", e.id.String()))
	return e, nil
}

// ModEntries returns the Profile's load order.
func (p Profile) ModEntries() ([]ModEntry, error) {
	entries, _, err := p.LoadOrder()
	return entries, err
}

// LoadOrder pairs each entry of the Profile's load order with its Mod, read in a single
// pass over the chain.
func (p Profile) LoadOrder() ([]ModEntry, []Mod, error) {
	var entries []ModEntry
	var mods []Mod
	err := p.repo.store.View(func(tx *graph.Tx) error {
		profile, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		chain, err := walkChain(tx, profile)
		if err != nil {
			return err
		}
		for _, addr := range chain {
			eid, err := loadEntityID(tx, addr)
			if err != nil {
				return err
			}
			modAddr, err := referredMod(tx, addr)
			if err != nil {
				return err
			}
			mid, err := loadEntityID(tx, modAddr)
			if err != nil {
				return err
			}
			entries = append(entries, ModEntry{repo: p.repo, id: eid})
			mods = append(mods, Mod{repo: p.repo, id: mid})
		}
		return nil
	})
	if err != nil {
		return nil, nil, wrap("load order", err)
	}
	return entries, mods, nil
}

// RemoveModEntry drops entry from the Profile's load order.
func (p Profile) RemoveModEntry(entry ModEntry) error {
	err := p.repo.store.Update(func(tx *graph.Tx) error {
		profile, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		addr, err := entry.id.resolve(tx)
		if err != nil {
			return err
		}
		chain, err := walkChain(tx, profile)
		if err != nil {
			return err
		}
		if !contains(chain, addr) {
			return ErrNotInProfile
		}
		return spliceOut(tx, addr)
	})
	return wrap("remove mod entry", err)
}

// MoveModEntry moves entry to position index of the load order. Out of range indexes
// are clamped.
func (p Profile) MoveModEntry(entry ModEntry, index int) error {
	err := p.repo.store.Update(func(tx *graph.Tx) error {
		profile, err := p.id.resolve(tx)
		if err != nil {
			return err
		}
		addr, err := entry.id.resolve(tx)
		if err != nil {
			return err
		}
		chain, err := walkChain(tx, profile)
		if err != nil {
			return err
		}
		from := -1
		for i, id := range chain {
			if id == addr {
				from = i
				break
			}
		}
		if from < 0 {
			return ErrNotInProfile
		}
		index = max(0, min(index, len(chain)-1))
		if index == from {
			return nil
		}
		order := append(append([]graph.ID{}, chain[:from]...), chain[from+1:]...)
		order = append(order[:index], append([]graph.ID{addr}, order[index:]...)...)

		prev := profile
		if err := tx.RemoveEdgesFrom(prev, graph.Next); err != nil {
			return err
		}
		for _, id := range chain {
			if err := tx.RemoveEdgesFrom(id, graph.Next); err != nil {
				return err
			}
		}
		for _, id := range order {
			if err := tx.InsertEdge(prev, id, graph.Next); err != nil {
				return err
			}
			prev = id
		}
		return nil
	})
	return wrap("move mod entry", err)
}

// Remove drops the entry from whichever Profile holds it.
func (e ModEntry) Remove() error {
	err := e.repo.store.Update(func(tx *graph.Tx) error {
		addr, err := e.id.resolve(tx)
		if err != nil {
			return err
		}
		return spliceOut(tx, addr)
	})
	return wrap("remove mod entry", err)
}

func (e ModEntry) Enabled() (bool, error) { return getField[bool](e.repo.store, e.id, fieldEnabled) }

func (e ModEntry) SetEnabled(v bool) error { return setField(e.repo.store, e.id, fieldEnabled, v) }

func (e ModEntry) Notes() (string, error) { return getField[string](e.repo.store, e.id, fieldNotes) }

func (e ModEntry) SetNotes(v string) error { return setField(e.repo.store, e.id, fieldNotes, v) }

// Mod returns the Mod the entry refers to.
func (e ModEntry) Mod() (Mod, error) {
	var m Mod
	err := e.repo.store.View(func(tx *graph.Tx) error {
		addr, err := e.id.resolve(tx)
		if err != nil {
			return err
		}
		modAddr, err := referredMod(tx, addr)
		if err != nil {
			return err
		}
		id, err := loadEntityID(tx, modAddr)
		m = Mod{repo: e.repo, id: id}
		return err
	})
	if err != nil {
		return Mod{}, wrap("mod entry mod", err)
	}
	return m, nil
}

// Name is the name of the referred Mod.
func (e ModEntry) Name() (string, error) {
	m, err := e.Mod()
	if err != nil {
		return "", err
	}
	return m.Name()
}

// Profile returns the Profile whose load order holds the entry.
func (e ModEntry) Profile() (Profile, error) {
	var p Profile
	err := e.repo.store.View(func(tx *graph.Tx) error {
		addr, err := e.id.resolve(tx)
		if err != nil {
			return err
		}
		seen := map[graph.ID]bool{addr: true}
		cur := addr
		for {
			preds, err := tx.Sources(cur, graph.Next)
			if err != nil {
				return err
			}
			if len(preds) != 1 {
				return corrupt("mod entry chain at %d has %d predecessors", cur, len(preds))
			}
			cur = preds[0]
			if seen[cur] {
				return corrupt("mod entry chain cycles at %d", cur)
			}
			seen[cur] = true
			ok, err := isMember(tx, graph.RootProfiles, cur)
			if err != nil {
				return err
			}
			if ok {
				id, err := loadEntityID(tx, cur)
				p = Profile{repo: e.repo, id: id}
				return err
			}
		}
	})
	if err != nil {
		return Profile{}, wrap("mod entry profile", err)
	}
	return p, nil
}

// walkChain follows next edges from a Profile and returns its entries in order.
func walkChain(tx *graph.Tx, profile graph.ID) ([]graph.ID, error) {
	var out []graph.ID
	seen := map[graph.ID]bool{profile: true}
	cur := profile
	for {
		next, err := tx.Targets(cur, graph.Next)
		if err != nil {
			return nil, err
		}
		switch len(next) {
		case 0:
			return out, nil
		case 1:
		default:
			return nil, corrupt("mod entry chain branches at %d", cur)
		}
		cur = next[0]
		if seen[cur] {
			return nil, corrupt("mod entry chain cycles at %d", cur)
		}
		seen[cur] = true
		out = append(out, cur)
	}
}

// spliceOut removes an entry node and links its predecessor to its successor.
func spliceOut(tx *graph.Tx, entry graph.ID) error {
	preds, err := tx.Sources(entry, graph.Next)
	if err != nil {
		return err
	}
	if len(preds) != 1 {
		return corrupt("mod entry %d has %d predecessors", entry, len(preds))
	}
	succs, err := tx.Targets(entry, graph.Next)
	if err != nil {
		return err
	}
	if len(succs) > 1 {
		return corrupt("mod entry chain branches at %d", entry)
	}
	if err := tx.RemoveNode(entry); err != nil {
		return err
	}
	if len(succs) == 1 {
		return tx.InsertEdge(preds[0], succs[0], graph.Next)
	}
	return nil
}

func referredMod(tx *graph.Tx, entry graph.ID) (graph.ID, error) {
	refs, err := tx.Targets(entry, graph.Refers)
	if err != nil {
		return 0, err
	}
	if len(refs) != 1 {
		return 0, corrupt("mod entry %d refers to %d mods", entry, len(refs))
	}
	return refs[0], nil
}
