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

	"barnacle/internal/graph"
)

const fieldUid = "uid"

// EntityID is a long-lived handle to an entity: the graph address it was found at plus
// the Uid it had there. Resolving fails once the entity is gone, even if the address
// now holds something else.
type EntityID struct {
	addr graph.ID
	uid  Uid
}

func loadEntityID(tx *graph.Tx, addr graph.ID) (EntityID, error) {
	uid, err := readUid(tx, addr)
	if err != nil {
		return EntityID{}, err
	}
	return EntityID{addr: addr, uid: uid}, nil
}

func readUid(tx *graph.Tx, addr graph.ID) (Uid, error) {
	v, err := tx.Value(addr, fieldUid)
	if errors.Is(err, graph.ErrNotFound) {
		return 0, ErrRemovedEntity
	}
	if err != nil {
		return 0, err
	}
	if v.Kind != graph.KindUint {
		return 0, corrupt("uid at %d holds %s", addr, v.Kind)
	}
	return Uid(v.Uint), nil
}

// resolve returns the current address of the entity, or ErrRemovedEntity.
func (e EntityID) resolve(tx *graph.Tx) (graph.ID, error) {
	uid, err := readUid(tx, e.addr)
	if err != nil {
		return 0, err
	}
	if uid != e.uid {
		return 0, ErrRemovedEntity
	}
	return e.addr, nil
}

// Uid returns the entity's permanent identifier.
func (e EntityID) Uid() Uid { return e.uid }

// Equal compares identity, not address.
func (e EntityID) Equal(o EntityID) bool { return e.uid == o.uid }

func (e EntityID) String() string { return fmt.Sprintf("#%d@%d", e.uid, e.addr) }
