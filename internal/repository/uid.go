/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"barnacle/internal/graph"
)

// Uid identifies an entity for its whole lifetime. Uids are never reused, unlike
// graph addresses.
type Uid uint64

// newUid reserves the next Uid in its own write transaction.
func newUid(s *graph.Store) (Uid, error) {
	var uid Uid
	err := s.Update(func(tx *graph.Tx) (err error) {
		uid, err = allocUid(tx)
		return err
	})
	if err != nil {
		return 0, wrap("allocate uid", err)
	}
	return uid, nil
}

// allocUid reads and advances the counter on the next_uid root inside tx.
func allocUid(tx *graph.Tx) (Uid, error) {
	id, err := tx.Alias(graph.RootNextUID)
	if err != nil {
		return 0, err
	}
	v, err := tx.Value(id, graph.FieldNextUID)
	if err != nil {
		return 0, err
	}
	if v.Kind != graph.KindUint {
		return 0, corrupt("next_uid holds %s", v.Kind)
	}
	if err := tx.SetValue(id, graph.FieldNextUID, graph.Uint(v.Uint+1)); err != nil {
		return 0, err
	}
	return Uid(v.Uint), nil
}
