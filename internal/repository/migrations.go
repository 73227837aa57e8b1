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

	"barnacle/internal/graph"
)

// migrations upgrade stores written by older builds, one step per model version.
var migrations = []graph.Migration{
	{
		// version 1 stored neither deploy targets nor per-entry state
		Version: 2,
		Name:    "backfill game targets and mod entry state",
		Apply: func(tx *graph.Tx) error {
			games, err := member(tx, graph.RootGames)
			if err != nil {
				return err
			}
			for _, g := range games {
				if err := backfill(tx, g, fieldTargets, graph.Strings(nil)); err != nil {
					return err
				}
			}
			entries, err := member(tx, graph.RootModEntries)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := backfill(tx, e, fieldEnabled, graph.Bool(true)); err != nil {
					return err
				}
				if err := backfill(tx, e, fieldNotes, graph.String("")); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

func backfill(tx *graph.Tx, id graph.ID, key string, v graph.Value) error {
	_, err := tx.Value(id, key)
	if errors.Is(err, graph.ErrNotFound) {
		return tx.SetValue(id, key, v)
	}
	return err
}
