/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package graph

import (
	"fmt"
	"log/slog"
)

// Migration upgrades the data model from Version-1 to Version.
type Migration struct {
	Version int64
	Name    string
	Apply   func(tx *Tx) error
}

// migrate applies the registered steps between stored and want, one write transaction
// per step. A store written by a newer build is left untouched.
func (s *Store) migrate(stored, want int64, steps []Migration) error {
	if stored > want {
		s.log.Warn("database was written by a newer version; not downgrading",
			slog.Int64("stored", stored), slog.Int64("supported", want))
		return nil
	}
	if stored == want {
		return nil
	}
	if s.path != "" {
		bak, err := s.Backup()
		if err != nil {
			return fmt.Errorf("backup before migration: %w", err)
		}
		s.log.Info("backed up database before migration", slog.String("backup", bak))
	}

	byVersion := make(map[int64]Migration, len(steps))
	for _, m := range steps {
		byVersion[m.Version] = m
	}

	for cur := stored; cur < want; cur++ {
		next := cur + 1
		m, ok := byVersion[next]
		err := s.Update(func(tx *Tx) error {
			if ok && m.Apply != nil {
				if err := m.Apply(tx); err != nil {
					return err
				}
			}
			mv, err := tx.Alias(RootModelVersion)
			if err != nil {
				return err
			}
			return tx.SetValue(mv, FieldVersion, Int(next))
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", next, m.Name, err)
		}
		s.log.Info("applied migration", slog.Int64("version", next), slog.String("name", m.Name))
	}
	return nil
}
