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
	"io/fs"
	"os"

	"barnacle/internal/archive"
)

var (
	// ErrRemovedEntity is returned by any operation on a handle whose entity no longer exists.
	ErrRemovedEntity = errors.New("entity has been removed")
	// ErrDuplicateName is returned when a name is already taken within its scope.
	ErrDuplicateName = errors.New("name already exists")
	// ErrParentGameMismatch is returned when two entities that must share a Game do not.
	ErrParentGameMismatch = errors.New("entities belong to different games")
	// ErrNotInProfile is returned when a ModEntry is used with a Profile that does not hold it.
	ErrNotInProfile = errors.New("mod entry is not part of this profile")
	// ErrInternal marks store failures and corrupt graph structure.
	ErrInternal = errors.New("internal repository error")
)

// wrap annotates err with op. Domain errors and filesystem errors keep their identity,
// anything else coming out of the store is marked ErrInternal.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrRemovedEntity),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrParentGameMismatch),
		errors.Is(err, ErrNotInProfile),
		errors.Is(err, ErrInternal),
		errors.Is(err, archive.ErrUnsupported):
		return fmt.Errorf("%s: %w", op, err)
	}
	var pe *fs.PathError
	var le *os.LinkError
	if errors.As(err, &pe) || errors.As(err, &le) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// corrupt reports a graph shape the repository never writes.
func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
