/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package repository

import (
	"fmt"
	"strings"
)

// DeployKind selects how a Game's mods are laid over its install directory.
type DeployKind int

const (
	// Overlay mounts mods over the game directory without touching load order files.
	Overlay DeployKind = iota
	// CreationEngine covers Skyrim SE, Fallout 4 and later Bethesda titles.
	CreationEngine
	// Gamebryo covers Oblivion, Fallout 3 and New Vegas.
	Gamebryo
	OpenMW
)

var deployKindNames = [...]string{"overlay", "creation_engine", "gamebryo", "openmw"}

// DeployKinds lists every kind in declaration order.
func DeployKinds() []DeployKind { return []DeployKind{Overlay, CreationEngine, Gamebryo, OpenMW} }

func (k DeployKind) String() string {
	if k < 0 || int(k) >= len(deployKindNames) {
		return fmt.Sprintf("deploy_kind(%d)", int(k))
	}
	return deployKindNames[k]
}

// ParseDeployKind accepts the stored name, case-insensitively, with "-" or " " for "_".
func ParseDeployKind(s string) (DeployKind, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "creationengine":
		norm = "creation_engine"
	case "open_mw":
		norm = "openmw"
	}
	for i, n := range deployKindNames {
		if n == norm {
			return DeployKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown deploy kind %q", s)
}
