/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package paths resolves the per-user config, data and state directories.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppDirName is appended to every platform base directory.
const AppDirName = "barnacle"

// ConfigDir returns the per-user configuration directory, creating it if needed.
func ConfigDir() (string, error) {
	return ensure(base("XDG_CONFIG_HOME", ".config"))
}

// DataDir returns the per-user data directory (the default mod library lives here).
func DataDir() (string, error) {
	return ensure(base("XDG_DATA_HOME", filepath.Join(".local", "share")))
}

// StateDir returns the per-user state directory holding the graph database and its backups.
func StateDir() (string, error) {
	return ensure(base("XDG_STATE_HOME", filepath.Join(".local", "state")))
}

func base(xdgVar, homeRel string) (string, error) {
	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv("AppData")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		if xdgVar == "XDG_STATE_HOME" || xdgVar == "XDG_DATA_HOME" {
			if local := os.Getenv("LocalAppData"); local != "" {
				dir = local
			}
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		if v := strings.TrimSpace(os.Getenv(xdgVar)); v != "" && filepath.IsAbs(v) {
			dir = v
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, homeRel)
	}
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("cannot resolve base directory")
	}
	return filepath.Join(dir, AppDirName), nil
}

func ensure(dir string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
