/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package archive

import (
	"io/fs"
	"os"
	"path/filepath"
)

// SetTreeReadOnly clears the write bits of every file and directory under dir.
// Directories are processed after their contents so the walk never locks itself out.
func SetTreeReadOnly(dir string) error {
	return chmodTree(dir, func(m fs.FileMode) fs.FileMode { return m &^ 0o222 })
}

// SetTreeWritable restores owner write permission under dir. It must run before a
// read-only tree can be removed on platforms that refuse to unlink from read-only dirs.
func SetTreeWritable(dir string) error {
	return chmodTree(dir, func(m fs.FileMode) fs.FileMode { return m | 0o200 })
}

// RemoveTree makes dir writable and deletes it. A missing dir is not an error.
func RemoveTree(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := SetTreeWritable(dir); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func chmodTree(dir string, fn func(fs.FileMode) fs.FileMode) error {
	var dirs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			// writable first so the walk can descend; final mode applied afterwards
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.Chmod(path, info.Mode().Perm()|0o700); err != nil {
				return err
			}
			dirs = append(dirs, path)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.Chmod(path, fn(info.Mode().Perm()))
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		info, err := os.Stat(dirs[i])
		if err != nil {
			return err
		}
		if err := os.Chmod(dirs[i], fn(info.Mode().Perm())); err != nil {
			return err
		}
	}
	return nil
}
