/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package archive unpacks mod payloads into the library and locks them read-only.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	applog "barnacle/internal/log"
)

// ErrUnsupported is returned for sources that are neither a directory nor a known archive type.
var ErrUnsupported = errors.New("unsupported archive format")

// Extract unpacks src into dest. src may be a .zip, .tar, .tar.gz/.tgz file or a plain
// directory, which is copied. dest is created if missing. Entries that would land outside
// dest are rejected.
func Extract(src, dest string) error {
	l := applog.WithOperation(applog.WithComponent("archive"), "extract").With(
		slog.String("src", src), slog.String("dest", dest))
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dest) == "" {
		return errors.New("source and destination are required")
	}
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("ensure destination: %w", err)
	}

	var n int
	lower := strings.ToLower(src)
	switch {
	case fi.IsDir():
		n, err = copyTree(src, dest)
	case strings.HasSuffix(lower, ".zip"):
		n, err = extractZip(src, dest)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		n, err = extractTar(src, dest, true)
	case strings.HasSuffix(lower, ".tar"):
		n, err = extractTar(src, dest, false)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}
	if err != nil {
		l.Error("extract failed", slog.Any("err", err))
		return fmt.Errorf("extract %s: %w", filepath.Base(src), err)
	}
	l.Debug("extracted", slog.Int("files", n))
	return nil
}

// target joins an archive entry name onto dest, refusing names that escape it.
func target(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal entry path %q", name)
	}
	return filepath.Join(dest, clean), nil
}

func extractZip(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = r.Close() }()

	written := 0
	for _, f := range r.File {
		path, err := target(dest, f.Name)
		if err != nil {
			return written, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return written, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return written, err
		}
		err = writeFile(path, rc, f.Mode())
		_ = rc.Close()
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func extractTar(src string, dest string, gz bool) (int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var rd io.Reader = f
	if gz {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open gzip: %w", err)
		}
		defer func() { _ = zr.Close() }()
		rd = zr
	}
	tr := tar.NewReader(rd)
	written := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("read tar: %w", err)
		}
		path, err := target(dest, hdr.Name)
		if err != nil {
			return written, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return written, err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return written, err
			}
			written++
		default:
			// links and devices are not part of mod payloads
		}
	}
}

func copyTree(src, dest string) (int, error) {
	written := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = in.Close() }()
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := writeFile(out, in, info.Mode()); err != nil {
			return err
		}
		written++
		return nil
	})
	return written, err
}

func writeFile(path string, r io.Reader, mode fs.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	perm := mode.Perm() | 0o600
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, r)
	return err
}
