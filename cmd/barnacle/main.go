/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"barnacle/internal/config"
	"barnacle/internal/crash"
	applog "barnacle/internal/log"
	"barnacle/internal/repository"
	"barnacle/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	applog.Init(cfg.LogOptions())
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	defer crash.Recover(crashDir(cfg, l))

	a := &app{cfg: cfg, log: l}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		l.Debug("command failed", slog.Any("err", err))
		return 1
	}
	return 0
}

// crashDir is where crash reports go: the state dir, or the temp dir when that cannot
// be resolved.
func crashDir(cfg config.AppConfig, l *slog.Logger) string {
	dir, err := cfg.StateDir()
	if err != nil || dir == "" {
		l.Warn("state dir unavailable; crash reports go to the temp dir", slog.Any("err", err))
		return os.TempDir()
	}
	return dir
}

// app carries what every command needs. The repository is opened on first use so that
// commands like version never touch the database.
type app struct {
	cfg  config.AppConfig
	log  *slog.Logger
	repo *repository.Repository
}

func (a *app) open() (*repository.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	lib, err := a.cfg.LibraryDir()
	if err != nil {
		return nil, fmt.Errorf("library dir: %w", err)
	}
	state, err := a.cfg.StateDir()
	if err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	r, err := repository.Open(repository.Config{LibraryDir: lib, StateDir: state})
	if err != nil {
		return nil, err
	}
	a.repo = r
	return r, nil
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Error("close repository", slog.Any("err", err))
		}
		a.repo = nil
	}
}

// game returns the named Game, or the active one when name is empty.
func (a *app) game(name string) (repository.Game, error) {
	r, err := a.open()
	if err != nil {
		return repository.Game{}, err
	}
	if name == "" {
		g, ok, err := r.ActiveGame()
		if err != nil {
			return repository.Game{}, err
		}
		if !ok {
			return repository.Game{}, errors.New("no games yet; add one with 'barnacle game add'")
		}
		return g, nil
	}
	g, ok, err := r.SearchGame(name)
	if err != nil {
		return repository.Game{}, err
	}
	if !ok {
		return repository.Game{}, fmt.Errorf("no game named %q", name)
	}
	return g, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "barnacle",
		Short:         "Manage game mod libraries",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newGameCmd(a),
		newProfileCmd(a),
		newModCmd(a),
		newToolCmd(a),
		newConfigCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "barnacle", version.String())
			},
		},
	)
	return root
}

// marker renders the active flag in listings.
func marker(active bool) string {
	if active {
		return "*"
	}
	return " "
}
