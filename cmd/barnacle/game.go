/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"barnacle/internal/repository"
)

func newGameCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "game", Short: "Manage games"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List games; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			games, err := r.Games()
			if err != nil {
				return err
			}
			for _, g := range games {
				name, err := g.Name()
				if err != nil {
					return err
				}
				kind, err := g.DeployKind()
				if err != nil {
					return err
				}
				active, err := g.IsActive()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", marker(active), name, kind)
			}
			return nil
		},
	}

	var kindName string
	var targets []string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := repository.ParseDeployKind(kindName)
			if err != nil {
				return err
			}
			r, err := a.open()
			if err != nil {
				return err
			}
			g, err := r.AddGame(args[0], kind)
			if err != nil {
				return err
			}
			if len(targets) > 0 {
				if err := g.SetTargets(targets); err != nil {
					return err
				}
			}
			dir, err := g.Dir()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added game %s at %s\n", args[0], dir)
			return nil
		},
	}
	kinds := make([]string, 0, 4)
	for _, k := range repository.DeployKinds() {
		kinds = append(kinds, k.String())
	}
	add.Flags().StringVar(&kindName, "kind", repository.Overlay.String(), "deploy kind: "+strings.Join(kinds, "|"))
	add.Flags().StringSliceVar(&targets, "target", nil, "directory mods are deployed into (repeatable)")

	activate := &cobra.Command{
		Use:   "activate <name>",
		Short: "Make a game the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(args[0])
			if err != nil {
				return err
			}
			return g.Activate()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a game with its profiles, mods and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(args[0])
			if err != nil {
				return err
			}
			if err := g.Remove(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed game %s\n", args[0])
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <name> <new name>",
		Short: "Rename a game and its directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(args[0])
			if err != nil {
				return err
			}
			return g.SetName(args[1])
		},
	}

	cmd.AddCommand(list, add, activate, remove, rename)
	return cmd
}
