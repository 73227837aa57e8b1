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

	"github.com/spf13/cobra"
)

func newModCmd(a *app) *cobra.Command {
	var gameName string
	cmd := &cobra.Command{Use: "mod", Short: "Manage mods and the active load order"}
	cmd.PersistentFlags().StringVar(&gameName, "game", "", "game to operate on (default: the active game)")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the active profile's load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.game(gameName)
			if err != nil {
				return err
			}
			p, ok, err := g.ActiveProfile()
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("game has no profiles")
			}
			entries, mods, err := p.LoadOrder()
			if err != nil {
				return err
			}
			for i, e := range entries {
				name, err := mods[i].Name()
				if err != nil {
					return err
				}
				on, err := e.Enabled()
				if err != nil {
					return err
				}
				box := "[ ]"
				if on {
					box = "[x]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d %s %s\n", i+1, box, name)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name> [archive or directory]",
		Short: "Install a mod and append it to the active profile",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(gameName)
			if err != nil {
				return err
			}
			var src string
			if len(args) == 2 {
				src = args[1]
			}
			m, err := g.AddMod(args[0], src)
			if err != nil {
				return err
			}
			p, ok, err := g.ActiveProfile()
			if err != nil {
				return err
			}
			if ok {
				if _, err := p.AddModEntry(m); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added mod %s\n", args[0])
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Uninstall a mod from every profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(gameName)
			if err != nil {
				return err
			}
			m, ok, err := g.SearchMod(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no mod named %q", args[0])
			}
			return m.Remove()
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
