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

	"github.com/spf13/cobra"

	"barnacle/internal/repository"
)

func newProfileCmd(a *app) *cobra.Command {
	var gameName string
	cmd := &cobra.Command{Use: "profile", Short: "Manage the profiles of a game"}
	cmd.PersistentFlags().StringVar(&gameName, "game", "", "game to operate on (default: the active game)")

	find := func(name string) (repository.Profile, error) {
		g, err := a.game(gameName)
		if err != nil {
			return repository.Profile{}, err
		}
		p, ok, err := g.SearchProfile(name)
		if err != nil {
			return repository.Profile{}, err
		}
		if !ok {
			return repository.Profile{}, fmt.Errorf("no profile named %q", name)
		}
		return p, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.game(gameName)
			if err != nil {
				return err
			}
			profiles, err := g.Profiles()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				name, err := p.Name()
				if err != nil {
					return err
				}
				active, err := p.IsActive()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker(active), name)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.game(gameName)
			if err != nil {
				return err
			}
			if _, err := g.AddProfile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added profile %s\n", args[0])
			return nil
		},
	}

	activate := &cobra.Command{
		Use:   "activate <name>",
		Short: "Make a profile the active one of its game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := find(args[0])
			if err != nil {
				return err
			}
			return p.Activate()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a profile and its load order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := find(args[0])
			if err != nil {
				return err
			}
			return p.Remove()
		},
	}

	cmd.AddCommand(list, add, activate, remove)
	return cmd
}
