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
)

func newToolCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tool", Short: "Manage external tools"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			tools, err := r.Tools()
			if err != nil {
				return err
			}
			for _, t := range tools {
				name, err := t.Name()
				if err != nil {
					return err
				}
				path, err := t.Path()
				if err != nil {
					return err
				}
				args, err := t.Args()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s\n", name, path, args)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <path> [args...]",
		Short: "Register a tool",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			_, err = r.AddTool(args[0], args[1], strings.Join(args[2:], " "))
			return err
		},
	}

	// everything after <path> belongs to the tool, including dashed arguments
	add.Flags().SetInterspersed(false)

	cmd.AddCommand(list, add)
	return cmd
}
