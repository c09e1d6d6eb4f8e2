// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dungeondash/dungeondash/internal/roster"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or check JSON Schemas for config documents",
	}

	var output string
	rosterCmd := &cobra.Command{
		Use:   "roster",
		Short: "Print the character roster JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := roster.GenerateSchema()
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return oops.With("operation", "write schema").Wrap(err)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return oops.Code("SCHEMA_WRITE_FAILED").With("path", output).Wrap(err)
			}
			cmd.Printf("Wrote %s\n", output)
			return nil
		},
	}
	rosterCmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.AddCommand(rosterCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate-roster <file>",
		Short: "Check a roster file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := roster.LoadFile(args[0]); err != nil {
				cmd.PrintErrln(roster.FormatSchemaError(err))
				return err
			}
			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	})

	return cmd
}
