// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbindex/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <source-id>",
	Short: "Print the full content of an indexed source",
	Long: `Show resolves a source identifier from the index back to its full text.
File identifiers are read from the source directory and may not point
outside it; URLs are served from the cache or fetched.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	content, err := e.resolver().Resolve(cmd.Context(), args[0])
	switch {
	case errors.Is(err, types.ErrOutOfBounds):
		return fmt.Errorf("%s is outside the source directory", args[0])
	case errors.Is(err, types.ErrNotFound):
		return fmt.Errorf("%s not found", args[0])
	case errors.Is(err, types.ErrInvalid):
		return fmt.Errorf("%s has no readable text: %w", args[0], err)
	case err != nil:
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), content.Text)
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)
}
