// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or invalidate cached web pages",
	Long: `Fetched pages are cached forever, one file per URL named by the SHA-256
of the URL. Use these subcommands to locate or drop an entry so the next
build fetches the page again.`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path <url>",
	Short: "Print the cache file for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		path := e.cache().Path(args[0])
		status := "cached"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			status = "not cached"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, status)
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <url>...",
	Short: "Remove cached pages so they are fetched again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		c := e.cache()
		for _, url := range args {
			if err := c.Delete(url); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %s\n", url)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheEvictCmd)

	rootCmd.AddCommand(cacheCmd)
}
