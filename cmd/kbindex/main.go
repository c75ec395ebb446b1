// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kbindex CLI. It builds the
// knowledge-base index from local files and remote pages and answers
// lookups against it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in PersistentPreRunE from --log-level and --log-format.
var logger = slog.Default()

// rootCmd is the base command for the kbindex CLI.
var rootCmd = &cobra.Command{
	Use:   "kbindex",
	Short: "Build and query a summarized knowledge-base index",
	Long: `kbindex turns a directory of text files and a list of web pages into a
plain-text index: one short summary per source, produced by an
OpenAI-compatible chat completion endpoint. Assistants read the index to pick
sources and use "kbindex show" to load a source's full text.

Run "kbindex build" to (re)build the index. Every build processes every
source; web pages are cached on disk after the first successful fetch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(os.Stderr, viper.GetString("log_level"), viper.GetString("log_format"))
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("kb.config_loaded", "path", used)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./kbindex.yaml or ~/.config/kbindex/kbindex.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("sources-dir", "", "source root (overrides sources_dir)")
	pf.String("links-file", "", "URL allow-list file (overrides links_file)")
	pf.String("data-dir", "", "data directory for the index, cache and ledger (overrides data_dir)")
	pf.String("discovery", "", "discovery strategy: allowlist or scan (overrides discovery)")

	for key, flag := range map[string]string{
		"log_level":   "log-level",
		"log_format":  "log-format",
		"sources_dir": "sources-dir",
		"links_file":  "links-file",
		"data_dir":    "data-dir",
		"discovery":   "discovery",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kbindex")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kbindex"))
		}
	}

	viper.SetEnvPrefix("KBINDEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
