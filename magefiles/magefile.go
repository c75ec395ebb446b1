//go:build mage

// Package main contains Mage build targets for kbindex developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/spf13/viper"

	"github.com/pdiddy/kbindex/internal/index"
	"github.com/pdiddy/kbindex/pkg/types"
)

const (
	binDir  = "bin"
	binName = "kbindex"
	cmdPkg  = "./cmd/kbindex"

	sourcesDir = types.DefaultSourcesDir
	dataDir    = types.DefaultDataDir
	secretsDir = ".secrets"
	configFile = "kbindex.yaml"
)

// projectDirs lists the working directories kbindex expects.
var projectDirs = []string{sourcesDir, dataDir, secretsDir}

const sampleConfig = `# kbindex configuration. Every key can also be set as KBINDEX_<KEY>,
# with nested keys joined by underscores (KBINDEX_AI_MODEL).
sources_dir: sources
links_file: sources/links.txt
data_dir: data
discovery: allowlist # or scan
max_source_bytes: 2097152
fetch_timeout: 20s

ai:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  max_retries: 3
  retry_base_delay: 1s
  timeout: 60s
  requests_per_second: 0
  project_context: ""
`

// Init creates the project directories and a starter kbindex.yaml.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := os.WriteFile(configFile, []byte(sampleConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configFile, err)
		}
		fmt.Println("  ", configFile)
	}
	fmt.Printf("Put the API key in %s/llm-api-key.\n", secretsDir)
	return nil
}

// Build compiles the CLI binary into bin/, stamping the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Index builds the binary and rebuilds the knowledge-base index.
func Index() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "build")
}

// Clean removes the binary and the web cache, forcing pages to be fetched again.
func Clean() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, p := range []string{binDir, cfg.KnowledgeBase.CacheDir} {
		if err := sh.Rm(p); err != nil {
			return err
		}
	}
	return nil
}

// Stats prints Go line counts and the size of the current index and cache.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	entries, err := index.NewStore(cfg.KnowledgeBase.IndexPath).LoadEntries()
	if err != nil {
		return err
	}
	cached, err := countFiles(cfg.KnowledgeBase.CacheDir)
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Index entries:                  %d\n", len(entries))
	fmt.Printf("Cached pages:                   %d\n", cached)
	return nil
}

// countGoLines counts non-blank lines in Go files, skipping hidden and
// underscore-prefixed directories the go tool also ignores.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}

// loadConfig reads ./kbindex.yaml and KBINDEX_* overrides for the paths the
// targets touch, the same way the CLI does.
func loadConfig() (types.Config, error) {
	v := viper.New()
	v.SetConfigName("kbindex")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("KBINDEX")
	for _, key := range []string{"sources_dir", "data_dir", "index_path", "cache_dir"} {
		if err := v.BindEnv(key); err != nil {
			return types.Config{}, err
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("reading %s: %w", configFile, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n, nil
}
