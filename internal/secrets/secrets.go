// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials kept outside the config file, one per
// file in a directory. The file name is the secret name and the trimmed
// file contents are the value.
//
// Known secret files: llm-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir is the secrets directory relative to the working directory.
	DefaultDir = ".secrets"

	// LLMAPIKey names the file holding the summarization endpoint key.
	LLMAPIKey = "llm-api-key"
)

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Blank files are omitted; unreadable files are logged
// and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("kb.secret_read_error", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// APIKey returns the configured key when set, otherwise the llm-api-key
// secret from dir. An empty result means requests go out unauthenticated.
func APIKey(configured, dir string, logger *slog.Logger) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	loaded, err := Load(dir, logger)
	if err != nil {
		return "", err
	}
	return loaded[LLMAPIKey], nil
}
