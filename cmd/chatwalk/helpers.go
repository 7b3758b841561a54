package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatwalk/chatwalk/internal/compiler"
	"github.com/chatwalk/chatwalk/internal/logging"
	"github.com/chatwalk/chatwalk/pkg/adapters/memory"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

func logLevel(cmd *cobra.Command) slog.Level {
	levelName, _ := cmd.Flags().GetString("log-level")
	switch strings.ToLower(levelName) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return logging.New(logLevel(cmd))
}

// parseGraphFile reads a bot graph from a JSON or YAML file.
func parseGraphFile(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return compiler.ParseYAML(data)
	default:
		return compiler.ParseJSON(data)
	}
}

// loadBots parses and validates every graph file in dir and publishes
// them in an in-memory registry. An empty dir yields an empty registry.
func loadBots(dir string) (*memory.Registry, error) {
	registry := memory.NewRegistry()
	if dir == "" {
		return registry, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read bots directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		graph, err := parseGraphFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if err := compiler.Validate(graph); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		registry.Register(graph)
	}
	return registry, nil
}
