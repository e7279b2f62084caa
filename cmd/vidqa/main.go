// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/vidqa"
	"github.com/poiesic/vidqa/ai/openai"
	"github.com/poiesic/vidqa/config"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/search"
	"github.com/urfave/cli/v2"
)

// newProvider builds the AI provider for a session. Tests replace it.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vidqa",
		Usage: "Answer questions about a video from its live transcript",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config YAML",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file before reading the API key",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Transcript store backend (memory, badger); overrides the config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve one session over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Listen address; overrides the config file",
					},
				},
			},
			{
				Name:      "replay",
				Usage:     "Ingest a directory of audio segments, then answer questions from stdin",
				ArgsUsage: "<segment-dir>",
				Action:    replayCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Audio format for files without an extension; overrides the config file",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and environment, applying global flag overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession builds a Session from cfg.
func openSession(cfg *config.AppConfig) (*vidqa.Session, error) {
	aiConfig := cfg.ToAIConfig()
	if !aiConfig.HasCredential() {
		slog.Warn("no API key found; transcription and answers will fail", "env", cfg.AI.APIKeyEnv)
	}

	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	opts := []vidqa.SessionOption{
		vidqa.WithRetrieverOptions(
			search.WithTopK(cfg.Retrieval.TopK),
			search.WithKeywordWindow(cfg.Retrieval.KeywordWindow),
		),
		vidqa.WithPipelineOptions(
			ingestion.WithPoolSize(cfg.Ingestion.PoolSize),
			ingestion.WithStepTimeout(cfg.StepTimeout()),
			ingestion.WithEmbeddingRetry(cfg.EmbedRetryPolicy()),
		),
	}
	if cfg.Storage.Backend == config.BackendBadger {
		opts = append(opts, vidqa.WithBadgerStore())
	}

	session, err := vidqa.NewSession(provider, opts...)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return session, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
