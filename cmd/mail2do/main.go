// Copyright (c) 2026 John Earle
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

// mail2do command-line tool
//
// Runs the extraction pipeline outside the service: batch extraction from an
// export file, deadline phrase resolution, segmentation previews and
// enqueueing exports for the service workers.
//
// Usage:
//
//	mail2do extract --file emails.json --user jihoon.park@example.com
//	mail2do deadline "이번 주 금요일까지" --received 2025-09-30T00:00:00Z
//	mail2do segment --file body.txt
//	mail2do enqueue --file emails.json --user jihoon.park@example.com
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/models"
)

var (
	configFlag   string
	logLevelFlag string
	rootCmd      = &cobra.Command{
		Use:           "mail2do",
		Short:         "Extract to-do actions from e-mail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(logLevelFlag))
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config.yaml (defaults to CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger logs JSON to stderr so stdout carries only command output.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		if err := os.Setenv("CONFIG_PATH", configFlag); err != nil {
			return nil, fmt.Errorf("set CONFIG_PATH: %w", err)
		}
	}
	return config.Load()
}

// identityFor resolves --user against the directory. --name and --team
// override or stand in for a directory entry.
func identityFor(cfg *config.Config, user, name, team string) (models.Identity, error) {
	user = strings.ToLower(strings.TrimSpace(user))
	if user == "" {
		return models.Identity{}, fmt.Errorf("--user required")
	}
	id, ok := cfg.Identity(user)
	if !ok {
		if name == "" {
			return models.Identity{}, fmt.Errorf("user %s is not in the identity directory; pass --name", user)
		}
		id = models.Identity{Email: user}
	}
	if name != "" {
		id.Name = name
	}
	if team != "" {
		id.Team = team
	}
	return id, nil
}
