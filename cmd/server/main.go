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

// mail2do extraction service
//
// Entry point for the long-running service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds the extraction pipeline around the chat-completion endpoint
//  4. Runs queue workers that pop email events, extract actions for the
//     mailbox owner, persist them and publish them for indexing
//  5. Serves the HTTP API, health and metrics
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/dedup"
	"github.com/bcem/mail2do/internal/httpapi"
	"github.com/bcem/mail2do/internal/inbox"
	"github.com/bcem/mail2do/internal/llm"
	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/pipeline"
	"github.com/bcem/mail2do/internal/queue"
	"github.com/bcem/mail2do/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting mail2do extraction service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"identities", len(cfg.Identities),
		"provider", cfg.Model.Provider,
		"deployment", cfg.Model.Deployment,
		"email_concurrency", cfg.Extraction.EmailConcurrency,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	actions, err := store.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise action store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.ActionsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Model ---
	completer, err := llm.NewLangChainCompleter(ctx, cfg.Model)
	if err != nil {
		slog.Error("failed to create model client", "error", err)
		os.Exit(1)
	}
	client := llm.NewClient(completer, cfg.Model, logger)
	x := cfg.Extraction
	fallback := llm.NewDeadlineFallback(client, x.ReferenceLocation(), x.DefaultDueHour, x.DefaultDueMinute)

	// --- Pipeline ---
	extractor := pipeline.FromConfig(x, client, fallback, logger)
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Extractor:   extractor,
		Dedup:       dedup.NewFilter(rdb, dedup.DefaultTTL),
		Sinks:       []pipeline.Sink{actions, publisher},
		Concurrency: x.EmailConcurrency,
		Logger:      logger,
	})

	// --- HTTP API, health and metrics ---
	api := httpapi.NewHandler(httpapi.HandlerConfig{
		Extractor: extractor,
		Store:     actions,
		Directory: cfg.Identity,
		Checks: []httpapi.Check{
			{Name: "redis", Probe: publisher.Ping},
			{Name: "postgres", Probe: actions.Ping},
		},
		Logger: logger,
	})
	ready, err := httpapi.Serve(ctx, cfg.Port, api, map[string]http.Handler{
		"GET /metrics": promhttp.Handler(),
	})
	if err != nil {
		slog.Error("failed to start API server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Queue workers ---
	consumer := queue.NewConsumer(rdb, cfg.EmailsQueue, 0, logger)
	handle := func(ctx context.Context, event *models.EmailEvent) error {
		return handleEvent(ctx, cfg, runner, event)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < x.EmailConcurrency; i++ {
		g.Go(func() error {
			return consumer.Run(gctx, handle)
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("queue worker error", "error", err)
	}

	slog.Info("mail2do extraction service stopped")
}

// handleEvent extracts one queued email for its mailbox owner.
func handleEvent(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, event *models.EmailEvent) error {
	id, ok := cfg.Identity(event.UserID)
	if !ok {
		slog.Warn("no identity for mailbox owner, skipping",
			"message_id", event.MessageID,
			"user", event.UserID,
		)
		return nil
	}

	email, err := inbox.FromEvent(event)
	if err != nil {
		return err
	}

	res, _ := runner.RunOne(ctx, pipeline.Job{Email: email, Identity: id})
	return res.Err
}
