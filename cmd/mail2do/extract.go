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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/deadline"
	"github.com/bcem/mail2do/internal/inbox"
	"github.com/bcem/mail2do/internal/llm"
	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/pipeline"
	"github.com/bcem/mail2do/internal/queue"
	"github.com/bcem/mail2do/internal/store"
)

func init() {
	var (
		file, user, name, team, out string
		persist, publish           bool
	)
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract actions from a batch export file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			id, err := identityFor(cfg, user, name, team)
			if err != nil {
				return err
			}
			emails, err := inbox.LoadFile(file, slog.Default())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			completer, err := llm.NewLangChainCompleter(ctx, cfg.Model)
			if err != nil {
				return err
			}
			client := llm.NewClient(completer, cfg.Model, slog.Default())
			x := cfg.Extraction
			fallback := llm.NewDeadlineFallback(client, x.ReferenceLocation(), x.DefaultDueHour, x.DefaultDueMinute)

			var sinks []pipeline.Sink
			if persist {
				pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("create Postgres pool: %w", err)
				}
				defer pool.Close()
				st, err := store.NewStore(ctx, pool)
				if err != nil {
					return err
				}
				sinks = append(sinks, st)
			}
			if publish {
				rdb, err := redisClient(cfg)
				if err != nil {
					return err
				}
				defer rdb.Close()
				sinks = append(sinks, queue.NewPublisher(rdb, cfg.ActionsQueue))
			}

			w := io.Writer(os.Stdout)
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			_, err = runBatch(ctx, x, client, fallback, emails, id, sinks, w)
			return err
		},
	}
	extractCmd.Flags().StringVarP(&file, "file", "f", "", "Batch export file (required)")
	extractCmd.Flags().StringVarP(&user, "user", "u", "", "Mailbox owner e-mail (required)")
	extractCmd.Flags().StringVar(&name, "name", "", "Display name, overrides the directory")
	extractCmd.Flags().StringVar(&team, "team", "", "Team, overrides the directory")
	extractCmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	extractCmd.Flags().BoolVar(&persist, "persist", false, "Upsert actions into Postgres")
	extractCmd.Flags().BoolVar(&publish, "publish", false, "Publish actions to the actions queue")
	_ = extractCmd.MarkFlagRequired("file")
	_ = extractCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(extractCmd)
}

// batchStats mirrors the counters reported after a batch.
type batchStats struct {
	Total     int   `json:"total"`
	Processed int   `json:"processed"`
	Skipped   int   `json:"skipped"`
	Actions   int   `json:"actions"`
	Errors    int   `json:"errors"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

type batchReport struct {
	Stats   batchStats              `json:"stats"`
	Actions []models.ResolvedAction `json:"actions"`
}

// runBatch extracts every email for id and writes a JSON report to w.
func runBatch(ctx context.Context, x config.ExtractionConfig, model pipeline.CandidateSource, fallback deadline.Fallback, emails []models.NormalizedEmail, id models.Identity, sinks []pipeline.Sink, w io.Writer) (*pipeline.BatchResult, error) {
	collected := &pipeline.MemorySink{}
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Extractor:   pipeline.FromConfig(x, model, fallback, slog.Default()),
		Sinks:       append([]pipeline.Sink{collected}, sinks...),
		Concurrency: x.EmailConcurrency,
		Logger:      slog.Default(),
	})

	jobs := make([]pipeline.Job, len(emails))
	for i, e := range emails {
		jobs[i] = pipeline.Job{Email: e, Identity: id}
	}
	res := runner.Run(ctx, jobs)

	report := batchReport{
		Stats: batchStats{
			Total:     res.Total,
			Processed: res.Processed,
			Skipped:   res.Skipped,
			Actions:   res.Actions,
			Errors:    res.Errors,
			ElapsedMS: res.Elapsed.Milliseconds(),
		},
		Actions: collected.Actions(),
	}
	if report.Actions == nil {
		report.Actions = []models.ResolvedAction{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	return res, nil
}

func redisClient(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return rdb, nil
}
