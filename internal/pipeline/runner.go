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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcem/mail2do/internal/metrics"
	"github.com/bcem/mail2do/internal/models"
)

// Job is one email to extract for one mailbox owner.
type Job struct {
	Email    models.NormalizedEmail
	Identity models.Identity
}

// DedupKey identifies a job for the reprocessing guard.
func (j Job) DedupKey() string {
	return "email:" + j.Email.ID + ":" + j.Identity.Email
}

// Dedup guards against processing the same job twice.
type Dedup interface {
	IsNew(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Sink receives the actions of one email, e.g. a store or a queue.
type Sink interface {
	Save(ctx context.Context, email models.NormalizedEmail, actions []models.ResolvedAction) error
}

// BatchResult summarises a completed run.
type BatchResult struct {
	Total     int
	Processed int
	Skipped   int
	Actions   int
	Errors    int
	Elapsed   time.Duration
	Results   []EmailResult
}

// Runner processes batches of jobs. A failure or panic in one email never
// affects the others.
type Runner struct {
	extractor   *Extractor
	dedup       Dedup
	sinks       []Sink
	concurrency int
	logger      *slog.Logger
}

// RunnerConfig holds dependencies for the batch runner.
type RunnerConfig struct {
	Extractor   *Extractor
	Dedup       Dedup // optional
	Sinks       []Sink
	Concurrency int
	Logger      *slog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	conc := cfg.Concurrency
	if conc < 1 {
		conc = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		extractor:   cfg.Extractor,
		dedup:       cfg.Dedup,
		sinks:       cfg.Sinks,
		concurrency: conc,
		logger:      logger,
	}
}

// Run processes every job. Results keep the order of jobs.
func (r *Runner) Run(ctx context.Context, jobs []Job) *BatchResult {
	start := time.Now()

	r.logger.Info("starting extraction batch", "emails", len(jobs))

	results := make([]EmailResult, len(jobs))
	skipped := make([]bool, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i], skipped[i] = r.RunOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Total: len(jobs), Results: results}
	for i, res := range results {
		switch {
		case skipped[i]:
			batch.Skipped++
		case res.Err != nil:
			batch.Errors++
		default:
			batch.Processed++
			batch.Actions += len(res.Actions)
		}
	}
	batch.Elapsed = time.Since(start)

	r.logger.Info("extraction batch complete",
		"total", batch.Total,
		"processed", batch.Processed,
		"actions", batch.Actions,
		"skipped", batch.Skipped,
		"errors", batch.Errors,
		"elapsed", batch.Elapsed,
	)

	return batch
}

// RunOne processes a single job through dedup, extraction and the sinks.
// skipped is true when the job had already been processed.
func (r *Runner) RunOne(ctx context.Context, job Job) (res EmailResult, skipped bool) {
	key := job.DedupKey()

	if r.dedup != nil {
		isNew, err := r.dedup.IsNew(ctx, key)
		if err != nil {
			r.logger.Warn("dedup check failed", "email_id", job.Email.ID, "error", err)
		} else if !isNew {
			metrics.EmailsTotal.WithLabelValues("skipped").Inc()
			return EmailResult{EmailID: job.Email.ID, UserEmail: job.Identity.Email}, true
		}
	}

	res = r.safeProcess(ctx, job)

	if res.Err == nil {
		res.Err = r.deliver(ctx, job.Email, res.Actions)
	}

	if res.Err != nil {
		metrics.EmailsTotal.WithLabelValues("error").Inc()
		r.logger.Error("email extraction failed",
			"email_id", job.Email.ID,
			"user", job.Identity.Email,
			"error", res.Err,
		)
		// Let a redelivery try again.
		if r.dedup != nil {
			if err := r.dedup.Release(ctx, key); err != nil {
				r.logger.Warn("dedup release failed", "email_id", job.Email.ID, "error", err)
			}
		}
		return res, false
	}

	metrics.EmailsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("email extracted",
		"email_id", job.Email.ID,
		"user", job.Identity.Email,
		"segments", len(res.Segments),
		"actions", len(res.Actions),
	)
	return res, false
}

// safeProcess converts a panic in the pipeline into an email-level error.
func (r *Runner) safeProcess(ctx context.Context, job Job) (res EmailResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic during extraction",
				"email_id", job.Email.ID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res = EmailResult{
				EmailID:   job.Email.ID,
				UserEmail: job.Identity.Email,
				Err:       fmt.Errorf("panic: %v", p),
			}
		}
	}()
	return r.extractor.Process(ctx, job.Email, job.Identity)
}

func (r *Runner) deliver(ctx context.Context, email models.NormalizedEmail, actions []models.ResolvedAction) error {
	for _, s := range r.sinks {
		if err := s.Save(ctx, email, actions); err != nil {
			return fmt.Errorf("deliver actions: %w", err)
		}
	}
	return nil
}

// MemorySink collects actions in memory. It is used by the CLI and tests.
type MemorySink struct {
	mu      sync.Mutex
	actions []models.ResolvedAction
}

// Save implements Sink.
func (m *MemorySink) Save(_ context.Context, _ models.NormalizedEmail, actions []models.ResolvedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, actions...)
	return nil
}

// Actions returns a copy of everything saved so far.
func (m *MemorySink) Actions() []models.ResolvedAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ResolvedAction, len(m.actions))
	copy(out, m.actions)
	return out
}
