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

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/metrics"
	"github.com/bcem/mail2do/internal/models"
)

// Client wraps a Completer with per-attempt timeouts, bounded retries and
// an optional rate limit. It is safe for concurrent use.
type Client struct {
	completer   Completer
	limiter     *rate.Limiter
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
}

// NewClient creates a Client from the model settings.
func NewClient(completer Completer, cfg config.ModelConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		completer:   completer,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      logger,
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Complete sends req, retrying timeouts and unavailability with exponential
// backoff. The returned error is always an *Error.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	op := "complete " + req.Purpose

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = c.maxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	var lastErr *Error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", &Error{Kind: Unavailable, Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
			}
		}

		reply, err := c.attempt(ctx, req)
		if err == nil {
			metrics.ModelCallsTotal.WithLabelValues(req.Purpose, "ok").Inc()
			return reply, nil
		}
		lastErr = transportError(op, err)

		// The caller gave up; do not retry.
		if ctx.Err() != nil {
			break
		}
		if attempt == c.maxAttempts {
			break
		}

		metrics.ModelRetriesTotal.WithLabelValues(req.Purpose).Inc()
		wait := exp.NextBackOff()
		c.logger.Warn("model call failed, retrying",
			"purpose", req.Purpose,
			"attempt", attempt,
			"kind", lastErr.Kind,
			"wait", wait,
			"error", err,
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			lastErr = transportError(op, ctx.Err())
			attempt = c.maxAttempts
		}
	}

	metrics.ModelCallsTotal.WithLabelValues(req.Purpose, string(lastErr.Kind)).Inc()
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	actx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.completer.Complete(actx, req)
	metrics.ModelLatency.WithLabelValues(req.Purpose).Observe(time.Since(start).Seconds())

	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return reply, err
}

// Extract sends an extraction request and decodes the reply. A reply that
// does not match the schema is not retried and yields a SchemaMismatch error.
func (c *Client) Extract(ctx context.Context, req Request) (*models.ActionCandidate, error) {
	if req.Purpose == "" {
		req.Purpose = "extract"
	}
	reply, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	cand, err := ParseCandidate(reply)
	if err != nil {
		return nil, &Error{Kind: SchemaMismatch, Op: "extract", Err: err}
	}
	return cand, nil
}
