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

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/mail2do/internal/models"
)

// Handler processes one decoded email event.
type Handler func(ctx context.Context, event *models.EmailEvent) error

// Consumer pops email events from a Redis list.
type Consumer struct {
	rdb       *redis.Client
	queueName string
	wait      time.Duration
	logger    *slog.Logger
}

// NewConsumer creates a consumer that blocks up to wait per pop.
func NewConsumer(rdb *redis.Client, queueName string, wait time.Duration, logger *slog.Logger) *Consumer {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{rdb: rdb, queueName: queueName, wait: wait, logger: logger}
}

// Next pops one message. It returns nil, nil when the wait elapsed with an
// empty queue.
func (c *Consumer) Next(ctx context.Context) (*models.EmailEvent, error) {
	res, err := c.rdb.BRPop(ctx, c.wait, c.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis BRPOP: %w", err)
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) != 2 {
		return nil, fmt.Errorf("redis BRPOP: unexpected reply length %d", len(res))
	}
	return DecodeEmailEvent([]byte(res[1]))
}

// Run pops and handles messages until ctx is cancelled. Undecodable messages
// and handler errors are logged and the loop continues.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.Info("queue consumer started", "queue", c.queueName)
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("queue consumer stopped", "queue", c.queueName)
			return nil
		}
		event, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to pop email event", "queue", c.queueName, "error", err)
			sleep(ctx, time.Second)
			continue
		}
		if event == nil {
			continue
		}
		if err := handle(ctx, event); err != nil {
			c.logger.Error("failed to handle email event",
				"message_id", event.MessageID,
				"user", event.UserID,
				"error", err,
			)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// DecodeEmailEvent accepts either a Celery envelope whose first task
// argument is the event JSON, or the bare event JSON.
func DecodeEmailEvent(raw []byte) (*models.EmailEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	payload := raw
	if body, ok := fields["body"]; ok && fields["content-type"] != nil {
		var taskJSON string
		if err := json.Unmarshal(body, &taskJSON); err != nil {
			return nil, fmt.Errorf("decode celery body: %w", err)
		}
		var task celeryTask
		if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
			return nil, fmt.Errorf("decode celery task: %w", err)
		}
		if len(task.Args) == 0 {
			return nil, fmt.Errorf("celery task %s has no arguments", task.ID)
		}
		arg, ok := task.Args[0].(string)
		if !ok {
			return nil, fmt.Errorf("celery task %s: first argument is %T, want string", task.ID, task.Args[0])
		}
		payload = []byte(arg)
	}

	var event models.EmailEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode email event: %w", err)
	}
	if event.MessageID == "" {
		return nil, errors.New("decode email event: missing message_id")
	}
	return &event, nil
}
