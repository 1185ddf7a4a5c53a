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

// Package queue moves work through Redis lists in Celery-compatible task
// envelopes: email events come in on one queue and resolved actions go out
// on another for the search indexer.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/mail2do/internal/models"
)

// Task names understood by the workers on either side of the queues.
const (
	TaskExtractEmail = "extraction.tasks.extract_email"
	TaskIndexAction  = "indexing.tasks.index_action"
)

// Publisher sends tasks to a Redis list in Celery task format.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// celeryTask represents a Celery-compatible task message.
type celeryTask struct {
	ID      string        `json:"id"`
	Task    string        `json:"task"`
	Args    []interface{} `json:"args"`
	Kwargs  interface{}   `json:"kwargs"`
	Retries int           `json:"retries"`
	ETA     *string       `json:"eta"`
}

// celeryMessage wraps a task for Redis transport.
type celeryMessage struct {
	Body            string                 `json:"body"`
	ContentEncoding string                 `json:"content-encoding"`
	ContentType     string                 `json:"content-type"`
	Headers         map[string]interface{} `json:"headers"`
	Properties      map[string]interface{} `json:"properties"`
}

// encodeTask builds the envelope for payload; the payload travels as a JSON
// string in the first positional argument.
func encodeTask(queueName, taskName string, payload any) (taskID string, msg []byte, err error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal payload: %w", err)
	}

	taskID = uuid.New().String()
	task := celeryTask{
		ID:     taskID,
		Task:   taskName,
		Args:   []interface{}{string(payloadJSON)},
		Kwargs: map[string]interface{}{},
	}
	taskBody, err := json.Marshal(task)
	if err != nil {
		return "", nil, fmt.Errorf("marshal celery task: %w", err)
	}

	env := celeryMessage{
		Body:            string(taskBody),
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: map[string]interface{}{
			"lang":    "py",
			"task":    taskName,
			"id":      taskID,
			"retries": 0,
		},
		Properties: map[string]interface{}{
			"correlation_id": taskID,
			"delivery_mode":  2,
			"delivery_tag":   taskID,
			"body_encoding":  "utf-8",
			"exchange":       queueName,
			"routing_key":    queueName,
			"delivery_info": map[string]string{
				"exchange":    queueName,
				"routing_key": queueName,
			},
		},
	}
	msg, err = json.Marshal(env)
	if err != nil {
		return "", nil, fmt.Errorf("marshal celery message: %w", err)
	}
	return taskID, msg, nil
}

func (p *Publisher) publish(ctx context.Context, taskName string, payload any) (string, error) {
	taskID, msg, err := encodeTask(p.queueName, taskName, payload)
	if err != nil {
		return "", err
	}
	// Celery consumers BRPOP, so producers LPUSH.
	if err := p.rdb.LPush(ctx, p.queueName, string(msg)).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}
	return taskID, nil
}

// PublishEmailEvent enqueues an email for extraction.
func (p *Publisher) PublishEmailEvent(ctx context.Context, event *models.EmailEvent) error {
	taskID, err := p.publish(ctx, TaskExtractEmail, event)
	if err != nil {
		return fmt.Errorf("publish email event: %w", err)
	}
	slog.Info("published email event to queue",
		"task_id", taskID,
		"message_id", event.MessageID,
		"user", event.UserID,
		"queue", p.queueName,
	)
	return nil
}

// PublishAction hands a resolved action to the indexer.
func (p *Publisher) PublishAction(ctx context.Context, a models.ResolvedAction) error {
	taskID, err := p.publish(ctx, TaskIndexAction, a)
	if err != nil {
		return fmt.Errorf("publish action %s: %w", a.ID, err)
	}
	slog.Debug("published action to queue",
		"task_id", taskID,
		"action_id", a.ID,
		"email_id", a.EmailID,
		"queue", p.queueName,
	)
	return nil
}

// Save publishes every action of one email. It lets the publisher act as a
// pipeline sink.
func (p *Publisher) Save(ctx context.Context, _ models.NormalizedEmail, actions []models.ResolvedAction) error {
	for _, a := range actions {
		if err := p.PublishAction(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
