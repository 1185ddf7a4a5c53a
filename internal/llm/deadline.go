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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const deadlineSystem = `너는 한국어 기한 표현을 날짜로 바꾸는 도우미다.
기준 시각과 기한 표현이 주어지면 아래 JSON 한 줄만 출력한다. 설명을 붙이지 않는다.
{"due":"YYYY-MM-DD HH:MM"}
시간이 없으면 {"due":"YYYY-MM-DD"}, 날짜를 알 수 없으면 {"due":null}.`

// ErrNoDate is wrapped when the model could not produce a date.
var ErrNoDate = errors.New("model could not resolve a date")

// DeadlineFallback asks the model for a date when no deterministic rule
// matched. loc is the reference zone; defaultHour and defaultMinute apply
// when the reply carries no clock time.
type DeadlineFallback struct {
	client        *Client
	loc           *time.Location
	defaultHour   int
	defaultMinute int
}

// NewDeadlineFallback creates a fallback bound to client.
func NewDeadlineFallback(client *Client, loc *time.Location, defaultHour, defaultMinute int) *DeadlineFallback {
	return &DeadlineFallback{client: client, loc: loc, defaultHour: defaultHour, defaultMinute: defaultMinute}
}

// ResolveDeadline implements deadline.Fallback.
func (f *DeadlineFallback) ResolveDeadline(ctx context.Context, raw string, ref time.Time) (time.Time, error) {
	payload, err := json.Marshal(map[string]string{
		"reference": ref.In(f.loc).Format("2006-01-02 15:04 (Mon)"),
		"phrase":    raw,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("encode deadline request: %w", err)
	}

	reply, err := f.client.Complete(ctx, Request{Purpose: "deadline", System: deadlineSystem, User: string(payload)})
	if err != nil {
		return time.Time{}, err
	}

	obj, err := extractObject(reply)
	if err != nil {
		return time.Time{}, &Error{Kind: SchemaMismatch, Op: "resolve deadline", Err: err}
	}
	var out struct {
		Due *string `json:"due"`
	}
	if err := json.Unmarshal(obj, &out); err != nil {
		return time.Time{}, &Error{Kind: SchemaMismatch, Op: "resolve deadline", Err: err}
	}
	if out.Due == nil || strings.TrimSpace(*out.Due) == "" {
		return time.Time{}, ErrNoDate
	}

	due := strings.TrimSpace(*out.Due)
	if t, err := time.ParseInLocation("2006-01-02 15:04", due, f.loc); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", due, f.loc)
	if err != nil {
		return time.Time{}, &Error{Kind: SchemaMismatch, Op: "resolve deadline", Err: fmt.Errorf("parse due %q: %w", due, err)}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), f.defaultHour, f.defaultMinute, 0, 0, f.loc), nil
}
