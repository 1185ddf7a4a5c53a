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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/models"
)

// scriptedCompleter returns queued replies and errors in order.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	block   bool
	calls   int
	last    Request
}

func (s *scriptedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.last = req
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func (s *scriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Timeout:     50 * time.Millisecond,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestParseCandidate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
		check   func(t *testing.T, c *models.ActionCandidate)
	}{
		{
			name:  "plain object",
			reply: `{"is_action":true,"policy_decision":"A","action":{"type":"DO","title":"보고서 제출","assignee_candidates":["박지훈 <jihoon.park@example.com>"],"due_raw":"금요일까지","priority":"High","tags":["보고서"],"rationale":"직접 요청"}}`,
			check: func(t *testing.T, c *models.ActionCandidate) {
				assert.True(t, c.IsAction)
				assert.Equal(t, models.PolicyA, c.PolicyDecision)
				require.NotNil(t, c.Action)
				assert.Equal(t, models.ActionDo, c.Action.Type)
				require.NotNil(t, c.Action.DueRaw)
				assert.Equal(t, "금요일까지", *c.Action.DueRaw)
			},
		},
		{
			name:  "fenced with prose",
			reply: "결과입니다\n```json\n{\"is_action\":false,\"policy_decision\":\"none\",\"action\":null}\n```",
			check: func(t *testing.T, c *models.ActionCandidate) {
				assert.False(t, c.IsAction)
				assert.Equal(t, models.PolicyNone, c.PolicyDecision)
				assert.Nil(t, c.Action)
			},
		},
		{
			name:  "null due stays nil",
			reply: `{"is_action":true,"policy_decision":"C","action":{"type":"FOLLOW_UP","title":"회신 확인","due_raw":null}}`,
			check: func(t *testing.T, c *models.ActionCandidate) {
				assert.Nil(t, c.Action.DueRaw)
			},
		},
		{name: "not json", reply: "I think this is an action.", wantErr: true},
		{name: "missing is_action", reply: `{"policy_decision":"A"}`, wantErr: true},
		{name: "wrong type", reply: `{"is_action":"yes"}`, wantErr: true},
		{name: "unknown policy", reply: `{"is_action":false,"policy_decision":"E"}`, wantErr: true},
		{name: "action flag without action", reply: `{"is_action":true,"policy_decision":"A","action":null}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCandidate(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestClient_RetriesUnavailable(t *testing.T) {
	fake := &scriptedCompleter{
		errs:    []error{errors.New("503"), errors.New("429")},
		replies: []string{"", "", `{"is_action":false,"policy_decision":"none","action":null}`},
	}
	c := NewClient(fake, testModelConfig(), nil)

	cand, err := c.Extract(context.Background(), Request{System: "s", User: "u"})

	require.NoError(t, err)
	assert.False(t, cand.IsAction)
	assert.Equal(t, 3, fake.Calls())
	assert.Equal(t, "extract", fake.last.Purpose)
}

func TestClient_ExhaustedRetriesAreUnavailable(t *testing.T) {
	down := errors.New("connection refused")
	fake := &scriptedCompleter{errs: []error{down, down, down, down}}
	c := NewClient(fake, testModelConfig(), nil)

	_, err := c.Complete(context.Background(), Request{Purpose: "extract"})

	require.Error(t, err)
	assert.Equal(t, Unavailable, KindOf(err))
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 3, fake.Calls())
}

func TestClient_TimeoutKind(t *testing.T) {
	fake := &scriptedCompleter{block: true}
	cfg := testModelConfig()
	cfg.MaxAttempts = 2
	c := NewClient(fake, cfg, nil)

	_, err := c.Complete(context.Background(), Request{Purpose: "extract"})

	require.Error(t, err)
	assert.Equal(t, Timeout, KindOf(err))
	assert.Equal(t, 2, fake.Calls())
}

func TestClient_SchemaMismatchIsNotRetried(t *testing.T) {
	fake := &scriptedCompleter{replies: []string{"not a record"}}
	c := NewClient(fake, testModelConfig(), nil)

	cand, err := c.Extract(context.Background(), Request{})

	assert.Nil(t, cand)
	assert.Equal(t, SchemaMismatch, KindOf(err))
	assert.Equal(t, 1, fake.Calls())
}

func TestClient_CanceledContextStops(t *testing.T) {
	fake := &scriptedCompleter{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(fake, testModelConfig(), nil)

	_, err := c.Complete(ctx, Request{Purpose: "extract"})

	require.Error(t, err)
	assert.Equal(t, 1, fake.Calls())
}

func TestDeadlineFallback(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	ref := time.Date(2025, 9, 30, 9, 0, 0, 0, kst)

	t.Run("date only uses default clock", func(t *testing.T) {
		fake := &scriptedCompleter{replies: []string{`{"due":"2025-10-05"}`}}
		f := NewDeadlineFallback(NewClient(fake, testModelConfig(), nil), kst, 18, 0)

		got, err := f.ResolveDeadline(context.Background(), "다음 일요일쯤", ref)

		require.NoError(t, err)
		assert.True(t, time.Date(2025, 10, 5, 18, 0, 0, 0, kst).Equal(got), "got %s", got)
		assert.Equal(t, "deadline", fake.last.Purpose)
		assert.Contains(t, fake.last.User, "다음 일요일쯤")
	})

	t.Run("explicit clock", func(t *testing.T) {
		fake := &scriptedCompleter{replies: []string{`{"due":"2025-10-06 10:30"}`}}
		f := NewDeadlineFallback(NewClient(fake, testModelConfig(), nil), kst, 18, 0)

		got, err := f.ResolveDeadline(context.Background(), "한글날 전 오전", ref)

		require.NoError(t, err)
		assert.True(t, time.Date(2025, 10, 6, 10, 30, 0, 0, kst).Equal(got), "got %s", got)
	})

	t.Run("null due", func(t *testing.T) {
		fake := &scriptedCompleter{replies: []string{`{"due":null}`}}
		f := NewDeadlineFallback(NewClient(fake, testModelConfig(), nil), kst, 18, 0)

		_, err := f.ResolveDeadline(context.Background(), "언젠가", ref)

		assert.ErrorIs(t, err, ErrNoDate)
	})

	t.Run("garbage", func(t *testing.T) {
		fake := &scriptedCompleter{replies: []string{`{"due":"next week"}`}}
		f := NewDeadlineFallback(NewClient(fake, testModelConfig(), nil), kst, 18, 0)

		_, err := f.ResolveDeadline(context.Background(), "언젠가", ref)

		assert.Equal(t, SchemaMismatch, KindOf(err))
	})
}
