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
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/llm"
	"github.com/bcem/mail2do/internal/models"
)

func testExtraction() config.ExtractionConfig {
	return config.ExtractionConfig{
		RequestKeywords:    config.DefaultRequestKeywords,
		CompletionKeywords: config.DefaultCompletionKeywords,
		TitleMaxRunes:      40,
		MaxDeadlineHints:   5,
		SegmentMaxRunes:    3000,
		AttributionWindow:  200,
		DefaultConfidence:  0.65,
		ReferenceOffset:    9 * time.Hour,
		DefaultDueHour:     18,
		EmailConcurrency:   2,
		SegmentConcurrency: 2,
	}
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
		assert.NotEmpty(t, cmd.Short, cmd.Name())
	}
	for _, want := range []string{"extract", "deadline", "segment", "enqueue"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRunDeadline(t *testing.T) {
	var buf bytes.Buffer
	err := runDeadline(context.Background(), &buf, testExtraction(), nil, "이번 주 금요일까지", "2025-09-30T00:00:00Z")
	require.NoError(t, err)

	var got deadlineReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "this_week", got.Rule)
	require.NotNil(t, got.DueLocal)
	assert.Equal(t, "2025-10-03 18:00 KST", *got.DueLocal)
	require.NotNil(t, got.DueUTC)
	assert.Equal(t, "2025-10-03T09:00:00Z", *got.DueUTC)

	buf.Reset()
	require.NoError(t, runDeadline(context.Background(), &buf, testExtraction(), nil, "언젠가", "2025-09-30T00:00:00Z"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "unresolved", got.Rule)
	assert.Nil(t, got.DueLocal)

	assert.Error(t, runDeadline(context.Background(), &buf, testExtraction(), nil, "내일", "not a time"))
}

func TestRunSegment(t *testing.T) {
	body := "안녕하세요.\n@Alice 금요일까지 보고서 제출 부탁드립니다.\n@박지훈 모레까지 리뷰 부탁드립니다."
	var buf bytes.Buffer
	require.NoError(t, runSegment(strings.NewReader(body), &buf, 5))

	var got segmentReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got.Mentions, 2)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, 0, got.Segments[0].Span.Start)
	assert.Equal(t, len(body), got.Segments[1].Span.End)
	assert.NotEmpty(t, got.Segments[1].DeadlineHints)

	buf.Reset()
	require.NoError(t, runSegment(strings.NewReader(""), &buf, 5))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Empty(t, got.Segments)
}

type replyModel struct{ reply string }

func (m replyModel) Extract(_ context.Context, _ llm.Request) (*models.ActionCandidate, error) {
	return llm.ParseCandidate(m.reply)
}

func TestRunBatch(t *testing.T) {
	park := models.Identity{Name: "박지훈", Email: "jihoon.park@example.com", Team: "백엔드개발팀"}
	received := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	emails := []models.NormalizedEmail{
		{
			ID:         "msg-001",
			Subject:    "리뷰 요청",
			Body:       "@박지훈 모레까지 리뷰 부탁드립니다.",
			Sender:     models.EmailAddress{Address: "kim@example.com"},
			To:         []models.EmailAddress{{Address: "jihoon.park@example.com"}},
			ReceivedAt: received,
		},
		{
			ID:         "msg-002",
			Subject:    "공지",
			Body:       "사내 공지입니다.",
			Sender:     models.EmailAddress{Address: "hr@example.com"},
			To:         []models.EmailAddress{{Address: "all@example.com"}},
			ReceivedAt: received,
		},
	}
	model := replyModel{reply: `{"is_action":true,"policy_decision":"A","action":{"type":"DO","title":"리뷰","assignee_candidates":[],"due_raw":"모레까지","priority":"Medium","tags":[],"rationale":"요청"}}`}

	var buf bytes.Buffer
	res, err := runBatch(context.Background(), testExtraction(), model, nil, emails, park, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Actions)

	var report batchReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, 0, report.Stats.Errors)
	require.Len(t, report.Actions, 1)
	assert.Equal(t, "msg-001", report.Actions[0].EmailID)
	require.NotNil(t, report.Actions[0].DueKST)
	assert.Equal(t, "2025-10-02 18:00 KST", *report.Actions[0].DueKST)
}

func TestIdentityFor(t *testing.T) {
	cfg := &config.Config{Identities: []models.Identity{{Name: "박지훈", Email: "jihoon.park@example.com", Team: "백엔드개발팀"}}}

	id, err := identityFor(cfg, "Jihoon.Park@example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, "박지훈", id.Name)

	id, err = identityFor(cfg, "jihoon.park@example.com", "", "플랫폼팀")
	require.NoError(t, err)
	assert.Equal(t, "플랫폼팀", id.Team)

	_, err = identityFor(cfg, "new@example.com", "", "")
	assert.Error(t, err)

	id, err = identityFor(cfg, "new@example.com", "신입", "")
	require.NoError(t, err)
	assert.Equal(t, models.Identity{Name: "신입", Email: "new@example.com"}, id)

	_, err = identityFor(cfg, " ", "", "")
	assert.Error(t, err)
}
