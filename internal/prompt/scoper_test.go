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

package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/mail2do/internal/models"
)

var park = models.Identity{Name: "박지훈", Email: "jihoon.park@example.com", Team: "백엔드개발팀"}

func TestBuild_PayloadIsSegmentOnly(t *testing.T) {
	seg := models.Segment{
		Ordinal:       1,
		Text:          "@박지훈(백엔드개발팀), 이번 주 금요일까지 API 연동 부분 검증 지원 부탁드립니다.",
		DeadlineHints: []string{"이번 주 금요일까지"},
	}
	sig := models.PolicySignals{PolicyDecision: models.PolicyA, RequestDetected: true, Mentions: []string{"@박지훈(백엔드개발팀)"}}

	req, err := NewScoper(3000).Build(seg, sig, park)
	require.NoError(t, err)

	assert.Equal(t, "extract", req.Purpose)
	assert.NotContains(t, req.User, "\n")

	var got struct {
		Segment       string   `json:"segment"`
		DeadlineHints []string `json:"deadline_hints"`
		Signals       struct {
			PolicyDecision string   `json:"policy_decision"`
			SelfSent       bool     `json:"self_sent"`
			Mentions       []string `json:"mentions"`
		} `json:"policy_signals"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.User), &got))
	assert.Equal(t, seg.Text, got.Segment)
	assert.Equal(t, []string{"이번 주 금요일까지"}, got.DeadlineHints)
	assert.Equal(t, "A", got.Signals.PolicyDecision)
	assert.Equal(t, []string{"@박지훈(백엔드개발팀)"}, got.Signals.Mentions)

	assert.Contains(t, req.System, "jihoon.park@example.com")
	assert.Contains(t, req.System, "백엔드개발팀")
	assert.NotContains(t, req.System, "본인 발송")
}

func TestBuild_SelfSentAddsFollowUpRules(t *testing.T) {
	seg := models.Segment{Text: "@Alice 보고서 회신 부탁드립니다."}
	sig := models.PolicySignals{PolicyDecision: models.PolicyC, SelfSent: true, RequestDetected: true}

	req, err := NewScoper(3000).Build(seg, sig, park)
	require.NoError(t, err)

	assert.Contains(t, req.System, "본인 발송")
	assert.Contains(t, req.System, "FOLLOW_UP 이다")
}

func TestBuild_EmptyListsEncodeAsArrays(t *testing.T) {
	req, err := NewScoper(3000).Build(models.Segment{Text: "안녕하세요"}, models.PolicySignals{PolicyDecision: models.PolicyNone}, park)
	require.NoError(t, err)

	assert.Contains(t, req.User, `"deadline_hints":[]`)
	assert.Contains(t, req.User, `"mentions":[]`)
}

func TestBuild_TruncatesByRunes(t *testing.T) {
	text := strings.Repeat("가", 10)

	req, err := NewScoper(4).Build(models.Segment{Text: text}, models.PolicySignals{PolicyDecision: models.PolicyNone}, park)
	require.NoError(t, err)

	assert.Contains(t, req.User, `"segment":"가가가가"`)
}

func TestBuild_Deterministic(t *testing.T) {
	seg := models.Segment{Text: "@박지훈 내일까지 확인 부탁", DeadlineHints: []string{"내일까지"}}
	sig := models.PolicySignals{PolicyDecision: models.PolicyA, ToContainsSelf: true, RequestDetected: true}
	s := NewScoper(3000)

	a, err := s.Build(seg, sig, park)
	require.NoError(t, err)
	b, err := s.Build(seg, sig, park)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
