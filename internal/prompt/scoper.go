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

// Package prompt builds the bounded extraction request for one segment.
// It never calls the model.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bcem/mail2do/internal/llm"
	"github.com/bcem/mail2do/internal/models"
)

const schemaBlock = `다음 JSON 형식으로만, 한 줄의 유효한 JSON으로 응답하세요:
{"is_action":true,"policy_decision":"A|B|C|D|none","action":{"type":"DO|FOLLOW_UP|NONE","title":"액션 제목(20자 이내)","assignee_candidates":["이름 <이메일>","팀명"],"due_raw":"원본 기한 표현 또는 null","priority":"High|Medium|Low","tags":["태그"],"rationale":"판단 근거(1~2문장)"}}
주의:
- JSON만 출력한다. 코드블록, 설명, 주석 금지.
- 값이 없으면 null 로 채운다.
- due_raw 는 세그먼트 원문 표현을 그대로 복사한다.`

const rulesBlock = `당신은 이메일 세그먼트에서 사용자에게 할당된 액션 아이템을 추출한다.
입력은 이메일 전체가 아니라 한 세그먼트뿐이다. 세그먼트 밖의 내용을 추측하지 않는다.

"할당됨"의 정의:
- 사용자가 To 수신자이거나,
- 세그먼트에서 사용자가 직접 멘션(@이름)되었거나 사용자를 포함한 멘션 묶음 바로 뒤의 요청이거나,
- 사용자의 팀을 대상으로 한 지시이면서 사용자가 To 수신자인 경우.

정책 코드:
- A: 사용자에게 직접 요청 → DO 액션
- B: 참조(CC)로만 받음, 명시적 지목 없음 → 비액션
- C: 사용자가 보낸 요청 → FOLLOW_UP 액션
- D: 팀 단위 요청 + To 포함 → DO 액션
- none: 해당 없음 → is_action=false

title은 12~20자 한국어로, 동사+명사 형태의 핵심 작업 요약이다.
due_raw는 [기한 후보]에서 고르거나 세그먼트 본문에서 원문 그대로 발췌한다.`

const selfSentBlock = `추가 규칙(본인 발송):
- action.type은 반드시 FOLLOW_UP 이다.
- assignee_candidates에는 사용자 본인이 아니라 요청을 받은 수신자 또는 팀을 넣는다.
- due_raw는 이 세그먼트 안의 표현을 그대로 복사하거나, 없으면 null 이다.`

// Scoper builds extraction requests. maxRunes caps the segment text placed
// in the payload.
type Scoper struct {
	maxRunes int
}

// NewScoper creates a Scoper. maxRunes below 1 disables the cap.
func NewScoper(maxRunes int) *Scoper {
	return &Scoper{maxRunes: maxRunes}
}

type payload struct {
	Segment       string      `json:"segment"`
	DeadlineHints []string    `json:"deadline_hints"`
	Signals       signalsView `json:"policy_signals"`
}

type signalsView struct {
	PolicyDecision  models.PolicyCode `json:"policy_decision"`
	SelfSent        bool              `json:"self_sent"`
	ToContainsSelf  bool              `json:"to_contains_self"`
	CcContainsSelf  bool              `json:"cc_contains_self"`
	Mentions        []string          `json:"mentions"`
	RequestDetected bool              `json:"request_detected"`
}

// Build returns the system instructions and user payload for seg.
func (s *Scoper) Build(seg models.Segment, sig models.PolicySignals, id models.Identity) (llm.Request, error) {
	var sys strings.Builder
	sys.WriteString(rulesBlock)
	fmt.Fprintf(&sys, "\n\n사용자 정보:\n- 이름: %s\n- 이메일: %s\n- 팀: %s", id.Name, id.Email, id.Team)
	if sig.SelfSent {
		sys.WriteString("\n\n")
		sys.WriteString(selfSentBlock)
	}
	sys.WriteString("\n\n")
	sys.WriteString(schemaBlock)

	hints := seg.DeadlineHints
	if hints == nil {
		hints = []string{}
	}
	mentions := sig.Mentions
	if mentions == nil {
		mentions = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(payload{
		Segment:       truncateRunes(seg.Text, s.maxRunes),
		DeadlineHints: hints,
		Signals: signalsView{
			PolicyDecision:  sig.PolicyDecision,
			SelfSent:        sig.SelfSent,
			ToContainsSelf:  sig.ToContainsSelf,
			CcContainsSelf:  sig.CcContainsSelf,
			Mentions:        mentions,
			RequestDetected: sig.RequestDetected,
		},
	})
	if err != nil {
		return llm.Request{}, fmt.Errorf("encode segment payload: %w", err)
	}

	return llm.Request{
		Purpose: "extract",
		System:  sys.String(),
		User:    strings.TrimSpace(buf.String()),
	}, nil
}

func truncateRunes(s string, n int) string {
	if n < 1 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
