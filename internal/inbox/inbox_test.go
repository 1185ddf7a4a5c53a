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

package inbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/mail2do/internal/models"
)

const batchJSON = `{
  "values": [
    {
      "recordId": "r1",
      "data": {
        "email_id": "msg-001",
        "subject": "배포 일정 공유",
        "email_body": "안녕하세요.\n@박지훈 금요일까지 검토 부탁드립니다.",
        "from_address": "kim@example.com",
        "from_name": "김민수",
        "to_addresses": ["lee@example.com", "choi@example.com"],
        "to_names": ["이영희"],
        "cc_addresses": ["park@example.com"],
        "cc_names": ["박지훈", "정하늘"],
        "date": "2025-09-30T00:00:00Z",
        "thread_id": "thread-9"
      }
    },
    {"recordId": "r2"},
    {"recordId": "r3", "data": {"subject": "", "email_body": "본문", "from_address": "a@example.com"}},
    {"recordId": "r4", "data": {"subject": "제목", "email_body": "본문", "from_address": ""}},
    {"recordId": "r5", "data": {"subject": "제목", "email_body": "본문", "from_address": "a@example.com", "date": "someday"}}
  ]
}`

func TestLoad(t *testing.T) {
	emails, err := Load(strings.NewReader(batchJSON), nil)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	e := emails[0]
	assert.Equal(t, "msg-001", e.ID)
	assert.Equal(t, "thread-9", e.ConversationID)
	assert.Equal(t, "배포 일정 공유", e.Subject)
	assert.Equal(t, models.EmailAddress{Address: "kim@example.com", Name: "김민수"}, e.Sender)
	assert.Equal(t, []models.EmailAddress{
		{Address: "lee@example.com", Name: "이영희"},
		{Address: "choi@example.com"},
	}, e.To)
	assert.Equal(t, []models.EmailAddress{
		{Address: "park@example.com", Name: "박지훈"},
		{Name: "정하늘"},
	}, e.Cc)
	assert.True(t, e.ReceivedAt.Equal(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)))

	// Bad dates keep the record with a zero timestamp.
	assert.Equal(t, "r5", emails[1].ID)
	assert.True(t, emails[1].ReceivedAt.IsZero())
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load(strings.NewReader("{"), nil)
	assert.Error(t, err)
}

func TestFromEvent(t *testing.T) {
	event := &models.EmailEvent{
		MessageID:  "msg-002",
		UserID:     "park@example.com",
		ReceivedAt: "2025-09-30T09:00:00+09:00",
		From:       models.EmailAddress{Address: "kim@example.com"},
		To:         []models.EmailAddress{{Address: "park@example.com"}},
		Subject:    "요청",
		Body: models.EmailBody{
			ContentType: "html",
			Content:     "<p>안녕하세요</p><p>@박지훈 내일까지 검토 부탁드립니다.<br/>R&amp;D 팀</p>",
		},
	}
	got, err := FromEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "msg-002", got.ID)
	assert.Equal(t, "안녕하세요\n@박지훈 내일까지 검토 부탁드립니다.\nR&D 팀", got.Body)
	assert.True(t, got.ReceivedAt.Equal(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, got.ReceivedAt.Location())

	_, err = FromEvent(&models.EmailEvent{MessageID: "x", ReceivedAt: "bogus"})
	assert.Error(t, err)
	_, err = FromEvent(nil)
	assert.Error(t, err)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"script dropped", "<script>var a = 1;</script>본문", "본문"},
		{"list items", "<ul><li>하나</li><li>둘</li></ul>", "- 하나\n- 둘"},
		{"blank runs collapse", "a<br><br><br><br>b", "a\n\nb"},
		{"nbsp", "a&nbsp;&nbsp; b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestMergeBodies(t *testing.T) {
	assert.Equal(t, "본문", mergeBodies("본문", ""))
	assert.Equal(t, "html 본문", mergeBodies("", "<p>html 본문</p>"))
	assert.Equal(t, "첫 줄\n둘째 줄\n\n셋째 줄",
		mergeBodies("첫 줄\n둘째 줄", "<p>둘째 줄</p><p>셋째 줄</p>"))
	assert.Equal(t, "같은 본문", mergeBodies("같은 본문", "<p>같은 본문</p>"))
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2025-09-30T00:00:00Z",
		"2025-09-30T00:00:00",
		"2025-09-30 00:00:00",
		"Tue, 30 Sep 2025 09:00:00 +0900",
	} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.True(t, got.Equal(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)), s)
	}
	got, err := ParseTime("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestToEvent_RoundTrip(t *testing.T) {
	email := models.NormalizedEmail{
		ID:         "msg-003",
		Subject:    "확인 요청",
		Body:       "@박지훈 내일까지 확인 부탁드립니다.",
		Sender:     models.EmailAddress{Address: "kim@example.com", Name: "김민수"},
		To:         []models.EmailAddress{{Address: "park@example.com"}},
		ReceivedAt: time.Date(2025, 9, 30, 9, 0, 0, 0, time.FixedZone("KST", 9*60*60)),
	}
	event := ToEvent(email, " Park@Example.com ")
	assert.Equal(t, "park@example.com", event.UserID)
	assert.Equal(t, "2025-09-30T00:00:00Z", event.ReceivedAt)

	back, err := FromEvent(event)
	require.NoError(t, err)
	assert.Equal(t, email.Body, back.Body)
	assert.Equal(t, email.Sender, back.Sender)
	assert.Equal(t, email.To, back.To)
	assert.Empty(t, back.Cc)
	assert.True(t, back.ReceivedAt.Equal(email.ReceivedAt))
}
