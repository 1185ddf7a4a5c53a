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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcem/mail2do/internal/models"
)

// --- Mock dedup filter ---

type mockDedup struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func newMockDedup() *mockDedup {
	return &mockDedup{seen: make(map[string]bool)}
}

func (m *mockDedup) IsNew(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *mockDedup) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	m.released = append(m.released, key)
	return nil
}

// --- Mock sink ---

// failingSink fails for emailID, or for every email when emailID is empty.
type failingSink struct{ emailID string }

func (f failingSink) Save(_ context.Context, email models.NormalizedEmail, _ []models.ResolvedAction) error {
	if f.emailID != "" && email.ID != f.emailID {
		return nil
	}
	return errors.New("sink down")
}

func jobsForBatch() []Job {
	ok := scenarioEmail()

	boom := scenarioEmail()
	boom.ID = "msg-boom"
	boom.Body = "@박지훈 폭발 테스트 부탁드립니다."

	quiet := scenarioEmail()
	quiet.ID = "msg-quiet"
	quiet.Body = "공유드립니다."

	return []Job{
		{Email: ok, Identity: park},
		{Email: boom, Identity: park},
		{Email: quiet, Identity: park},
	}
}

func TestRunner_Bulkhead(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"API 연동": scenarioReply}}
	sink := &MemorySink{}
	r := NewRunner(RunnerConfig{
		Extractor:   newTestExtractor(model),
		Sinks:       []Sink{failingSink{emailID: "msg-boom"}, sink},
		Concurrency: 2,
	})

	batch := r.Run(context.Background(), jobsForBatch())

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Processed)
	assert.Equal(t, 1, batch.Errors)
	assert.Equal(t, 1, batch.Actions)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "msg-001", batch.Results[0].EmailID)
	assert.Error(t, batch.Results[1].Err)
	assert.NoError(t, batch.Results[2].Err)

	saved := sink.Actions()
	require.Len(t, saved, 1)
	assert.Equal(t, "msg-001", saved[0].EmailID)
}

func TestRunner_SegmentPanicStillDelivers(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"API 연동": scenarioReply}, panicOn: "폭발"}
	sink := &MemorySink{}
	r := NewRunner(RunnerConfig{Extractor: newTestExtractor(model), Sinks: []Sink{sink}})
	email := scenarioEmail()
	email.Body = "@박지훈 폭발 테스트 부탁드립니다.\n" + email.Body

	res, skipped := r.RunOne(context.Background(), Job{Email: email, Identity: park})

	assert.False(t, skipped)
	require.NoError(t, res.Err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, 1, res.Actions[0].Ordinal)
	require.Len(t, sink.Actions(), 1)
	assert.Equal(t, "API 연동 검증 지원", sink.Actions()[0].Title)
}

func TestRunner_ExtractorPanicIsEmailError(t *testing.T) {
	dd := newMockDedup()
	r := NewRunner(RunnerConfig{Dedup: dd})
	job := Job{Email: scenarioEmail(), Identity: park}

	res, skipped := r.RunOne(context.Background(), job)

	assert.False(t, skipped)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panic")
	assert.Equal(t, []string{job.DedupKey()}, dd.released)
}

func TestRunner_DedupSkipsSecondRun(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"API 연동": scenarioReply}}
	dd := newMockDedup()
	r := NewRunner(RunnerConfig{Extractor: newTestExtractor(model), Dedup: dd})
	jobs := []Job{{Email: scenarioEmail(), Identity: park}}

	first := r.Run(context.Background(), jobs)
	second := r.Run(context.Background(), jobs)

	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, model.Calls())
}

func TestRunner_SinkFailureReleasesDedup(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"API 연동": scenarioReply}}
	dd := newMockDedup()
	r := NewRunner(RunnerConfig{
		Extractor: newTestExtractor(model),
		Dedup:     dd,
		Sinks:     []Sink{failingSink{}},
	})
	job := Job{Email: scenarioEmail(), Identity: park}

	res, skipped := r.RunOne(context.Background(), job)

	assert.False(t, skipped)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "sink down")
	assert.Equal(t, []string{job.DedupKey()}, dd.released)

	// A redelivery is processed again.
	_, skipped = r.RunOne(context.Background(), job)
	assert.False(t, skipped)
}
