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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
identities:
  - name: 박지훈
    email: " Jihoon.Park@Example.com "
    team: 백엔드개발팀
  - name: 주소없음
    email: ""
model:
  provider: azure_ad
  endpoint: ${TEST_MODEL_ENDPOINT}
  deployment: gpt-4o
  tenant_id: t
  client_id: c
  client_secret: s
  timeout: 10s
  max_attempts: 5
extraction:
  request_keywords: ["부탁", " ", "요청"]
  reference_offset: "+09:00"
  default_due_time: "17:30"
  attribution_window: 120
redis:
  url: redis://cache:6379/1
  queues:
    emails: in
    actions: out
database:
  url: postgres://u:p@db/mail2do
server:
  port: 9090
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_MODEL_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleYAML))

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Identities, 1)
	assert.Equal(t, "jihoon.park@example.com", cfg.Identities[0].Email)

	assert.Equal(t, "azure_ad", cfg.Model.Provider)
	assert.Equal(t, "https://example.openai.azure.com", cfg.Model.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.Model.Deployment)
	assert.Equal(t, 10*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 5, cfg.Model.MaxAttempts)

	x := cfg.Extraction
	assert.Equal(t, []string{"부탁", "요청"}, x.RequestKeywords)
	assert.Equal(t, DefaultCompletionKeywords, x.CompletionKeywords)
	assert.Equal(t, 9*time.Hour, x.ReferenceOffset)
	assert.Equal(t, 17, x.DefaultDueHour)
	assert.Equal(t, 30, x.DefaultDueMinute)
	assert.Equal(t, 120, x.AttributionWindow)
	assert.Equal(t, 40, x.TitleMaxRunes)
	assert.InDelta(t, 0.65, x.DefaultConfidence, 1e-9)

	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, "in", cfg.EmailsQueue)
	assert.Equal(t, "out", cfg.ActionsQueue)
	assert.Equal(t, "postgres://u:p@db/mail2do", cfg.DatabaseURL)
	assert.Equal(t, 9090, cfg.Port)

	require.NoError(t, cfg.Validate())

	id, ok := cfg.Identity("JIHOON.PARK@example.com")
	require.True(t, ok)
	assert.Equal(t, "백엔드개발팀", id.Team)
	_, ok = cfg.Identity("nobody@example.com")
	assert.False(t, ok)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "extraction:\n  reference_offset: soon\n"))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_PATH", writeConfig(t, "extraction:\n  default_due_time: \"25:99\"\n"))
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CONFIG_PATH", writeConfig(t, "model: [\n"))
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		model   ModelConfig
		wantErr bool
	}{
		{"openai with key", ModelConfig{Provider: "openai", APIKey: "k"}, false},
		{"openai without key", ModelConfig{Provider: "openai"}, true},
		{"azure needs endpoint", ModelConfig{Provider: "azure", APIKey: "k"}, true},
		{"azure complete", ModelConfig{Provider: "azure", APIKey: "k", Endpoint: "https://e"}, false},
		{"azure_ad needs credentials", ModelConfig{Provider: "azure_ad", Endpoint: "https://e"}, true},
		{"unknown provider", ModelConfig{Provider: "bard"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Model: tt.model}).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReferenceLocation(t *testing.T) {
	loc := ExtractionConfig{ReferenceOffset: 9 * time.Hour}.ReferenceLocation()
	name, off := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, "KST", name)
	assert.Equal(t, 9*3600, off)

	loc = ExtractionConfig{ReferenceOffset: -(5*time.Hour + 30*time.Minute)}.ReferenceLocation()
	name, off = time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, "UTC-05:30", name)
	assert.Equal(t, -(5*3600 + 1800), off)
}

func TestParseOffset(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"+09:00": 9 * time.Hour,
		"-05:30": -(5*time.Hour + 30*time.Minute),
		"9h":     9 * time.Hour,
	} {
		got, err := parseOffset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
