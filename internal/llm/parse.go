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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bcem/mail2do/internal/models"
)

// wireCandidate is the reply schema. Pointers distinguish missing fields
// from zero values.
type wireCandidate struct {
	IsAction       *bool       `json:"is_action"`
	PolicyDecision *string     `json:"policy_decision"`
	Action         *wireAction `json:"action"`
}

type wireAction struct {
	Type               string   `json:"type"`
	Title              string   `json:"title"`
	AssigneeCandidates []string `json:"assignee_candidates"`
	DueRaw             *string  `json:"due_raw"`
	Priority           string   `json:"priority"`
	Tags               []string `json:"tags"`
	Rationale          string   `json:"rationale"`
}

// ParseCandidate decodes a model reply into an ActionCandidate. Markdown code
// fences and text around the outermost JSON object are tolerated; anything
// else that deviates from the schema is an error.
func ParseCandidate(reply string) (*models.ActionCandidate, error) {
	obj, err := extractObject(reply)
	if err != nil {
		return nil, err
	}

	var w wireCandidate
	if err := json.Unmarshal(obj, &w); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if w.IsAction == nil {
		return nil, errors.New("reply is missing is_action")
	}

	cand := &models.ActionCandidate{
		IsAction:       *w.IsAction,
		PolicyDecision: models.PolicyNone,
	}
	if w.PolicyDecision != nil {
		code := models.PolicyCode(strings.TrimSpace(*w.PolicyDecision))
		if strings.EqualFold(string(code), string(models.PolicyNone)) {
			code = models.PolicyNone
		}
		if !code.Valid() {
			return nil, fmt.Errorf("reply has unknown policy_decision %q", *w.PolicyDecision)
		}
		cand.PolicyDecision = code
	}

	if w.Action == nil {
		if cand.IsAction {
			return nil, errors.New("reply has is_action=true but no action")
		}
		return cand, nil
	}

	cand.Action = &models.Action{
		Type:               models.ActionType(w.Action.Type),
		Title:              w.Action.Title,
		AssigneeCandidates: w.Action.AssigneeCandidates,
		DueRaw:             w.Action.DueRaw,
		Priority:           models.Priority(w.Action.Priority),
		Tags:               w.Action.Tags,
		Rationale:          w.Action.Rationale,
	}
	return cand, nil
}

// extractObject returns the bytes between the first '{' and the last '}'.
func extractObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	b := []byte(s)
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end < start {
		return nil, errors.New("reply contains no JSON object")
	}
	return b[start : end+1], nil
}
