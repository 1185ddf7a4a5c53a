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

// Package validate checks and repairs model replies against the policy
// signals and the segment text. It never fails: every input yields a
// well-formed candidate.
package validate

import (
	"strings"
	"unicode/utf8"

	"github.com/bcem/mail2do/internal/models"
)

const component = "validate"

// Input is everything the corrector needs for one segment.
type Input struct {
	// Candidate is the decoded model reply; nil when the reply was missing
	// or malformed.
	Candidate   *models.ActionCandidate
	SegmentText string
	Mentions    []models.Mention // spans relative to SegmentText
	Signals     models.PolicySignals
	Identity    models.Identity
	Sender      string
}

// Result is the corrected candidate plus what the corrector changed.
type Result struct {
	Candidate   models.ActionCandidate
	Attribution Attribution
	Diagnostics []models.Diagnostic
}

// Corrector applies the validation rules in order.
type Corrector struct {
	attributor *Attributor
	titleMax   int
}

// NewCorrector creates a corrector. titleMaxRunes below 1 means 40.
func NewCorrector(attributor *Attributor, titleMaxRunes int) *Corrector {
	if titleMaxRunes < 1 {
		titleMaxRunes = 40
	}
	return &Corrector{attributor: attributor, titleMax: titleMaxRunes}
}

// Correct returns a new candidate; in.Candidate is not modified.
func (c *Corrector) Correct(in Input) Result {
	var res Result

	// Rule 1: unusable replies become the non-action default.
	if in.Candidate == nil {
		res.Candidate = models.ActionCandidate{IsAction: false, PolicyDecision: models.PolicyNone}
		return res
	}

	cand := models.ActionCandidate{
		IsAction:       in.Candidate.IsAction,
		PolicyDecision: in.Signals.PolicyDecision,
		Action:         in.Candidate.Action.Clone(),
	}
	if !cand.PolicyDecision.Valid() {
		cand.PolicyDecision = models.PolicyNone
	}
	if cand.Action != nil {
		cand.Action.Type = normalizeType(cand.Action.Type)
	}

	// Rule 2: the user's own request is something to follow up on.
	if in.Signals.SelfSent {
		if cand.Action == nil {
			cand.Action = &models.Action{}
		}
		cand.IsAction = true
		cand.Action.Type = models.ActionFollowUp
		cand.Action.AssigneeCandidates = withoutAddresses(cand.Action.AssigneeCandidates, in.Sender, in.Identity.Email)
	} else if cand.PolicyDecision == models.PolicyNone && !in.Signals.SelfMentioned {
		// Nothing in headers or mentions ties this segment to the user.
		cand.IsAction = false
	}

	if cand.Action == nil {
		return Result{Candidate: cand}
	}
	a := cand.Action

	// Rule 3
	if a.DueRaw != nil {
		if d := strings.TrimSpace(*a.DueRaw); d != "" {
			a.DueRaw = &d
		} else {
			a.DueRaw = nil
		}
	}

	// Rule 4: drop deadlines that belong to somebody else.
	if a.DueRaw != nil && a.Type != models.ActionFollowUp {
		res.Attribution = c.attributor.Attribute(in.SegmentText, *a.DueRaw, in.Mentions, in.Identity)
		if res.Attribution == AttrNone {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Component: component,
				Field:     "due_raw",
				Message:   "deadline " + *a.DueRaw + " is not attributed to the user; discarded",
			})
			a.DueRaw = nil
		}
	}

	// Rule 5
	a.Title = clampRunes(strings.TrimSpace(a.Title), c.titleMax)
	if a.Title == "" {
		a.Title = clampRunes(firstLine(in.SegmentText), c.titleMax)
	}
	a.Tags = dedupe(a.Tags)
	a.AssigneeCandidates = dedupe(a.AssigneeCandidates)
	a.Priority = normalizePriority(a.Priority)

	res.Candidate = cand
	return res
}

func normalizeType(t models.ActionType) models.ActionType {
	s := strings.ToUpper(strings.TrimSpace(string(t)))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "DO":
		return models.ActionDo
	case "FOLLOW_UP", "FOLLOWUP":
		return models.ActionFollowUp
	}
	return models.ActionNone
}

func normalizePriority(p models.Priority) models.Priority {
	for _, v := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if strings.EqualFold(strings.TrimSpace(string(p)), string(v)) {
			return v
		}
	}
	return models.PriorityMedium
}

// withoutAddresses drops candidates that contain any of addrs.
func withoutAddresses(cands []string, addrs ...string) []string {
	out := make([]string, 0, len(cands))
next:
	for _, c := range cands {
		lc := strings.ToLower(c)
		for _, addr := range addrs {
			addr = strings.ToLower(strings.TrimSpace(addr))
			if addr != "" && strings.Contains(lc, addr) {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}

// dedupe trims entries and keeps the first occurrence of each.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clampRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
