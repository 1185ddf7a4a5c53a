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

package models

import "slices"

// PolicyCode is the discrete responsibility classification of a segment.
type PolicyCode string

const (
	PolicyA    PolicyCode = "A"
	PolicyB    PolicyCode = "B"
	PolicyC    PolicyCode = "C"
	PolicyD    PolicyCode = "D"
	PolicyNone PolicyCode = "none"
)

// Valid reports whether c is one of the five policy codes.
func (c PolicyCode) Valid() bool {
	switch c {
	case PolicyA, PolicyB, PolicyC, PolicyD, PolicyNone:
		return true
	}
	return false
}

// ActionType distinguishes work the user must do from work the user is
// waiting on.
type ActionType string

const (
	ActionDo       ActionType = "DO"
	ActionFollowUp ActionType = "FOLLOW_UP"
	ActionNone     ActionType = "NONE"
)

// Priority of an extracted action.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Span is a half-open byte range [Start, End) into an email body.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset lies inside the span.
func (s Span) Contains(offset int) bool { return offset >= s.Start && offset < s.End }

// Mention is an "@Name(Team)" token found in a body.
type Mention struct {
	Raw         string `json:"raw"`
	DisplayName string `json:"display_name"`
	Team        string `json:"team,omitempty"`
	Span        Span   `json:"span"`
}

// Segment is a contiguous slice of the body that scopes one extraction attempt.
type Segment struct {
	Ordinal       int       `json:"ordinal"`
	Text          string    `json:"text"`
	Span          Span      `json:"span"`
	Mentions      []Mention `json:"mentions,omitempty"`
	DeadlineHints []string  `json:"deadline_hints"`
}

// PolicySignals is the evidence the policy engine used plus its decision.
// A value is never mutated after computation; narrowing produces a new one.
type PolicySignals struct {
	PolicyDecision  PolicyCode `json:"policy_decision"`
	SelfSent        bool       `json:"self_sent"`
	ToContainsSelf  bool       `json:"to_contains_self"`
	CcContainsSelf  bool       `json:"cc_contains_self"`
	Mentions        []string   `json:"mentions"`
	RequestDetected bool       `json:"request_detected"`

	// Derived mention evidence, kept so the validator and prompt agree
	// with the engine about who was tagged.
	SelfMentioned  bool `json:"self_mentioned"`
	OtherMentioned bool `json:"other_mentioned"`
	TeamInBody     bool `json:"team_in_body"`
}

// Action is the body of an ActionCandidate.
type Action struct {
	Type               ActionType `json:"type"`
	Title              string     `json:"title"`
	AssigneeCandidates []string   `json:"assignee_candidates"`
	DueRaw             *string    `json:"due_raw"`
	Priority           Priority   `json:"priority"`
	Tags               []string   `json:"tags"`
	Rationale          string     `json:"rationale"`
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	c := *a
	c.AssigneeCandidates = slices.Clone(a.AssigneeCandidates)
	c.Tags = slices.Clone(a.Tags)
	if a.DueRaw != nil {
		d := *a.DueRaw
		c.DueRaw = &d
	}
	return &c
}

// ActionCandidate is the model's structured reply, before and after validation.
type ActionCandidate struct {
	IsAction       bool       `json:"is_action"`
	PolicyDecision PolicyCode `json:"policy_decision"`
	Action         *Action    `json:"action"`
}

// ResolvedAction is the final, persisted work item for one segment.
type ResolvedAction struct {
	ID                 string     `json:"id"`
	EmailID            string     `json:"email_id"`
	Ordinal            int        `json:"ordinal"`
	UserEmail          string     `json:"user_email"`
	Subject            string     `json:"subject"`
	ReceivedAt         string     `json:"received_at"`
	IsAction           bool       `json:"is_action"`
	PolicyDecision     PolicyCode `json:"policy_decision"`
	Type               ActionType `json:"type"`
	Title              string     `json:"title"`
	Assignee           string     `json:"assignee"`
	AssigneeCandidates []string   `json:"assignee_candidates"`
	DueRaw             *string    `json:"due_raw"`
	DueKST             *string    `json:"due_kst"`
	DueUTC             *string    `json:"due_utc"`
	Priority           Priority   `json:"priority"`
	Tags               []string   `json:"tags"`
	Rationale          string     `json:"rationale"`
	Confidence         float64    `json:"confidence"`
	Notes              string     `json:"notes"`
}

// Diagnostic records a recovered input problem. Diagnostics never alter
// control flow; they exist to be logged and counted.
type Diagnostic struct {
	Component string `json:"component"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}
