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

// Package policy decides, from header and mention evidence, whether a
// segment should be treated as an action for the user and how to frame it.
package policy

import (
	"strconv"
	"strings"

	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/segment"
)

const component = "policy"

// Input is the evidence the decision rules look at.
type Input struct {
	SelfSent        bool
	ToContainsSelf  bool
	CcContainsSelf  bool
	RequestDetected bool
	SelfMentioned   bool
	OtherMentioned  bool
	TeamInBody      bool
}

// Decide evaluates the rules in precedence order; the first match wins.
// The result is always one of the five policy codes.
func Decide(in Input) models.PolicyCode {
	switch {
	// A: addressed directly and asked to do something, with nobody else
	// tagged or with the user tagged explicitly.
	case in.ToContainsSelf && in.RequestDetected && (!in.OtherMentioned || in.SelfMentioned):
		return models.PolicyA
	// A: explicit tagging overrides a passive CC.
	case in.CcContainsSelf && !in.ToContainsSelf && in.SelfMentioned:
		return models.PolicyA
	// B: CC only, informational.
	case in.CcContainsSelf && !in.ToContainsSelf:
		return models.PolicyB
	// C: the user asked someone else.
	case in.SelfSent && in.RequestDetected:
		return models.PolicyC
	// D: team-directed instruction reaching the user through To.
	case in.ToContainsSelf && in.RequestDetected && in.TeamInBody:
		return models.PolicyD
	}
	return models.PolicyNone
}

// Attempt reports whether a segment with these signals is worth sending to
// the model. Without a policy code, a self-sent header or a self mention the
// outcome is fixed to "no action".
func Attempt(sig models.PolicySignals) bool {
	return sig.PolicyDecision != models.PolicyNone || sig.SelfSent || sig.SelfMentioned
}

// Engine computes policy signals. Its keyword list is fixed at construction.
type Engine struct {
	requestKeywords []string
}

// NewEngine creates an engine using the given request keywords.
func NewEngine(requestKeywords []string) *Engine {
	kw := make([]string, 0, len(requestKeywords))
	for _, k := range requestKeywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	return &Engine{requestKeywords: kw}
}

// RequestDetected reports whether any request keyword occurs in text.
func (e *Engine) RequestDetected(text string) bool {
	for _, k := range e.requestKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Email computes the header-level signals for one email. Problems with the
// headers never abort: the affected signal defaults to false and a
// diagnostic is returned alongside.
func (e *Engine) Email(email models.NormalizedEmail, id models.Identity, doc segment.Document) (models.PolicySignals, []models.Diagnostic) {
	var diags []models.Diagnostic
	self := strings.TrimSpace(id.Email)

	if self == "" {
		diags = append(diags, models.Diagnostic{Component: component, Field: "identity.email", Message: "identity has no address; header signals default to false"})
	}
	if strings.TrimSpace(email.Sender.Address) == "" {
		diags = append(diags, models.Diagnostic{Component: component, Field: "sender", Message: "sender address missing"})
	}
	diags = append(diags, checkRecipients("to", email.To)...)
	diags = append(diags, checkRecipients("cc", email.Cc)...)

	in := Input{
		SelfSent:        self != "" && email.Sender.Matches(self),
		ToContainsSelf:  self != "" && containsAddress(email.To, self),
		CcContainsSelf:  self != "" && containsAddress(email.Cc, self),
		RequestDetected: e.RequestDetected(doc.Body),
		TeamInBody:      id.Team != "" && strings.Contains(doc.Body, id.Team),
	}
	in.SelfMentioned, in.OtherMentioned = classify(doc.Mentions, id)

	return signals(in, doc.Mentions), diags
}

// Segment narrows header signals to one segment: mention evidence and
// request detection come from the segment alone. header is not modified.
func (e *Engine) Segment(header models.PolicySignals, seg models.Segment, id models.Identity) models.PolicySignals {
	in := Input{
		SelfSent:        header.SelfSent,
		ToContainsSelf:  header.ToContainsSelf,
		CcContainsSelf:  header.CcContainsSelf,
		RequestDetected: e.RequestDetected(seg.Text),
		TeamInBody:      header.TeamInBody,
	}
	in.SelfMentioned, in.OtherMentioned = classify(seg.Mentions, id)

	return signals(in, seg.Mentions)
}

func signals(in Input, mentions []models.Mention) models.PolicySignals {
	raw := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if !containsString(raw, m.Raw) {
			raw = append(raw, m.Raw)
		}
	}
	return models.PolicySignals{
		PolicyDecision:  Decide(in),
		SelfSent:        in.SelfSent,
		ToContainsSelf:  in.ToContainsSelf,
		CcContainsSelf:  in.CcContainsSelf,
		Mentions:        raw,
		RequestDetected: in.RequestDetected,
		SelfMentioned:   in.SelfMentioned,
		OtherMentioned:  in.OtherMentioned,
		TeamInBody:      in.TeamInBody,
	}
}

// classify splits mentions into the user (or the user's team) and others.
func classify(mentions []models.Mention, id models.Identity) (self, other bool) {
	for _, m := range mentions {
		switch {
		case m.TargetsSelf(id):
			self = true
		case m.TargetsTeam(id):
		default:
			other = true
		}
	}
	return self, other
}

func checkRecipients(field string, list []models.EmailAddress) []models.Diagnostic {
	var diags []models.Diagnostic
	for i, a := range list {
		addr := strings.TrimSpace(a.Address)
		if addr == "" || !strings.Contains(addr, "@") {
			diags = append(diags, models.Diagnostic{
				Component: component,
				Field:     field,
				Message:   "recipient " + strconv.Itoa(i) + " has no usable address",
			})
		}
	}
	return diags
}

func containsAddress(list []models.EmailAddress, addr string) bool {
	for _, a := range list {
		if a.Matches(addr) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
