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

// Package pipeline wires segmentation, policy, prompt scoping, validation
// and deadline resolution into per-email extraction, and runs batches of
// emails with per-email isolation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bcem/mail2do/internal/deadline"
	"github.com/bcem/mail2do/internal/llm"
	"github.com/bcem/mail2do/internal/metrics"
	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/policy"
	"github.com/bcem/mail2do/internal/prompt"
	"github.com/bcem/mail2do/internal/segment"
	"github.com/bcem/mail2do/internal/validate"
)

// CandidateSource answers one extraction request. *llm.Client implements it.
type CandidateSource interface {
	Extract(ctx context.Context, req llm.Request) (*models.ActionCandidate, error)
}

// SegmentOutcome records what happened to one segment.
type SegmentOutcome struct {
	Segment     models.Segment
	Signals     models.PolicySignals
	Attempted   bool // whether the model was asked
	Candidate   models.ActionCandidate
	Attribution validate.Attribution
	DueRule     deadline.Rule
	Action      *models.ResolvedAction
	ModelErr    error
}

// EmailResult is the outcome of extracting one email for one user.
type EmailResult struct {
	EmailID     string
	UserEmail   string
	Signals     models.PolicySignals
	Segments    []SegmentOutcome
	Actions     []models.ResolvedAction
	Diagnostics []models.Diagnostic
	Err         error
}

// Extractor runs the full pipeline for one email. All of its collaborators
// are read-only after construction, so one Extractor serves every goroutine.
type Extractor struct {
	segmenter   *segment.Segmenter
	engine      *policy.Engine
	scoper      *prompt.Scoper
	model       CandidateSource
	corrector   *validate.Corrector
	resolver    *deadline.Resolver
	confidence  float64
	concurrency int
	logger      *slog.Logger
}

// ExtractorConfig holds dependencies for the extractor.
type ExtractorConfig struct {
	Segmenter          *segment.Segmenter
	Engine             *policy.Engine
	Scoper             *prompt.Scoper
	Model              CandidateSource
	Corrector          *validate.Corrector
	Resolver           *deadline.Resolver
	DefaultConfidence  float64
	SegmentConcurrency int
	Logger             *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	conc := cfg.SegmentConcurrency
	if conc < 1 {
		conc = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		segmenter:   cfg.Segmenter,
		engine:      cfg.Engine,
		scoper:      cfg.Scoper,
		model:       cfg.Model,
		corrector:   cfg.Corrector,
		resolver:    cfg.Resolver,
		confidence:  cfg.DefaultConfidence,
		concurrency: conc,
		logger:      logger,
	}
}

// Process extracts actions from email on behalf of id. Segments are
// evaluated in parallel; results are reported in ordinal order. Model and
// deadline failures degrade to "no action" or "no deadline". A panic while
// evaluating one segment drops that segment with a diagnostic and leaves the
// other segments' actions intact.
func (e *Extractor) Process(ctx context.Context, email models.NormalizedEmail, id models.Identity) EmailResult {
	res := EmailResult{EmailID: email.ID, UserEmail: id.Email}

	doc := e.segmenter.Split(email.Body)
	header, diags := e.engine.Email(email, id, doc)
	res.Signals = header
	res.Diagnostics = append(res.Diagnostics, diags...)

	outcomes := make([]SegmentOutcome, len(doc.Segments))
	segDiags := make([][]models.Diagnostic, len(doc.Segments))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, seg := range doc.Segments {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("panic during segment extraction",
						"email_id", email.ID,
						"ordinal", seg.Ordinal,
						"panic", p,
						"stack", string(debug.Stack()),
					)
					outcomes[i] = SegmentOutcome{
						Segment:   seg,
						Candidate: models.ActionCandidate{PolicyDecision: models.PolicyNone},
						DueRule:   deadline.RuleNone,
					}
					segDiags[i] = []models.Diagnostic{{
						Component: "pipeline",
						Field:     "segment",
						Message:   fmt.Sprintf("segment %d: panic: %v", seg.Ordinal, p),
					}}
				}
			}()
			outcomes[i], segDiags[i] = e.processSegment(ctx, email, id, header, seg)
			return nil
		})
	}
	_ = g.Wait()

	res.Segments = outcomes
	for i, o := range outcomes {
		res.Diagnostics = append(res.Diagnostics, segDiags[i]...)
		if o.Action != nil {
			res.Actions = append(res.Actions, *o.Action)
		}
	}

	for _, d := range res.Diagnostics {
		metrics.DiagnosticsTotal.WithLabelValues(d.Component).Inc()
		e.logger.Warn("recovered input problem",
			"email_id", email.ID,
			"component", d.Component,
			"field", d.Field,
			"message", d.Message,
		)
	}

	return res
}

func (e *Extractor) processSegment(ctx context.Context, email models.NormalizedEmail, id models.Identity, header models.PolicySignals, seg models.Segment) (SegmentOutcome, []models.Diagnostic) {
	sig := e.engine.Segment(header, seg, id)
	out := SegmentOutcome{
		Segment:   seg,
		Signals:   sig,
		Candidate: models.ActionCandidate{PolicyDecision: models.PolicyNone},
		DueRule:   deadline.RuleNone,
	}
	metrics.SegmentsTotal.WithLabelValues(string(sig.PolicyDecision)).Inc()

	if strings.TrimSpace(seg.Text) == "" || !policy.Attempt(sig) {
		return out, nil
	}

	req, err := e.scoper.Build(seg, sig, id)
	if err != nil {
		return out, []models.Diagnostic{{Component: "prompt", Message: err.Error()}}
	}

	out.Attempted = true
	cand, err := e.model.Extract(ctx, req)
	if err != nil {
		out.ModelErr = err
		e.logger.Warn("model extraction failed",
			"email_id", email.ID,
			"ordinal", seg.Ordinal,
			"kind", llm.KindOf(err),
			"error", err,
		)
	}

	vr := e.corrector.Correct(validate.Input{
		Candidate:   cand,
		SegmentText: seg.Text,
		Mentions:    segment.Local(seg),
		Signals:     sig,
		Identity:    id,
		Sender:      email.Sender.Address,
	})
	out.Candidate = vr.Candidate
	out.Attribution = vr.Attribution

	if !vr.Candidate.IsAction || vr.Candidate.Action == nil {
		return out, vr.Diagnostics
	}

	due := e.resolver.Resolve(ctx, vr.Candidate.Action.DueRaw, email.ReceivedAt)
	out.DueRule = due.Rule

	action := e.buildAction(email, id, seg, vr.Candidate, due)
	metrics.ActionsTotal.WithLabelValues(string(action.Type)).Inc()
	out.Action = &action

	return out, vr.Diagnostics
}

func (e *Extractor) buildAction(email models.NormalizedEmail, id models.Identity, seg models.Segment, cand models.ActionCandidate, due deadline.Resolution) models.ResolvedAction {
	a := cand.Action

	ra := models.ResolvedAction{
		ID:                 ActionID(email.ID, seg.Ordinal, id.Email),
		EmailID:            email.ID,
		Ordinal:            seg.Ordinal,
		UserEmail:          id.Email,
		Subject:            email.Subject,
		IsAction:           true,
		PolicyDecision:     cand.PolicyDecision,
		Type:               a.Type,
		Title:              a.Title,
		Assignee:           Assignee(a.AssigneeCandidates),
		AssigneeCandidates: nonNil(a.AssigneeCandidates),
		DueRaw:             a.DueRaw,
		DueKST:             due.Local,
		DueUTC:             due.UTC,
		Priority:           a.Priority,
		Tags:               nonNil(a.Tags),
		Rationale:          a.Rationale,
	}
	if !email.ReceivedAt.IsZero() {
		ra.ReceivedAt = email.ReceivedAt.UTC().Format(time.RFC3339)
	}
	ra.Confidence = Confidence(e.confidence, ra.Type, ra.DueUTC != nil, ra.Assignee)
	if a.DueRaw != nil {
		ra.Notes = fmt.Sprintf("원본 기한: %s", *a.DueRaw)
	}
	return ra
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
