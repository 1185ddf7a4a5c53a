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

// Package deadline turns human deadline phrases into absolute instants
// using a fixed rule cascade, with an optional model fallback.
package deadline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bcem/mail2do/internal/metrics"
)

// Layouts of the two outputs.
const (
	LocalLayout = "2006-01-02 15:04 MST"
	UTCLayout   = time.RFC3339
)

// Fallback resolves phrases no rule understood.
type Fallback interface {
	ResolveDeadline(ctx context.Context, raw string, ref time.Time) (time.Time, error)
}

// Resolution is the resolver's output. Local and UTC are both set or both nil.
type Resolution struct {
	Local *string
	UTC   *string
	Rule  Rule
}

// Resolver runs the cascade in a fixed reference zone. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	loc           *time.Location
	defaultHour   int
	defaultMinute int
	fallback      Fallback
	now           func() time.Time
	logger        *slog.Logger
}

// NewResolver creates a resolver. fallback may be nil.
func NewResolver(loc *time.Location, defaultHour, defaultMinute int, fallback Fallback, logger *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		loc:           loc,
		defaultHour:   defaultHour,
		defaultMinute: defaultMinute,
		fallback:      fallback,
		now:           time.Now,
		logger:        logger,
	}
}

// Resolve converts dueRaw relative to receivedAt, or to the current time
// when receivedAt is zero. A nil or blank phrase resolves to nothing without
// consulting the fallback.
func (r *Resolver) Resolve(ctx context.Context, dueRaw *string, receivedAt time.Time) Resolution {
	if dueRaw == nil || strings.TrimSpace(*dueRaw) == "" {
		return Resolution{Rule: RuleNone}
	}
	raw := strings.TrimSpace(*dueRaw)

	base := receivedAt
	if base.IsZero() {
		base = r.now()
	}
	ref := base.In(r.loc)

	if t, rule, ok := r.Rules(raw, ref); ok {
		metrics.DeadlinesTotal.WithLabelValues(string(rule)).Inc()
		return r.format(t, rule)
	}

	if r.fallback != nil {
		t, err := r.fallback.ResolveDeadline(ctx, raw, ref)
		if err == nil && !t.IsZero() {
			metrics.DeadlinesTotal.WithLabelValues(string(RuleFallback)).Inc()
			return r.format(t, RuleFallback)
		}
		r.logger.Warn("deadline fallback failed", "due_raw", raw, "error", err)
	}

	metrics.DeadlinesTotal.WithLabelValues(string(RuleUnresolved)).Inc()
	return Resolution{Rule: RuleUnresolved}
}

// Rules applies only the deterministic cascade. ref is converted to the
// reference zone first.
func (r *Resolver) Rules(raw string, ref time.Time) (time.Time, Rule, bool) {
	ref = ref.In(r.loc)

	hour, minute, hasClock := clockOf(raw)
	if !hasClock {
		hour, minute = r.defaultHour, r.defaultMinute
	}

	date, rule := dateOf(raw, ref)
	if rule == RuleNone {
		if !hasClock {
			return time.Time{}, RuleNone, false
		}
		date, rule = ref, RuleClockOnly
	}

	t := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, r.loc)
	// A bare clock time already past on the reference day means tomorrow.
	if rule == RuleClockOnly && t.Before(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t, rule, true
}

func (r *Resolver) format(t time.Time, rule Rule) Resolution {
	t = t.In(r.loc)
	local := t.Format(LocalLayout)
	utc := t.UTC().Format(UTCLayout)
	return Resolution{Local: &local, UTC: &utc, Rule: rule}
}
