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

// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mail2do"

var (
	// SegmentsTotal counts segments by the policy code they were given.
	SegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "segments_total",
			Help:      "Segments evaluated, by policy decision.",
		},
		[]string{"policy"},
	)

	// ActionsTotal counts segments that produced an action, by type.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "actions_total",
			Help:      "Resolved actions emitted, by action type.",
		},
		[]string{"type"},
	)

	// EmailsTotal counts processed emails by outcome.
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "emails_total",
			Help:      "Emails processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// DiagnosticsTotal counts recovered input problems by component.
	DiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "diagnostics_total",
			Help:      "Recovered input problems, by component.",
		},
		[]string{"component"},
	)

	// DeadlinesTotal counts deadline resolutions by the rule that fired.
	DeadlinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deadline",
			Name:      "resolutions_total",
			Help:      "Deadline resolutions, by rule.",
		},
		[]string{"rule"},
	)

	// ModelCallsTotal counts model calls by purpose and outcome.
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model calls, by purpose and outcome.",
		},
		[]string{"purpose", "outcome"},
	)

	// ModelRetriesTotal counts retried model attempts.
	ModelRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "retries_total",
			Help:      "Model attempts that were retried, by purpose.",
		},
		[]string{"purpose"},
	)

	// ModelLatency observes single-attempt model latency.
	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model attempt latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"purpose"},
	)
)
