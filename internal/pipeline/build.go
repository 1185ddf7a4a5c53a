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
	"log/slog"

	"github.com/bcem/mail2do/internal/config"
	"github.com/bcem/mail2do/internal/deadline"
	"github.com/bcem/mail2do/internal/policy"
	"github.com/bcem/mail2do/internal/prompt"
	"github.com/bcem/mail2do/internal/segment"
	"github.com/bcem/mail2do/internal/validate"
)

// FromConfig assembles an extractor from the extraction settings. fallback
// may be nil, in which case phrases no rule understands stay unresolved.
func FromConfig(x config.ExtractionConfig, model CandidateSource, fallback deadline.Fallback, logger *slog.Logger) *Extractor {
	return NewExtractor(ExtractorConfig{
		Segmenter: segment.NewSegmenter(segment.NewHintExtractor(x.MaxDeadlineHints)),
		Engine:    policy.NewEngine(x.RequestKeywords),
		Scoper:    prompt.NewScoper(x.SegmentMaxRunes),
		Model:     model,
		Corrector: validate.NewCorrector(
			validate.NewAttributor(x.AttributionWindow, x.CompletionKeywords),
			x.TitleMaxRunes,
		),
		Resolver: deadline.NewResolver(
			x.ReferenceLocation(), x.DefaultDueHour, x.DefaultDueMinute, fallback, logger,
		),
		DefaultConfidence:  x.DefaultConfidence,
		SegmentConcurrency: x.SegmentConcurrency,
		Logger:             logger,
	})
}
