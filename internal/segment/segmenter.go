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

package segment

import (
	"github.com/bcem/mail2do/internal/models"
)

// Document is a body with its mentions and segments. The mention list is
// computed once and shared by every stage that processes the email.
type Document struct {
	Body     string
	Mentions []models.Mention
	Segments []models.Segment
}

// Segmenter splits bodies into segments and attaches deadline hints.
type Segmenter struct {
	hints *HintExtractor
}

// NewSegmenter creates a segmenter. A nil extractor disables hints.
func NewSegmenter(hints *HintExtractor) *Segmenter {
	return &Segmenter{hints: hints}
}

// Split partitions body at each mention cluster. Text before the first
// mention is folded into the first segment. The segments cover body exactly
// once, in order; an empty body yields no segments.
func (s *Segmenter) Split(body string) Document {
	doc := Document{Body: body, Mentions: Scan(body)}
	if body == "" {
		return doc
	}

	bounds := []int{0}
	for _, cluster := range Clusters(body, doc.Mentions, 0) {
		start := doc.Mentions[cluster[0]].Span.Start
		if start > bounds[len(bounds)-1] {
			bounds = append(bounds, start)
		}
	}
	bounds = append(bounds, len(body))

	// A preamble before the first cluster belongs to the first segment.
	if len(doc.Mentions) > 0 && doc.Mentions[0].Span.Start > 0 && len(bounds) > 2 {
		bounds = append(bounds[:1], bounds[2:]...)
	}

	mi := 0
	for i := 0; i+1 < len(bounds); i++ {
		span := models.Span{Start: bounds[i], End: bounds[i+1]}
		seg := models.Segment{
			Ordinal: i,
			Text:    body[span.Start:span.End],
			Span:    span,
		}
		for mi < len(doc.Mentions) && span.Contains(doc.Mentions[mi].Span.Start) {
			seg.Mentions = append(seg.Mentions, doc.Mentions[mi])
			mi++
		}
		if s.hints != nil {
			seg.DeadlineHints = s.hints.Extract(seg.Text)
		}
		if seg.DeadlineHints == nil {
			seg.DeadlineHints = []string{}
		}
		doc.Segments = append(doc.Segments, seg)
	}

	return doc
}

// Local returns the segment's mentions with spans relative to its text.
func Local(seg models.Segment) []models.Mention {
	out := make([]models.Mention, len(seg.Mentions))
	for i, m := range seg.Mentions {
		m.Span = models.Span{Start: m.Span.Start - seg.Span.Start, End: m.Span.End - seg.Span.Start}
		out[i] = m
	}
	return out
}
