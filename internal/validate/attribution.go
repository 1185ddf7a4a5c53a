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

package validate

import (
	"strings"
	"unicode/utf8"

	"github.com/bcem/mail2do/internal/models"
	"github.com/bcem/mail2do/internal/segment"
)

// clusterGapRunes is how far a deadline may trail a mention cluster and
// still count as immediately following it.
const clusterGapRunes = 12

// keywordRadiusRunes bounds the neighbourhood searched for completion
// keywords when no mention anchors the deadline.
const keywordRadiusRunes = 40

// Attribution names the rule that tied a deadline to the user.
type Attribution string

const (
	AttrNone    Attribution = ""
	AttrSpan    Attribution = "self_span"
	AttrCluster Attribution = "self_cluster"
	AttrNearest Attribution = "nearest_mention"
	AttrRelaxed Attribution = "relaxed"
)

// Attributor decides whether a deadline phrase in a segment belongs to the
// user. Mention spans must be relative to text.
type Attributor struct {
	window     int
	completion []string
}

// NewAttributor creates an attributor. window is the nearest-mention
// distance in runes.
func NewAttributor(window int, completionKeywords []string) *Attributor {
	if window < 1 {
		window = 200
	}
	return &Attributor{window: window, completion: completionKeywords}
}

// Attribute returns the rule that assigns due to id, or AttrNone. Every
// occurrence of due in text is tried.
func (a *Attributor) Attribute(text, due string, mentions []models.Mention, id models.Identity) Attribution {
	if due == "" {
		return AttrNone
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], due)
		if i < 0 {
			break
		}
		pos := from + i
		if rule := a.attributeAt(text, pos, pos+len(due), mentions, id); rule != AttrNone {
			return rule
		}
		from = pos + len(due)
	}
	return AttrNone
}

func (a *Attributor) attributeAt(text string, pos, end int, mentions []models.Mention, id models.Identity) Attribution {
	if len(mentions) == 0 {
		if a.relaxed(text, pos, end, id) {
			return AttrRelaxed
		}
		return AttrNone
	}

	// Span owned by a self mention, up to the next mention or blank line.
	for i, m := range mentions {
		if !m.TargetsSelf(id) || pos < m.Span.End {
			continue
		}
		limit := len(text)
		if i+1 < len(mentions) {
			limit = mentions[i+1].Span.Start
		}
		if blank := strings.Index(text[m.Span.End:limit], "\n\n"); blank >= 0 {
			limit = m.Span.End + blank
		}
		if pos < limit {
			return AttrSpan
		}
	}

	// A cluster containing self directly before the deadline.
	for _, cluster := range segment.Clusters(text, mentions, 0) {
		lastIdx := cluster[len(cluster)-1]
		last := mentions[lastIdx]
		if last.Span.End > pos {
			continue
		}
		if lastIdx+1 < len(mentions) && mentions[lastIdx+1].Span.Start < pos {
			continue
		}
		if !clusterHasSelf(mentions, cluster, id) {
			continue
		}
		gap := text[last.Span.End:pos]
		if utf8.RuneCountInString(gap) <= clusterGapRunes && !strings.ContainsAny(gap, ".!?\n") {
			return AttrCluster
		}
	}

	// Nearest preceding mention within the window is self.
	var nearest *models.Mention
	for i := range mentions {
		if mentions[i].Span.End <= pos {
			nearest = &mentions[i]
		}
	}
	if nearest != nil && nearest.TargetsSelf(id) &&
		utf8.RuneCountInString(text[nearest.Span.End:pos]) <= a.window {
		return AttrNearest
	}

	return AttrNone
}

// relaxed applies when a segment has no mentions: the user must be named
// somewhere in the segment and a completion keyword must sit near the
// deadline.
func (a *Attributor) relaxed(text string, pos, end int, id models.Identity) bool {
	named := false
	for _, s := range []string{id.Name, id.Email, id.Team} {
		if s = strings.TrimSpace(s); s != "" && strings.Contains(strings.ToLower(text), strings.ToLower(s)) {
			named = true
			break
		}
	}
	if !named {
		return false
	}

	lo := backRunes(text, pos, keywordRadiusRunes)
	hi := forwardRunes(text, end, keywordRadiusRunes)
	near := text[lo:hi]
	for _, k := range a.completion {
		if k != "" && strings.Contains(near, k) {
			return true
		}
	}
	return false
}

func clusterHasSelf(mentions []models.Mention, cluster []int, id models.Identity) bool {
	for _, idx := range cluster {
		if mentions[idx].TargetsSelf(id) {
			return true
		}
	}
	return false
}

func backRunes(s string, pos, n int) int {
	for ; n > 0 && pos > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return pos
}

func forwardRunes(s string, pos, n int) int {
	for ; n > 0 && pos < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return pos
}
