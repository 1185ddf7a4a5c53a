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
	"regexp"
	"slices"
	"strings"
)

// hintPatterns are the deadline phrasings worth surfacing to the model, most
// specific first so a full phrase wins over its fragments.
var hintPatterns = []string{
	`\(\s*\d{1,2}/\d{1,2}(?:\([^)]*\))?\s*까지\s*\)`,
	`\d{1,2}/\d{1,2}(?:\([^)]*\))?\s*까지`,
	`\d{4}-\d{1,2}-\d{1,2}(?:\s*\d{1,2}:\d{2})?\s*까지`,
	`(?:이번\s*주|금주)\s*[월화수목금토일]요일?\s*까지`,
	`(?:다음\s*주|차주)\s*[월화수목금토일]요일?\s*까지`,
	`(?:금일|오늘|내일|명일|모레)\s*(?:오전|오후)?\s*\d{1,2}시(?:\s*\d{1,2}분)?\s*까지`,
	`(?:오전|오후)?\s*\d{1,2}시(?:\s*\d{1,2}분)?\s*까지`,
	`(?:금일|오늘|내일|명일|모레)\s*까지`,
	`[월화수목금토일]요일\s*까지`,
	`마감[:\s]*\d{1,2}/\d{1,2}(?:\([^)]*\))?`,
	`\d{1,2}/\d{1,2}(?:\([^)]*\))?(?:\s*\d{1,2}:\d{2})?`,
	`\d{4}-\d{1,2}-\d{1,2}(?:\s*\d{1,2}:\d{2})?`,
	`\d+\s*일\s*(?:후|뒤)`,
	`(?i)\b(?:EOD|EOW)\b`,
	`업무\s*(?:종료|시간)\s*전`,
	`\d{1,2}/\d{1,2}\s*~\s*\d{1,2}/\d{1,2}`,
	`\d{4}-\d{1,2}-\d{1,2}\s*~\s*\d{4}-\d{1,2}-\d{1,2}`,
	`이번\s*주\s*내|주중|이번\s*달\s*내|월말\s*까지|분기\s*말\s*까지`,
}

// HintExtractor finds candidate deadline phrases. The hints are offered to
// the model as suggestions; they are never treated as resolved deadlines.
type HintExtractor struct {
	patterns []*regexp.Regexp
	max      int
}

// NewHintExtractor compiles the hint patterns. max caps the hints returned
// per text; values below 1 fall back to 5.
func NewHintExtractor(max int) *HintExtractor {
	if max < 1 {
		max = 5
	}
	h := &HintExtractor{max: max}
	for _, p := range hintPatterns {
		h.patterns = append(h.patterns, regexp.MustCompile(p))
	}
	return h
}

// Extract returns up to max distinct hints in pattern order.
func (h *HintExtractor) Extract(text string) []string {
	found := []string{}
	for _, re := range h.patterns {
		for _, m := range re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m == "" || slices.Contains(found, m) {
				continue
			}
			found = append(found, m)
			if len(found) >= h.max {
				return found
			}
		}
	}
	return found
}
