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

// Package segment splits a plain-text email body into mention-scoped
// segments. Mentions are found by a small hand-written scanner so that the
// policy engine and the validator see exactly the same spans.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bcem/mail2do/internal/models"
)

// maxTeamRunes bounds the parenthesised team qualifier. Longer
// parentheticals are prose, not a team name.
const maxTeamRunes = 40

// clusterSeparators may appear between mentions of one cluster, in
// addition to whitespace.
const clusterSeparators = ",/&·、"

// Scan returns every mention in body, ordered by offset. Malformed
// candidates (a bare '@', an '@' inside an address) are skipped rather than
// reported.
func Scan(body string) []models.Mention {
	var mentions []models.Mention

	for i := 0; i < len(body); {
		if body[i] != '@' {
			_, size := utf8.DecodeRuneInString(body[i:])
			i += size
			continue
		}

		m, ok := scanMention(body, i)
		if !ok {
			i++
			continue
		}
		mentions = append(mentions, m)
		i = m.Span.End
	}

	return mentions
}

// scanMention reads "@Name" or "@Name(Team)" starting at the '@' at offset at.
func scanMention(body string, at int) (models.Mention, bool) {
	// An '@' glued to a preceding name character is part of an address.
	if at > 0 {
		prev, _ := utf8.DecodeLastRuneInString(body[:at])
		if isNameRune(prev) {
			return models.Mention{}, false
		}
	}

	pos := at + 1
	for pos < len(body) {
		r, size := utf8.DecodeRuneInString(body[pos:])
		if !isNameRune(r) {
			break
		}
		pos += size
	}

	name := strings.TrimRight(body[at+1:pos], ".-")
	if name == "" {
		return models.Mention{}, false
	}
	end := at + 1 + len(name)

	team := ""
	if end == pos && pos < len(body) && body[pos] == '(' {
		if close, ok := scanTeam(body, pos); ok {
			team = strings.TrimSpace(body[pos+1 : close])
			if team != "" {
				end = close + 1
			}
		}
	}

	return models.Mention{
		Raw:         body[at:end],
		DisplayName: name,
		Team:        team,
		Span:        models.Span{Start: at, End: end},
	}, true
}

// scanTeam finds the ')' closing the '(' at open on the same line.
func scanTeam(body string, open int) (int, bool) {
	runes := 0
	for pos := open + 1; pos < len(body); {
		r, size := utf8.DecodeRuneInString(body[pos:])
		switch {
		case r == ')':
			return pos, true
		case r == '(' || r == '\n' || r == '\r':
			return 0, false
		}
		runes++
		if runes > maxTeamRunes {
			return 0, false
		}
		pos += size
	}
	return 0, false
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

// Clusters groups consecutive mentions separated only by whitespace and
// list separators, e.g. "@Alice, @Bob". Each cluster is a slice of indices
// into mentions.
func Clusters(text string, mentions []models.Mention, base int) [][]int {
	var clusters [][]int
	for i := range mentions {
		if i > 0 && isSeparatorOnly(text[mentions[i-1].Span.End-base:mentions[i].Span.Start-base]) {
			clusters[len(clusters)-1] = append(clusters[len(clusters)-1], i)
			continue
		}
		clusters = append(clusters, []int{i})
	}
	return clusters
}

func isSeparatorOnly(gap string) bool {
	for _, r := range gap {
		if !unicode.IsSpace(r) && !strings.ContainsRune(clusterSeparators, r) {
			return false
		}
	}
	return true
}
