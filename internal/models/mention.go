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

import "strings"

// nameSuffixes may trail a tagged name, alone or chained: titles
// ("@박지훈님", "@박지훈팀장님") and particles
// ("@박지훈님께", "@박지훈에게").
var nameSuffixes = []string{
	"님", "씨", "선임", "책임", "매니저", "팀장",
	"께서", "께", "에게서", "에게", "한테서", "한테", "도", "의",
}

// TargetsSelf reports whether the mention names id, either by display name
// (optionally followed by titles and particles) or by the local part of the
// address.
func (m Mention) TargetsSelf(id Identity) bool {
	name := strings.TrimSpace(id.Name)
	if name != "" {
		if rest, ok := cutPrefixFold(m.DisplayName, name); ok && suffixOnly(rest) {
			return true
		}
	}
	if lp := id.LocalPart(); lp != "" {
		if rest, ok := cutPrefixFold(m.DisplayName, lp); ok && suffixOnly(rest) {
			return true
		}
	}
	return false
}

// suffixOnly reports whether s is empty or a chain of nameSuffixes.
func suffixOnly(s string) bool {
	if s == "" {
		return true
	}
	for _, suf := range nameSuffixes {
		if rest, ok := strings.CutPrefix(s, suf); ok && suffixOnly(rest) {
			return true
		}
	}
	return false
}

// TargetsTeam reports whether the mention tags id's team as a whole,
// e.g. "@백엔드개발팀".
func (m Mention) TargetsTeam(id Identity) bool {
	team := strings.TrimSpace(id.Team)
	return team != "" && strings.EqualFold(m.DisplayName, team)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
