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
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bcem/mail2do/internal/models"
)

// Unassigned is the assignee when no candidate carries an address.
const Unassigned = "미지정"

// actionNamespace scopes action IDs so they never collide with other UUIDv5s.
var actionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:mail2do:action"))

// ActionID is stable for an (email, segment, user) triple, so re-running
// extraction updates the same record.
func ActionID(emailID string, ordinal int, userEmail string) string {
	key := emailID + "\x00" + strconv.Itoa(ordinal) + "\x00" + strings.ToLower(userEmail)
	return uuid.NewSHA1(actionNamespace, []byte(key)).String()
}

// Assignee picks the first candidate that carries an address.
func Assignee(candidates []string) string {
	for _, c := range candidates {
		if strings.Contains(c, "@") {
			return c
		}
	}
	return Unassigned
}

// Confidence adjusts base for evidence quality, capped at 1.
func Confidence(base float64, t models.ActionType, resolvedDue bool, assignee string) float64 {
	c := base
	switch {
	case t == models.ActionDo && resolvedDue && strings.Contains(assignee, "@"):
		c += 0.2
	case t == models.ActionFollowUp && resolvedDue:
		c += 0.15
	}
	if c > 1 {
		c = 1
	}
	return c
}
