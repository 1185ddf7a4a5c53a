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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMention_TargetsSelf(t *testing.T) {
	park := Identity{Name: "박지훈", Email: "jihoon.park@example.com", Team: "백엔드개발팀"}

	tests := []struct {
		name    string
		display string
		id      Identity
		want    bool
	}{
		{"exact name", "박지훈", park, true},
		{"title", "박지훈님", park, true},
		{"chained titles", "박지훈팀장님", park, true},
		{"dative after title", "박지훈님께", park, true},
		{"dative particle", "박지훈에게", park, true},
		{"colloquial dative", "박지훈한테", park, true},
		{"local part", "JIHOON.PARK", park, true},
		{"another person", "Alice", park, false},
		{"longer name sharing a prefix", "박지훈", Identity{Name: "박지"}, false},
		{"longer name with title", "박지훈님", Identity{Name: "박지"}, false},
		{"unknown trailing word", "박지훈씨네", park, false},
		{"empty identity", "박지훈", Identity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mention{DisplayName: tt.display}
			assert.Equal(t, tt.want, m.TargetsSelf(tt.id))
		})
	}
}
