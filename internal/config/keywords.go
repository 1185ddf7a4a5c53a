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

package config

// DefaultRequestKeywords signal that a text asks someone to act: urgency,
// request, approval, deadline or confirmation wording.
var DefaultRequestKeywords = []string{
	"부탁",
	"요청",
	"확인",
	"검토",
	"승인",
	"회신",
	"즉시",
	"긴급",
	"마감",
	"완료",
	"해주세요",
	"바랍니다",
	"처리",
	"대응",
	"분석",
	"점검",
	"실행",
}

// DefaultCompletionKeywords mark a deadline phrase as a completion request
// when no mention anchors it.
var DefaultCompletionKeywords = []string{
	"까지",
	"마감",
	"요청",
}
