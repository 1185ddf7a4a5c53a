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

package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule names the cascade step that produced a date.
type Rule string

const (
	RuleRelativeDay Rule = "relative_day"
	RuleThisWeek    Rule = "this_week"
	RuleNextWeek    Rule = "next_week"
	RuleISODate     Rule = "iso_date"
	RuleDaysAfter   Rule = "days_after"
	RuleMonthDay    Rule = "month_day"
	RuleWeekday     Rule = "weekday"
	RuleEndOfDay    Rule = "end_of_day"
	RuleEndOfWeek   Rule = "end_of_week"
	RuleMonthEnd    Rule = "month_end"
	RuleClockOnly   Rule = "clock_only"
	RuleFallback    Rule = "fallback"
	RuleUnresolved  Rule = "unresolved"
	RuleNone        Rule = "none"
)

var (
	reMeridiemClock = regexp.MustCompile(`(오전|오후)?\s*(\d{1,2})\s*시(?:\s*(반|(\d{1,2})\s*분))?`)
	reColonClock    = regexp.MustCompile(`(?:^|[^\d])(\d{1,2}):(\d{2})(?:[^\d]|$)`)

	reThisWeek  = regexp.MustCompile(`(?:이번\s*주|금주)\s*([월화수목금토일])요일?`)
	reNextWeek  = regexp.MustCompile(`(?:다음\s*주|차주)\s*([월화수목금토일])요일?`)
	reISODate   = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	reDaysAfter = regexp.MustCompile(`(\d+)\s*일\s*(?:후|뒤)`)
	reMonthDay  = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\s*(?:/|월\s*)(\d{1,2})(?:\s*일)?`)
	reWeekday   = regexp.MustCompile(`([월화수목금토일])요일`)
	reEOD       = regexp.MustCompile(`(?i)\bEOD\b|업무\s*종료|퇴근\s*전`)
	reEOW       = regexp.MustCompile(`(?i)\bEOW\b|이번\s*주\s*(?:내|중)|주중`)
	reMonthEnd  = regexp.MustCompile(`월말|이번\s*달\s*(?:내|중|말)`)
)

// weekdayIndex maps a Korean weekday character to Monday=0 .. Sunday=6.
var weekdayIndex = map[string]int{"월": 0, "화": 1, "수": 2, "목": 3, "금": 4, "토": 5, "일": 6}

func mondayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

// clockOf extracts an explicit time of day from raw.
func clockOf(raw string) (hour, minute int, ok bool) {
	for _, idx := range reMeridiemClock.FindAllStringSubmatchIndex(raw, -1) {
		// "3시간" is a duration, not a clock time.
		if strings.HasPrefix(raw[idx[1]:], "간") {
			continue
		}
		m := submatches(raw, idx)
		hour, _ = strconv.Atoi(m[2])
		minute = 0
		switch {
		case m[3] == "반":
			minute = 30
		case m[4] != "":
			minute, _ = strconv.Atoi(m[4])
		}
		if m[1] == "오후" && hour < 12 {
			hour += 12
		}
		if m[1] == "오전" && hour == 12 {
			hour = 0
		}
		if hour < 24 && minute < 60 {
			return hour, minute, true
		}
	}
	if m := reColonClock.FindStringSubmatch(raw); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour < 24 && minute < 60 {
			return hour, minute, true
		}
	}
	return 0, 0, false
}

func submatches(s string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

// dateOf runs the deterministic date rules against ref, which must already
// be in the reference zone. The returned date carries ref's clock.
func dateOf(raw string, ref time.Time) (time.Time, Rule) {
	day := func(n int) time.Time { return ref.AddDate(0, 0, n) }

	switch {
	case strings.Contains(raw, "모레"):
		return day(2), RuleRelativeDay
	case strings.Contains(raw, "오늘") || strings.Contains(raw, "금일"):
		return day(0), RuleRelativeDay
	case strings.Contains(raw, "내일") || strings.Contains(raw, "명일"):
		return day(1), RuleRelativeDay
	}

	if m := reThisWeek.FindStringSubmatch(raw); m != nil {
		delta := (weekdayIndex[m[1]] - mondayIndex(ref.Weekday()) + 7) % 7
		return day(delta), RuleThisWeek
	}
	if m := reNextWeek.FindStringSubmatch(raw); m != nil {
		toMonday := 7 - mondayIndex(ref.Weekday())
		return day(toMonday + weekdayIndex[m[1]]), RuleNextWeek
	}
	if m := reISODate.FindStringSubmatch(raw); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(y, mo, d, ref); ok {
			return t, RuleISODate
		}
	}
	if m := reDaysAfter.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return day(n), RuleDaysAfter
	}

	if m := reMonthDay.FindStringSubmatch(raw); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y := ref.Year()
		if mo < int(ref.Month()) {
			y++
		}
		if t, ok := calendarDate(y, mo, d, ref); ok {
			return t, RuleMonthDay
		}
	}
	if m := reWeekday.FindStringSubmatch(raw); m != nil {
		delta := (weekdayIndex[m[1]] - mondayIndex(ref.Weekday()) + 7) % 7
		return day(delta), RuleWeekday
	}
	if reEOD.MatchString(raw) {
		return day(0), RuleEndOfDay
	}
	if reEOW.MatchString(raw) {
		delta := (weekdayIndex["금"] - mondayIndex(ref.Weekday()) + 7) % 7
		return day(delta), RuleEndOfWeek
	}
	if reMonthEnd.MatchString(raw) {
		first := time.Date(ref.Year(), ref.Month(), 1, ref.Hour(), ref.Minute(), 0, 0, ref.Location())
		return first.AddDate(0, 1, -1), RuleMonthEnd
	}

	return time.Time{}, RuleNone
}

// calendarDate rejects dates that time.Date would normalise, e.g. 2/30.
func calendarDate(y, mo, d int, ref time.Time) (time.Time, bool) {
	t := time.Date(y, time.Month(mo), d, ref.Hour(), ref.Minute(), 0, 0, ref.Location())
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
