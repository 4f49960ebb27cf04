// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
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

// Package calendar works with the calendar-day strings (YYYY-MM-DD) that
// transactions and snapshots are keyed by. A day carries no time of day;
// it is interpreted as midnight in a caller supplied location.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const (
	DayLayout = "2006-01-02"
)

var (
	ErrInvalidDay = errors.New("not a valid YYYY-MM-DD calendar day")
)

// ParseDay parses a YYYY-MM-DD string as midnight in loc
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return t, nil
}

// FormatDay returns the YYYY-MM-DD form of t in its own location
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// StartOfDay truncates t to midnight in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Today is the calendar day now falls on in loc
func Today(now time.Time, loc *time.Location) string {
	return FormatDay(StartOfDay(now, loc))
}

// Yesterday is the calendar day before the one now falls on in loc
func Yesterday(now time.Time, loc *time.Location) string {
	return FormatDay(StartOfDay(now, loc).AddDate(0, 0, -1))
}

// IsWeekend returns true for Saturdays and Sundays
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// YearsBefore returns the calendar day that is `years` years before now
func YearsBefore(now time.Time, years int, loc *time.Location) time.Time {
	return StartOfDay(now, loc).AddDate(-years, 0, 0)
}

// Days returns every calendar day from begin through end inclusive. Both
// bounds are YYYY-MM-DD strings; an end before begin yields nil.
func Days(begin, end string) ([]string, error) {
	b, err := ParseDay(begin, time.UTC)
	if err != nil {
		return nil, err
	}
	e, err := ParseDay(end, time.UTC)
	if err != nil {
		return nil, err
	}
	if e.Before(b) {
		return nil, nil
	}

	days := make([]string, 0, int(e.Sub(b).Hours()/24)+1)
	for d := b; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDay(d))
	}
	return days, nil
}

// MaxDay returns the later of two YYYY-MM-DD strings
func MaxDay(a, b string) string {
	if a > b {
		return a
	}
	return b
}
