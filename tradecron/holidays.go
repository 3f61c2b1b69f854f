// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tradecron

import (
	"time"
)

const earlyCloseTime = 1300

// ensureHolidays computes the NYSE holiday calendar for year the first time it
// is needed
func ensureHolidays(year int, tz *time.Location) {
	holidayLocker.RLock()
	done := holidayYears[year]
	holidayLocker.RUnlock()
	if done {
		return
	}

	holidayLocker.Lock()
	defer holidayLocker.Unlock()

	if holidayYears[year] {
		return
	}

	for _, d := range marketHolidays(year, tz) {
		holidays[d.Unix()] = 0
	}
	for _, d := range earlyCloses(year, tz) {
		if _, ok := holidays[d.Unix()]; !ok {
			holidays[d.Unix()] = earlyCloseTime
		}
	}
	holidayYears[year] = true
}

// marketHolidays returns the full day closures of the NYSE in year
func marketHolidays(year int, tz *time.Location) []time.Time {
	days := []time.Time{
		// Martin Luther King Jr. Day
		nthWeekday(year, time.January, time.Monday, 3, tz),
		// Washington's Birthday
		nthWeekday(year, time.February, time.Monday, 3, tz),
		// Good Friday
		easter(year, tz).AddDate(0, 0, -2),
		// Memorial Day
		lastWeekday(year, time.May, time.Monday, tz),
		// Independence Day
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, tz)),
		// Labor Day
		nthWeekday(year, time.September, time.Monday, 1, tz),
		// Thanksgiving
		nthWeekday(year, time.November, time.Thursday, 4, tz),
		// Christmas
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, tz)),
	}

	// New Year's Day falling on a Saturday is not observed on the prior Friday
	newYear := time.Date(year, time.January, 1, 0, 0, 0, 0, tz)
	if newYear.Weekday() != time.Saturday {
		days = append(days, observed(newYear))
	}

	if year >= 2022 {
		days = append(days, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, tz)))
	}

	return days
}

// earlyCloses returns the days the NYSE closes at 13:00 in year
func earlyCloses(year int, tz *time.Location) []time.Time {
	days := []time.Time{
		nthWeekday(year, time.November, time.Thursday, 4, tz).AddDate(0, 0, 1),
	}

	julyThird := time.Date(year, time.July, 3, 0, 0, 0, 0, tz)
	if isWeekday(julyThird) && isWeekday(julyThird.AddDate(0, 0, 1)) {
		days = append(days, julyThird)
	}

	christmasEve := time.Date(year, time.December, 24, 0, 0, 0, 0, tz)
	if isWeekday(christmasEve) {
		days = append(days, christmasEve)
	}

	return days
}

func isWeekday(d time.Time) bool {
	return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday
}

// observed moves holidays on a Saturday to Friday and on a Sunday to Monday
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, tz *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, tz)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday, tz *time.Location) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, tz)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter returns Easter Sunday using the anonymous Gregorian algorithm
func easter(year int, tz *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, tz)
}
