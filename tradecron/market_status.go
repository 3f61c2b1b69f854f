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
	"sync"
	"time"

	"github.com/penny-vault/pvrisk/common"
)

var (
	// holidays maps the unix time of midnight on a market holiday to its early
	// close time (e.g. 1300) or 0 when the market is closed all day
	holidays      = make(map[int64]int)
	holidayYears  = make(map[int]bool)
	holidayLocker sync.RWMutex
)

type MarketStatus struct {
	marketHours *MarketHours
	tz          *time.Location
}

func NewMarketStatus(hours *MarketHours) *MarketStatus {
	return &MarketStatus{
		marketHours: hours,
		tz:          common.GetTimezone(),
	}
}

func (ms *MarketStatus) midnight(t time.Time) time.Time {
	t = t.In(ms.tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ms.tz)
}

func (ms *MarketStatus) lookup(t time.Time) (int, bool) {
	d := ms.midnight(t)
	ensureHolidays(d.Year(), ms.tz)

	holidayLocker.RLock()
	defer holidayLocker.RUnlock()

	close, ok := holidays[d.Unix()]
	return close, ok
}

// EarlyClose returns close time of an early close market day, e.g. 1300
func (ms *MarketStatus) EarlyClose(t time.Time) int {
	close, _ := ms.lookup(t)
	return close
}

// IsMarketHoliday returns true if the specified date is a market holiday
func (ms *MarketStatus) IsMarketHoliday(t time.Time) bool {
	close, ok := ms.lookup(t)
	return ok && close == 0
}

// IsMarketDay returns true if the specified date is a valid trading day
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketDay(t time.Time) bool {
	t = t.In(ms.tz)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !ms.IsMarketHoliday(t)
}

// IsMarketOpen returns true if the specified time is during market hours
func (ms *MarketStatus) IsMarketOpen(t time.Time) bool {
	if !ms.IsMarketDay(t) {
		return false
	}

	closeTime := ms.marketHours.Close
	if earlyClose := ms.EarlyClose(t); earlyClose != 0 {
		closeTime = earlyClose
	}

	t = t.In(ms.tz)
	timeOfDay := t.Hour()*100 + t.Minute()
	return timeOfDay >= ms.marketHours.Open && timeOfDay <= closeTime
}

// LastTradingDay returns midnight of the most recent trading day on or before t
func (ms *MarketStatus) LastTradingDay(t time.Time) time.Time {
	d := ms.midnight(t)
	for !ms.IsMarketDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
