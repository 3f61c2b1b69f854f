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
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtOpen  = "@open"
	AtClose = "@close"
)

var (
	ErrConflictingModifiers = errors.New("only one of @open or @close may be used")
	ErrUnknownModifier      = errors.New("unknown modifier")
	ErrMalformedTimeSpec    = errors.New("malformed time spec")
	ErrMisplacedModifier    = errors.New("modifiers must come before the time fields")
	ErrFieldOutOfBounds     = errors.New("field out of bounds")
	ErrNoTradingDay         = errors.New("schedule never falls on a trading day")
)

type MarketHours struct {
	Open  int
	Close int
}

var (
	RegularHours = MarketHours{
		Open:  930,
		Close: 1600,
	}
)

// maxIters bounds the search for the next trading day; a year of minutes is far
// more than any satisfiable schedule needs
const maxIters = 5000

type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	TimeSpec       string
	TimeFlag       string
	marketStatus   *MarketStatus
}

// New parses a market aware schedule. Schedules use the standard CRON format
// of: Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW) evaluated
// in the exchange timezone and only fire on trading days.
//
// Trailing fields may be omitted and default to '*'. A leading modifier makes
// the minute and hour an offset from the trading session:
//
//	@open  - minutes and hours are an offset from market open
//	@close - minutes and hours are an offset from market close
//
// Examples:
//   - every trading day at 18:30: 30 18
//   - 30 minutes after the close: @close 30
//   - 15 minutes before the open on mondays: @open -15 0 * * 1
func New(cronSpec string, hours MarketHours) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	fields := strings.Fields(cronSpec)
	if len(fields) == 0 {
		return nil, ErrMalformedTimeSpec
	}

	// modifiers lead, the cron fields follow
	specialTokens := make([]string, 0, 1)
	for len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		specialTokens = append(specialTokens, fields[0])
		fields = fields[1:]
	}

	for _, token := range fields {
		if strings.HasPrefix(token, "@") {
			log.Error().Str("Token", token).Str("TradeCronSpec", cronSpec).Msg("modifier found after time fields")
			return nil, ErrMisplacedModifier
		}
	}

	if len(fields) > 5 {
		return nil, ErrMalformedTimeSpec
	}
	timeSpecTokens := expandBriefFormat(fields)

	var timeSpec string
	var timeFlag string
	var err error
	for _, token := range specialTokens {
		if timeFlag != "" {
			return nil, ErrConflictingModifiers
		}

		switch token {
		case AtOpen:
			timeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Open/100, hours.Open%100)
		case AtClose:
			timeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Close/100, hours.Close%100)
		default:
			return nil, ErrUnknownModifier
		}

		if err != nil {
			return nil, err
		}
		timeFlag = token
	}

	if timeSpec == "" {
		timeSpec = strings.Join(timeSpecTokens, " ")
	}

	schedule, err := specParser.Parse(timeSpec)
	if err != nil {
		log.Error().Err(err).Str("TimeSpec", timeSpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse timespec")
		return nil, err
	}

	return &TradeCron{
		Schedule:       schedule,
		ScheduleString: cronSpec,
		TimeSpec:       timeSpec,
		TimeFlag:       timeFlag,
		marketStatus:   NewMarketStatus(&hours),
	}, nil
}

// MarketStatus returns the calendar the schedule is evaluated against
func (tc *TradeCron) MarketStatus() *MarketStatus {
	return tc.marketStatus
}

// Next returns the first time after forDate that the schedule fires on a
// trading day
func (tc *TradeCron) Next(forDate time.Time) (time.Time, error) {
	checkDate := forDate.In(tc.marketStatus.tz)
	for ii := 0; ii < maxIters; ii++ {
		checkDate = tc.Schedule.Next(checkDate)
		if checkDate.IsZero() {
			break
		}
		if tc.marketStatus.IsMarketDay(checkDate) {
			return checkDate, nil
		}
	}

	log.Error().Str("TimeSpec", tc.TimeSpec).Time("ForDate", forDate).Msg("tradecron schedule does not fire on a trading day")
	return time.Time{}, ErrNoTradingDay
}
