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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/tradecron"
)

var ErrNoSchedule = errors.New("schedule.cron is not configured")

func init() {
	flags := scheduleCmd.Flags()

	flags.String("cron", "", "Cron expression, e.g. '30 18 * * 1-5' or '@close 30' for 30 minutes after the market closes")
	bindFlag(flags, "schedule.cron", "PVRISK_SCHEDULE", "cron")

	flags.String("timezone", "America/New_York", "Timezone the cron expression is evaluated in")
	bindFlag(flags, "schedule.timezone", "PVRISK_TIMEZONE", "timezone")

	flags.Bool("trading-days-only", true, "Skip scheduled runs on weekends and market holidays")
	bindFlag(flags, "schedule.trading_days_only", "PVRISK_TRADING_DAYS_ONLY", "trading-days-only")

	flags.Bool("run-now", false, "Run once immediately before waiting for the schedule")

	rootCmd.AddCommand(scheduleCmd)
}

// parseSchedule validates a market aware cron expression and the timezone it
// runs in
func parseSchedule(expr, timezone string) (*tradecron.TradeCron, *time.Location, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil, ErrNoSchedule
	}

	tz, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, nil, err
	}

	schedule, err := tradecron.New(expr, tradecron.RegularHours)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	// gocron re-parses the expanded spec; make sure it agrees
	if _, err := cron.ParseStandard(schedule.TimeSpec); err != nil {
		return nil, nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	return schedule, tz, nil
}

// refreshAndRank is the unattended job: refresh policies of prompt keep the
// existing files since nobody can answer
func refreshAndRank(ctx context.Context) {
	start := time.Now()

	if _, err := runFetch(ctx, nil); err != nil {
		log.Error().Err(err).Msg("scheduled fetch failed")
		return
	}

	table, err := runRanking(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled ranking failed")
		return
	}

	log.Info().Int("Rows", len(table.Rows)).Int("Skipped", len(table.Skipped)).Dur("Elapsed", time.Since(start)).Msg("scheduled ranking complete")
}

// tradingDaysOnly wraps fn so that it does nothing when the exchange is closed
// for the day
func tradingDaysOnly(ms *tradecron.MarketStatus, now func() time.Time, fn func()) func() {
	return func() {
		t := now()
		if !ms.IsMarketDay(t) {
			log.Info().Time("Now", t).Msg("market closed today; skipping scheduled job")
			return
		}
		fn()
	}
}

// newScheduler creates a scheduler that runs fn on the configured cron
// expression
func newScheduler(fn func()) (*gocron.Scheduler, error) {
	expr := viper.GetString("schedule.cron")
	schedule, tz, err := parseSchedule(expr, viper.GetString("schedule.timezone"))
	if err != nil {
		return nil, err
	}

	if viper.GetBool("schedule.trading_days_only") {
		fn = tradingDaysOnly(schedule.MarketStatus(), time.Now, fn)
	}

	scheduler := gocron.NewScheduler(tz)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Cron(schedule.TimeSpec).Do(fn); err != nil {
		return nil, err
	}

	subLog := log.With().Str("Cron", expr).Str("TimeSpec", schedule.TimeSpec).Str("Timezone", tz.String()).Logger()
	if next, err := schedule.Next(time.Now()); err == nil {
		subLog.Info().Time("NextRun", next).Msg("scheduled job")
	} else {
		subLog.Warn().Err(err).Msg("scheduled job will never run on a trading day")
	}
	return scheduler, nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Periodically refresh the input files and rank",
	Run: func(cmd *cobra.Command, args []string) {
		if err := common.SetupCache(); err != nil {
			log.Fatal().Err(err).Msg("could not setup cache")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
			refreshAndRank(ctx)
		}

		scheduler, err := newScheduler(func() { refreshAndRank(ctx) })
		if err != nil {
			log.Fatal().Err(err).Msg("could not create scheduler")
		}

		scheduler.StartAsync()
		<-ctx.Done()

		log.Info().Msg("received signal; stopping scheduler")
		scheduler.Stop()
	},
}
