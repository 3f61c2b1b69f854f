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
	"fmt"
	"os"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Profile bool
var Trace bool

func init() {
	cobra.OnInitialize(common.SetupLogging)

	flags := rootCmd.PersistentFlags()

	// Logging configuration
	flags.String("log-level", "warning", "Logging level")
	bindFlag(flags, "log.level", "PVRISK_LOG_LEVEL", "log-level")

	flags.Bool("log-report-caller", false, "Log function name that called log statement")
	bindFlag(flags, "log.report_caller", "PVRISK_LOG_REPORT_CALLER", "log-report-caller")

	flags.String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindFlag(flags, "log.output", "PVRISK_LOG_OUTPUT", "log-output")

	flags.Bool("log-pretty", false, "Write human readable logs instead of JSON")
	bindFlag(flags, "log.pretty", "PVRISK_LOG_PRETTY", "log-pretty")

	// Input files
	flags.String("prices", "data/ADJ_prices_sp500.csv", "Adjusted close price matrix")
	bindFlag(flags, "files.prices", "PVRISK_PRICES", "prices")

	flags.String("metadata", "data/SP500_list.txt", "Symbol to company name table")
	bindFlag(flags, "files.metadata", "PVRISK_METADATA", "metadata")

	// Database
	flags.String("database-url", "", "PostgreSQL connection string")
	bindFlag(flags, "database.url", "PVRISK_DATABASE_URL", "database-url")

	// Cache
	flags.Bool("cache-redis", false, "Share downloaded data through redis")
	bindFlag(flags, "cache.redis", "PVRISK_CACHE_REDIS", "cache-redis")

	flags.String("cache-redis-url", "redis://localhost:6379/0", "Redis connection URL")
	bindFlag(flags, "cache.redis_url", "PVRISK_REDIS_URL", "cache-redis-url")

	flags.Int("cache-local-size", 1024, "Number of entries kept in the in-process cache")
	bindFlag(flags, "cache.local_size", "PVRISK_CACHE_LOCAL_SIZE", "cache-local-size")

	flags.Int("cache-ttl", 3600, "Seconds entries live in redis")
	bindFlag(flags, "cache.ttl", "PVRISK_CACHE_TTL", "cache-ttl")

	flags.BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
	flags.BoolVar(&Trace, "trace", false, "Trace program execution and save in trace.out")

	setDefaults()
}

// setDefaults registers defaults for keys that are only configurable through
// the config file or environment
func setDefaults() {
	viper.SetDefault("var.confidence", "99")
	viper.SetDefault("var.horizon", 1)
	viper.SetDefault("var.on_error", string(risk.Abort))
	viper.SetDefault("var.workers", 0)
	viper.SetDefault("var.lookback_days", 0)

	viper.SetDefault("output.format", "xlsx")

	viper.SetDefault("constituents.url", data.ConstituentsURL)
	viper.SetDefault("constituents.exclude", data.DefaultExclusions)

	viper.SetDefault("refresh.constituents", string(data.PromptCaller))
	viper.SetDefault("refresh.prices", string(data.PromptCaller))

	viper.SetDefault("tiingo.lookback_days", 365)
	viper.SetDefault("tiingo.concurrency", 10)

	viper.SetDefault("schedule.cron", "")
	viper.SetDefault("schedule.timezone", "America/New_York")
	viper.SetDefault("schedule.trading_days_only", true)

	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.cors_origins", "*")

	viper.SetDefault("otlp.enabled", false)
	viper.SetDefault("otlp.http", false)
	viper.SetDefault("otlp.endpoint", "")

	for _, binding := range [][2]string{
		{"constituents.url", "PVRISK_CONSTITUENTS_URL"},
		{"refresh.constituents", "PVRISK_REFRESH_CONSTITUENTS"},
		{"refresh.prices", "PVRISK_REFRESH_PRICES"},
		{"tiingo.token", "TIINGO_TOKEN"},
		{"tiingo.lookback_days", "PVRISK_TIINGO_LOOKBACK_DAYS"},
		{"tiingo.concurrency", "PVRISK_TIINGO_CONCURRENCY"},
		{"var.zscores", "PVRISK_ZSCORES"},
		{"var.workers", "PVRISK_WORKERS"},
		{"otlp.enabled", "PVRISK_OTLP_ENABLED"},
		{"otlp.http", "PVRISK_OTLP_HTTP"},
		{"otlp.endpoint", "PVRISK_OTLP_ENDPOINT"},
	} {
		if err := viper.BindEnv(binding[0], binding[1]); err != nil {
			log.Panic().Err(err).Str("Key", binding[0]).Msg("could not bind environment variable")
		}
	}
}

var rootCmd = &cobra.Command{
	Use:     "pvrisk",
	Version: common.CurrentVersion.String(),
	Short:   "Rank S&P 500 stocks by parametric value-at-risk",
	Long: `pvrisk downloads the S&P 500 constituent list and adjusted closing prices,
estimates the one-sided parametric value-at-risk of every stock, and ranks
them from riskiest to safest.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
