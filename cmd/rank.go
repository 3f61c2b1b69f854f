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
	"fmt"
	"strings"

	"github.com/penny-vault/pvrisk/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	flags := rankCmd.Flags()

	flags.StringP("confidence", "c", "99", "Confidence level, one of the configured z-score levels (95 or 99 by default)")
	bindFlag(flags, "var.confidence", "PVRISK_CONFIDENCE", "confidence")

	flags.IntP("horizon", "T", 1, "Holding period in trading days")
	bindFlag(flags, "var.horizon", "PVRISK_HORIZON", "horizon")

	flags.String("on-error", "abort", "What to do when a symbol cannot be evaluated: abort or skip")
	bindFlag(flags, "var.on_error", "PVRISK_ON_ERROR", "on-error")

	flags.Int("lookback-days", 0, "Only use the most recent number of calendar days of prices; 0 uses all history")
	bindFlag(flags, "var.lookback_days", "PVRISK_LOOKBACK_DAYS", "lookback-days")

	flags.StringP("format", "f", "xlsx", fmt.Sprintf("Report format, one of: %s", strings.Join(report.Formats(), ", ")))
	bindFlag(flags, "output.format", "PVRISK_FORMAT", "format")

	flags.StringP("output", "o", "", "Report file; '-' writes to stdout")
	bindFlag(flags, "files.output", "PVRISK_OUTPUT", "output")

	flags.Bool("save-db", false, "Also save the ranking to the database")
	bindFlag(flags, "database.save", "PVRISK_SAVE_DB", "save-db")

	rootCmd.AddCommand(rankCmd)
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stocks by value-at-risk",
	Long: `Compute the parametric value-at-risk of every symbol in the price matrix and
write the table sorted from the largest expected loss to the smallest.`,
	Run: func(cmd *cobra.Command, args []string) {
		defer startProfiling()()

		table, err := runRanking(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("ranking failed")
		}

		if len(table.Skipped) > 0 {
			log.Warn().Strs("Symbols", table.SkippedSymbols()).Msg("symbols were skipped")
		}
	},
}
