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

	"github.com/google/uuid"
	"github.com/penny-vault/pvrisk/data/database"
	"github.com/penny-vault/pvrisk/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var showRunID string
var showFormat string
var showOutput string

func init() {
	showCmd.Flags().StringVar(&showRunID, "run-id", "", "Ranking to show; defaults to the most recent")
	showCmd.Flags().StringVarP(&showFormat, "format", "f", report.FormatTable, "Report format")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "-", "Report file; '-' writes to stdout")

	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a ranking previously saved with rank --save-db",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		var runID uuid.UUID
		var err error
		if showRunID == "" {
			runID, err = database.LatestRunID(ctx)
		} else {
			runID, err = uuid.Parse(showRunID)
		}
		if err != nil {
			log.Fatal().Err(err).Str("RunID", showRunID).Msg("could not determine ranking to show")
		}

		table, err := database.LoadRanking(ctx, runID)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load ranking")
		}

		if err := writeReport(ctx, table, showFormat, showOutput); err != nil {
			log.Fatal().Err(err).Msg("could not write report")
		}
	},
}
