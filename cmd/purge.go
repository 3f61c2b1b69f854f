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
	"time"

	"github.com/penny-vault/pvrisk/data/database"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	purgeCmd.Flags().Duration("max-age", 90*24*time.Hour, "Delete rankings saved longer ago than this")
	bindFlag(purgeCmd.Flags(), "database.max_ranking_age", "PVRISK_MAX_RANKING_AGE", "max-age")

	rootCmd.AddCommand(purgeCmd)
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete saved rankings older than max-age",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		// setup database
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}

		maxAge := viper.GetDuration("database.max_ranking_age")
		if maxAge <= 0 {
			log.Fatal().Dur("MaxAge", maxAge).Msg("max-age must be positive")
		}

		cutoff := time.Now().Add(-maxAge)
		cnt, err := database.PurgeRankings(ctx, cutoff)
		if err != nil {
			log.Fatal().Err(err).Msg("could not purge rankings")
		}

		log.Info().Int64("NumDeleted", cnt).Time("Cutoff", cutoff).Msg("purge complete")
	},
}
