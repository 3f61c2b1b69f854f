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
	"os"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	flags := fetchCmd.Flags()

	flags.String("tiingo-token", "", "Tiingo API token")
	bindFlag(flags, "tiingo.token", "TIINGO_TOKEN", "tiingo-token")

	flags.String("refresh-constituents", string(data.PromptCaller), "Replace an existing constituent list: always, skip, or prompt")
	bindFlag(flags, "refresh.constituents", "PVRISK_REFRESH_CONSTITUENTS", "refresh-constituents")

	flags.String("refresh-prices", string(data.PromptCaller), "Replace an existing price matrix: always, skip, or prompt")
	bindFlag(flags, "refresh.prices", "PVRISK_REFRESH_PRICES", "refresh-prices")

	rootCmd.AddCommand(fetchCmd)
}

// runFetch refreshes the input files; prompter may be nil when no one is
// around to answer
func runFetch(ctx context.Context, prompter data.Prompter) (*pipeline.FetchResult, error) {
	opts, err := fetchOptions()
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Fetch(ctx, opts, prompter)
	if err != nil {
		return nil, err
	}

	for symbol, err := range res.Failed {
		log.Warn().Str("Symbol", symbol).Err(err).Msg("could not download prices")
	}

	return res, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the S&P 500 constituent list and adjusted closing prices",
	Run: func(cmd *cobra.Command, args []string) {
		defer startProfiling()()

		if err := common.SetupCache(); err != nil {
			log.Fatal().Err(err).Msg("could not setup cache")
		}

		res, err := runFetch(context.Background(), newLinePrompter(os.Stdin, os.Stdout))
		if err != nil {
			log.Fatal().Err(err).Msg("fetch failed")
		}

		log.Info().
			Bool("ConstituentsRefreshed", res.ConstituentsRefreshed).
			Bool("PricesRefreshed", res.PricesRefreshed).
			Int("NumSymbols", res.NumSymbols).
			Int("NumFailed", len(res.Failed)).
			Msg("fetch complete")
	},
}
