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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoProvider = errors.New("no price provider configured")
)

// PriceProvider downloads adjusted closing prices for a set of symbols
type PriceProvider interface {
	FetchAdjustedClose(ctx context.Context, symbols []string, begin, end time.Time) (*dataframe.DataFrame, map[string]error, error)
}

type FetchOptions struct {
	ConstituentsURL    string
	Exclude            []string
	MetadataPath       string
	PricesPath         string
	ConstituentsPolicy data.RefreshPolicy
	PricesPolicy       data.RefreshPolicy
	Provider           PriceProvider

	// LookbackDays is the number of calendar days of history to download
	LookbackDays int

	// Now returns the end of the download window; defaults to time.Now
	Now func() time.Time
}

// FetchResult summarizes what Fetch downloaded
type FetchResult struct {
	ConstituentsRefreshed bool
	PricesRefreshed       bool
	NumConstituents       int
	NumSymbols            int
	Failed                map[string]error
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// writeFile writes via a temporary file in the same directory so readers never
// observe a partially written file
func writeFile(path string, fn func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// Fetch refreshes the constituent list and the price history according to the
// configured refresh policies. prompter is consulted for PromptCaller.
func Fetch(ctx context.Context, opts FetchOptions, prompter data.Prompter) (*FetchResult, error) {
	res := &FetchResult{Failed: map[string]error{}}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ConstituentsURL == "" {
		opts.ConstituentsURL = data.ConstituentsURL
	}

	// constituents
	metadataExists, err := exists(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	refresh, err := data.ShouldRefresh(opts.ConstituentsPolicy, metadataExists, prompter,
		fmt.Sprintf("Download the S&P 500 constituent list to %s?", opts.MetadataPath))
	if err != nil {
		return nil, err
	}

	if refresh {
		constituents, err := data.FetchConstituents(ctx, opts.ConstituentsURL, opts.Exclude)
		if err != nil {
			return nil, err
		}

		err = writeFile(opts.MetadataPath, func(w io.Writer) error {
			return data.WriteSymbolMetadata(ctx, w, constituents)
		})
		if err != nil {
			log.Error().Err(err).Str("Path", opts.MetadataPath).Msg("could not write constituents")
			return nil, err
		}

		res.ConstituentsRefreshed = true
		res.NumConstituents = len(constituents)
		log.Info().Int("NumConstituents", len(constituents)).Str("Path", opts.MetadataPath).Msg("saved constituents")
	}

	// prices
	pricesExists, err := exists(opts.PricesPath)
	if err != nil {
		return nil, err
	}

	refresh, err = data.ShouldRefresh(opts.PricesPolicy, pricesExists, prompter,
		fmt.Sprintf("Download prices to %s?", opts.PricesPath))
	if err != nil {
		return nil, err
	}

	if !refresh {
		return res, nil
	}

	if opts.Provider == nil {
		return nil, ErrNoProvider
	}

	fh, err := os.Open(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	metadata, err := data.LoadSymbolMetadata(ctx, fh, data.MetadataOptions{})
	fh.Close()
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(metadata))
	for symbol := range metadata {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = 365
	}
	end := opts.Now()
	begin := end.AddDate(0, 0, -lookback)

	prices, failed, err := opts.Provider.FetchAdjustedClose(ctx, symbols, begin, end)
	if err != nil {
		return nil, err
	}

	err = writeFile(opts.PricesPath, func(w io.Writer) error {
		return data.WritePriceMatrix(ctx, w, prices, ',')
	})
	if err != nil {
		log.Error().Err(err).Str("Path", opts.PricesPath).Msg("could not write prices")
		return nil, err
	}

	res.PricesRefreshed = true
	res.NumSymbols = prices.ColCount()
	res.Failed = failed
	log.Info().Int("NumSymbols", prices.ColCount()).Int("NumFailed", len(failed)).Int("Days", prices.Len()).Str("Path", opts.PricesPath).Msg("saved prices")

	return res, nil
}
