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

// Package pipeline ties the loaders, the ranker and the downloaders together
// into the operations exposed by the command line and the HTTP api.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/rs/zerolog/log"
)

// Input is everything needed to compute a ranking
type Input struct {
	Prices   *dataframe.DataFrame
	Metadata risk.SymbolMetadata

	// Revision changes whenever the underlying data changes
	Revision string
}

// Source provides ranking input
type Source interface {
	Load(ctx context.Context) (*Input, error)
	Revision() (string, error)
}

// FileSource reads prices and metadata from delimited files on disk
type FileSource struct {
	PricesPath   string
	MetadataPath string

	// LookbackDays limits the price history to the most recent days; 0 uses
	// all available history
	LookbackDays int
}

func fileRevision(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// Revision identifies the current contents of both files
func (fs *FileSource) Revision() (string, error) {
	prices, err := fileRevision(fs.PricesPath)
	if err != nil {
		return "", err
	}
	metadata, err := fileRevision(fs.MetadataPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%s|%d", prices, metadata, fs.LookbackDays), nil
}

func (fs *FileSource) Load(ctx context.Context) (*Input, error) {
	subLog := log.With().Str("Prices", fs.PricesPath).Str("Metadata", fs.MetadataPath).Logger()

	revision, err := fs.Revision()
	if err != nil {
		subLog.Error().Err(err).Msg("input files not available")
		return nil, err
	}

	pricesFh, err := os.Open(fs.PricesPath)
	if err != nil {
		return nil, err
	}
	defer pricesFh.Close()

	prices, err := data.LoadPriceMatrix(ctx, pricesFh, data.PriceMatrixOptions{})
	if err != nil {
		subLog.Error().Err(err).Msg("could not load price matrix")
		return nil, fmt.Errorf("load %s: %w", fs.PricesPath, err)
	}

	metadataFh, err := os.Open(fs.MetadataPath)
	if err != nil {
		return nil, err
	}
	defer metadataFh.Close()

	metadata, err := data.LoadSymbolMetadata(ctx, metadataFh, data.MetadataOptions{})
	if err != nil {
		subLog.Error().Err(err).Msg("could not load symbol metadata")
		return nil, fmt.Errorf("load %s: %w", fs.MetadataPath, err)
	}

	if fs.LookbackDays > 0 && prices.Len() > 0 {
		end := prices.End()
		prices = prices.Trim(end.AddDate(0, 0, -fs.LookbackDays), end)
	}

	return &Input{
		Prices:   prices,
		Metadata: metadata,
		Revision: revision,
	}, nil
}

// Rank loads the input from src and ranks it with cfg
func Rank(ctx context.Context, src Source, cfg risk.Config) (*risk.Table, error) {
	ranker, err := risk.NewRanker(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	input, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	table, err := ranker.Rank(ctx, input.Prices, input.Metadata)
	if err != nil {
		return nil, err
	}

	log.Debug().Dur("Elapsed", time.Since(start)).Int("Rows", len(table.Rows)).Msg("ranking computed")
	return table, nil
}
