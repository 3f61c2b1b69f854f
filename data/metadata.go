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

package data

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/penny-vault/pvrisk/risk"
	rdf "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
)

const (
	MetadataSymbolColumn = "Symbol"
	MetadataNameColumn   = "name"
)

type MetadataOptions struct {
	Comma        rune
	SymbolColumn string
	NameColumn   string
}

// LoadSymbolMetadata reads the symbol to company name mapping. Symbols are
// upper-cased; rows with an empty symbol are ignored.
func LoadSymbolMetadata(ctx context.Context, r io.ReadSeeker, opts MetadataOptions) (risk.SymbolMetadata, error) {
	if opts.SymbolColumn == "" {
		opts.SymbolColumn = MetadataSymbolColumn
	}
	if opts.NameColumn == "" {
		opts.NameColumn = MetadataNameColumn
	}

	comma, err := resolveDelimiter(r, opts.Comma)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(r, comma)
	if err != nil {
		return nil, err
	}

	symbolIdx, nameIdx := -1, -1
	dictate := make(map[string]interface{}, len(header))
	for idx, name := range header {
		dictate[name] = ""
		switch cleanHeader(name) {
		case opts.SymbolColumn:
			symbolIdx = idx
		case opts.NameColumn:
			nameIdx = idx
		}
	}

	if symbolIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, opts.SymbolColumn)
	}
	if nameIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, opts.NameColumn)
	}

	raw, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		Comma:           comma,
		DictateDataType: dictate,
	})
	if err != nil {
		return nil, fmt.Errorf("parse metadata table: %w", err)
	}

	metadata := make(risk.SymbolMetadata, raw.NRows())
	for row := 0; row < raw.NRows(); row++ {
		symbol, _ := raw.Series[symbolIdx].Value(row).(string)
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			log.Warn().Int("Row", row+1).Msg("ignoring metadata row without a symbol")
			continue
		}

		if _, exists := metadata[symbol]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol)
		}

		name, _ := raw.Series[nameIdx].Value(row).(string)
		metadata[symbol] = strings.TrimSpace(name)
	}

	log.Debug().Int("Symbols", len(metadata)).Msg("loaded symbol metadata")
	return metadata, nil
}

// WriteSymbolMetadata writes constituents as a tab-delimited table with the
// columns Symbol and name.
func WriteSymbolMetadata(ctx context.Context, w io.Writer, constituents []*Constituent) error {
	symbols := make([]interface{}, len(constituents))
	names := make([]interface{}, len(constituents))
	for idx, c := range constituents {
		symbols[idx] = c.Symbol
		names[idx] = c.Security
	}

	df := rdf.NewDataFrame(
		rdf.NewSeriesString(MetadataSymbolColumn, nil, symbols...),
		rdf.NewSeriesString(MetadataNameColumn, nil, names...),
	)

	return exports.ExportToCSV(ctx, w, df, exports.CSVExportOptions{
		Separator: '\t',
	})
}
