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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/dataframe"
	rdf "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
)

// PriceMatrixOptions configures how a price table is parsed. The zero value
// auto-detects the delimiter and looks for a column named Date.
type PriceMatrixOptions struct {
	Comma      rune
	DateColumn string
	Location   *time.Location
}

var dateLayouts = []string{
	common.DateFormat,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if dt, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func cleanHeader(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}

// priceConverter parses a single price cell. Cells that are not numbers are
// stored as NaN; non-empty ones are counted in unparsable under column.
func priceConverter(column string, unparsable map[string]int) imports.Converter {
	return imports.Converter{
		ConcreteType: float64(0),
		ConverterFunc: func(in interface{}) (interface{}, error) {
			cell := strings.TrimSpace(in.(string))
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				if cell != "" {
					unparsable[column]++
				}
				return math.NaN(), nil
			}
			return v, nil
		},
	}
}

// LoadPriceMatrix reads a table of adjusted closing prices with one row per
// trading day and one column per symbol. Empty or unparsable price cells are
// treated as missing (NaN); unparsable cells are reported with a warning per
// symbol.
func LoadPriceMatrix(ctx context.Context, r io.ReadSeeker, opts PriceMatrixOptions) (*dataframe.DataFrame, error) {
	subLog := log.With().Str("DateColumn", opts.DateColumn).Logger()

	comma, err := resolveDelimiter(r, opts.Comma)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(r, comma)
	if err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	dateColumn := opts.DateColumn
	if dateColumn == "" {
		dateColumn = common.DateIdx
	}

	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", dataframe.ErrDuplicateColumn, name)
		}
		seen[name] = true
	}

	dateIdx := -1
	unparsable := make(map[string]int)
	dictate := make(map[string]interface{}, len(header))
	for idx, name := range header {
		if dateIdx == -1 && strings.EqualFold(cleanHeader(name), dateColumn) {
			dateIdx = idx
			dictate[name] = imports.Converter{
				ConcreteType: time.Time{},
				ConverterFunc: func(in interface{}) (interface{}, error) {
					return parseDate(in.(string), loc)
				},
			}
			continue
		}
		dictate[name] = priceConverter(name, unparsable)
	}

	if dateIdx == -1 {
		return nil, fmt.Errorf("%w: looked for %q in %v", ErrMissingDateColumn, dateColumn, header)
	}

	raw, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		Comma:            comma,
		TrimLeadingSpace: true,
		DictateDataType:  dictate,
	})
	if err != nil {
		subLog.Error().Err(err).Msg("could not parse price table")
		return nil, fmt.Errorf("parse price table: %w", err)
	}

	nRows := raw.NRows()
	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, nRows),
		ColNames: make([]string, 0, len(raw.Series)-1),
		Vals:     make([][]float64, 0, len(raw.Series)-1),
	}

	for row := 0; row < nRows; row++ {
		dt, ok := raw.Series[dateIdx].Value(row).(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: row %d", ErrInvalidDate, row+1)
		}
		df.Dates = append(df.Dates, dt)
	}

	for idx, series := range raw.Series {
		if idx == dateIdx {
			continue
		}

		vals := make([]float64, nRows)
		for row := 0; row < nRows; row++ {
			if v, ok := series.Value(row).(float64); ok {
				vals[row] = v
			} else {
				vals[row] = math.NaN()
			}
		}

		symbol := strings.ToUpper(cleanHeader(series.Name()))
		if n := unparsable[series.Name()]; n > 0 {
			subLog.Warn().Str("Symbol", symbol).Int("Unparsable", n).Int("Days", nRows).Msg("price cells could not be parsed and are treated as missing")
		}

		df.ColNames = append(df.ColNames, symbol)
		df.Vals = append(df.Vals, vals)
	}

	if err := df.Validate(); err != nil {
		subLog.Error().Err(err).Msg("price table is malformed")
		return nil, err
	}

	subLog.Debug().Int("Days", df.Len()).Int("Symbols", df.ColCount()).Msg("loaded price matrix")
	return df, nil
}

// WritePriceMatrix writes df as a delimited table with a leading Date column.
// Missing prices are written as empty cells.
func WritePriceMatrix(ctx context.Context, w io.Writer, df *dataframe.DataFrame, comma rune) error {
	if err := df.Validate(); err != nil {
		return err
	}

	if comma == 0 {
		comma = ','
	}

	dates := make([]interface{}, len(df.Dates))
	for idx, dt := range df.Dates {
		dates[idx] = dt.Format(common.DateFormat)
	}

	series := make([]rdf.Series, 0, df.ColCount()+1)
	series = append(series, rdf.NewSeriesString(common.DateIdx, nil, dates...))
	for idx, name := range df.ColNames {
		s := rdf.NewSeriesFloat64(name, nil, df.Vals[idx])
		s.SetValueToStringFormatter(formatFloat)
		series = append(series, s)
	}

	empty := ""
	return exports.ExportToCSV(ctx, w, rdf.NewDataFrame(series...), exports.CSVExportOptions{
		Separator:  comma,
		NullString: &empty,
	})
}

func formatFloat(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
