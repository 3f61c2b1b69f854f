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

package report

import (
	"context"
	"io"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/risk"
	rdf "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
)

// CSV writes the ranking as a delimited text table
type CSV struct {
	Separator rune
}

func (c *CSV) Extension() string {
	if c.Separator == '\t' {
		return ".tsv"
	}
	return ".csv"
}

func (c *CSV) Write(ctx context.Context, w io.Writer, table *risk.Table) error {
	cols := table.Columns()
	n := len(table.Rows)

	dates := make([]interface{}, n)
	symbols := make([]interface{}, n)
	names := make([]interface{}, n)
	prices := make([]float64, n)
	means := make([]float64, n)
	stds := make([]float64, n)
	varPrices := make([]float64, n)
	varPcts := make([]float64, n)

	for idx, row := range table.Rows {
		dates[idx] = row.AsOfDate.Format(common.DateFormat)
		symbols[idx] = row.Symbol
		names[idx] = row.CompanyName
		prices[idx] = row.LastPrice
		means[idx] = row.MeanReturn
		stds[idx] = row.StdReturn
		varPrices[idx] = row.VarPrice
		varPcts[idx] = row.VarPct
	}

	series := []rdf.Series{
		rdf.NewSeriesString(cols[0], nil, dates...),
		rdf.NewSeriesString(cols[1], nil, symbols...),
		rdf.NewSeriesString(cols[2], nil, names...),
	}
	for idx, vals := range [][]float64{prices, means, stds, varPrices, varPcts} {
		s := rdf.NewSeriesFloat64(cols[idx+3], nil, vals)
		s.SetValueToStringFormatter(func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return formatFloat(f)
			}
			return ""
		})
		series = append(series, s)
	}

	sep := c.Separator
	if sep == 0 {
		sep = ','
	}

	return exports.ExportToCSV(ctx, w, rdf.NewDataFrame(series...), exports.CSVExportOptions{
		Separator: sep,
	})
}
