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

package risk

import (
	"fmt"
	"sort"
	"time"
)

// Column names of a ranking as it is written to reports. The VaR columns
// depend on the confidence level and horizon; see Table.Columns.
const (
	ColAsOfDate    = "as_for_date"
	ColSymbol      = "symbol"
	ColCompanyName = "company_name"
	ColAdjPrice    = "adj_price"
	ColMeanChange  = "mean_price_chg"
	ColStdChange   = "std_price_chg"
)

// Table is a ranked set of VaR results, riskiest (most negative VarPct) first.
type Table struct {
	Level    string         `json:"level"`
	Horizon  int            `json:"horizon"`
	ZScore   float64        `json:"zScore"`
	AsOfDate time.Time      `json:"asOfDate"`
	Rows     []VarResult    `json:"rows"`
	Skipped  []*SymbolError `json:"-"`
}

func (t *Table) VarPriceColumn() string {
	return fmt.Sprintf("var_%s_price_%dd", t.Level, t.Horizon)
}

func (t *Table) VarPctColumn() string {
	return fmt.Sprintf("var%s_pct_%dd", t.Level, t.Horizon)
}

// Columns returns the header of the table in output order.
func (t *Table) Columns() []string {
	return []string{
		ColAsOfDate,
		ColSymbol,
		ColCompanyName,
		ColAdjPrice,
		ColMeanChange,
		ColStdChange,
		t.VarPriceColumn(),
		t.VarPctColumn(),
	}
}

// Sort orders rows ascending by VarPct; equal values are ordered by symbol so
// the output is deterministic.
func (t *Table) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.VarPct != b.VarPct {
			return a.VarPct < b.VarPct
		}
		return a.Symbol < b.Symbol
	})
}

// Lookup finds the row for symbol
func (t *Table) Lookup(symbol string) (VarResult, bool) {
	for _, row := range t.Rows {
		if row.Symbol == symbol {
			return row, true
		}
	}
	return VarResult{}, false
}

// SkippedSymbols lists the symbols that were dropped from the ranking
func (t *Table) SkippedSymbols() []string {
	symbols := make([]string, len(t.Skipped))
	for idx, s := range t.Skipped {
		symbols[idx] = s.Symbol
	}
	return symbols
}
