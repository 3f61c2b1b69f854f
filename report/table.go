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
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/risk"
)

// Table renders the ranking as an ASCII table for the terminal
type Table struct {
	// Limit restricts output to the first Limit rows when greater than zero
	Limit int
}

func (t *Table) Extension() string {
	return ".txt"
}

func (t *Table) Write(ctx context.Context, w io.Writer, table *risk.Table) error {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader(table.Columns())
	tbl.SetBorder(false)
	tbl.SetAutoFormatHeaders(false)

	rows := table.Rows
	if t.Limit > 0 && t.Limit < len(rows) {
		rows = rows[:t.Limit]
	}

	for _, row := range rows {
		tbl.Append([]string{
			row.AsOfDate.Format(common.DateFormat),
			row.Symbol,
			row.CompanyName,
			fmt.Sprintf("%.2f", row.LastPrice),
			fmt.Sprintf("%.6f", row.MeanReturn),
			fmt.Sprintf("%.6f", row.StdReturn),
			fmt.Sprintf("%.4f", row.VarPrice),
			fmt.Sprintf("%.4f", row.VarPct),
		})
	}

	footer := make([]string, len(table.Columns()))
	footer[0] = "Num Rows"
	footer[1] = fmt.Sprintf("%d", len(table.Rows))
	footer[2] = fmt.Sprintf("Skipped %d", len(table.Skipped))
	tbl.SetFooter(footer)

	tbl.Render()
	return ctx.Err()
}
