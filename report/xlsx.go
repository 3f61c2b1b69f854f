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

	"github.com/penny-vault/pvrisk/risk"
	"github.com/tealeg/xlsx/v3"
)

const defaultSheetName = "Sheet1"

// XLSX writes the ranking to the first sheet of an Excel workbook. Dates are
// stored as spreadsheet dates and numbers as numeric cells.
type XLSX struct {
	SheetName string
}

func (x *XLSX) Extension() string {
	return ".xlsx"
}

func (x *XLSX) Write(ctx context.Context, w io.Writer, table *risk.Table) error {
	name := x.SheetName
	if name == "" {
		name = defaultSheetName
	}

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(name)
	if err != nil {
		return err
	}

	header := sheet.AddRow()
	for _, col := range table.Columns() {
		header.AddCell().SetString(col)
	}

	for _, res := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := sheet.AddRow()
		row.AddCell().SetDate(res.AsOfDate)
		row.AddCell().SetString(res.Symbol)
		row.AddCell().SetString(res.CompanyName)
		row.AddCell().SetFloat(res.LastPrice)
		row.AddCell().SetFloat(res.MeanReturn)
		row.AddCell().SetFloat(res.StdReturn)
		row.AddCell().SetFloat(res.VarPrice)
		row.AddCell().SetFloat(res.VarPct)
	}

	return wb.Write(w)
}
