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

// Package report writes ranked VaR tables to spreadsheets, delimited files,
// JSON and the terminal.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/penny-vault/pvrisk/risk"
)

var (
	ErrUnknownFormat = errors.New("unknown output format")
)

const (
	FormatXLSX  = "xlsx"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Writer serializes a ranking to w
type Writer interface {
	Write(ctx context.Context, w io.Writer, table *risk.Table) error
	Extension() string
}

// New returns the writer for format
func New(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		return &XLSX{SheetName: defaultSheetName}, nil
	case FormatCSV:
		return &CSV{Separator: ','}, nil
	case "tsv":
		return &CSV{Separator: '\t'}, nil
	case FormatJSON:
		return &JSON{Indent: true}, nil
	case FormatTable:
		return &Table{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Formats lists the names accepted by New
func Formats() []string {
	return []string{FormatXLSX, FormatCSV, "tsv", FormatJSON, FormatTable}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
