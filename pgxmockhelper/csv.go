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

// Package pgxmockhelper builds pgxmock result sets from CSV fixtures
package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

// NewCSVRows reads a comma separated fixture. typeMap converts the named
// columns to one of: date, float64, int, or uuid; all other columns are strings.
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	// break raw data into an array of lines
	lines := strings.Split(string(rawData), "\n")

	// sanity checks:
	// - array length is at least 2 (header + trailing newline)
	// - make sure last line ends in newline
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	// parse header
	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1] // discard first and last rows
	rows.header = strings.Split(headerRaw, ",")

	// parse each line and create a row
	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		if len(parts) != len(rows.header) {
			subLog.Panic().Str("Line", ll).Int("NumCols", len(parts)).Msg("line does not match header")
		}
		for idx, val := range parts {
			colName := rows.header[idx]
			cols[idx] = convert(subLog.With().Str("Column", colName).Str("Val", val).Logger(), typeMap[colName], val)
			if typeMap[colName] == "date" {
				rows.dateCol = idx
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

func convert(subLog zerolog.Logger, typeConv string, val string) any {
	switch typeConv {
	case "date":
		parsed, err := time.Parse("2006-01-02", val)
		if err != nil {
			subLog.Panic().Err(err).Msg("could not convert val to datetime of format 2006-01-02")
		}
		return parsed
	case "float64":
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			subLog.Panic().Err(err).Msg("could not convert val to float64")
		}
		return parsed
	case "int":
		parsed, err := strconv.Atoi(val)
		if err != nil {
			subLog.Panic().Err(err).Msg("could not convert val to int")
		}
		return parsed
	case "uuid":
		parsed, err := uuid.Parse(val)
		if err != nil {
			subLog.Panic().Err(err).Msg("could not convert val to uuid")
		}
		return parsed
	default:
		// no type conversion specified - use as is
		return val
	}
}

// Between keeps the rows whose date column falls in [a, b]
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	newRows := make([][]any, 0, len(csvRows.rows))
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

// Len is the number of rows
func (csvRows *CSVRows) Len() int {
	return len(csvRows.rows)
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// RankingTypes are the column conversions for var_ranking fixtures
var RankingTypes = map[string]string{
	"as_of_date":     "date",
	"horizon":        "int",
	"adj_price":      "float64",
	"mean_price_chg": "float64",
	"std_price_chg":  "float64",
	"var_price":      "float64",
	"var_pct":        "float64",
}

// MockRankingQuery expects a transaction that reads the saved ranking in fn
func MockRankingQuery(db pgxmock.PgxConnIface, fn string, runID uuid.UUID) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT as_of_date, confidence, horizon, symbol").WithArgs(runID).WillReturnRows(
		NewCSVRows(fn, RankingTypes).Rows())
	db.ExpectCommit()
}
