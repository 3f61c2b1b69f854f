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

package dataframe

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Map holds single column dataframes keyed by column name
type Map map[string]*DataFrame

// Merge outer joins every dataframe in the map into a single dataframe. The date index
// of the result is the sorted union of all date indexes; a column has NaN on any date
// its source dataframe has no observation for. Columns are ordered by name.
func (dfMap Map) Merge() *DataFrame {
	// union of all dates
	dateSet := make(map[int64]time.Time)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			dateSet[dt.UnixNano()] = dt
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIdx := make(map[int64]int, len(dates))
	for idx, dt := range dates {
		rowIdx[dt.UnixNano()] = idx
	}

	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, 0, len(keys)),
		Vals:     make([][]float64, 0, len(keys)),
	}

	for _, k := range keys {
		df := dfMap[k]
		for colIdx, colName := range df.ColNames {
			col := make([]float64, len(dates))
			for ii := range col {
				col[ii] = math.NaN()
			}
			for srcIdx, dt := range df.Dates {
				col[rowIdx[dt.UnixNano()]] = df.Vals[colIdx][srcIdx]
			}

			if merged.ColIndex(colName) != -1 {
				log.Warn().Str("Column", colName).Str("Key", k).Msg("duplicate column while merging dataframes; keeping first")
				continue
			}
			merged.ColNames = append(merged.ColNames, colName)
			merged.Vals = append(merged.Vals, col)
		}
	}

	return merged
}
