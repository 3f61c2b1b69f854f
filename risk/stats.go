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
	"math"

	"gonum.org/v1/gonum/stat"
)

// ForwardFill returns a copy of prices where every missing (NaN) observation is
// replaced by the last available price. Missing values at the start of the
// series have no prior price and remain NaN.
func ForwardFill(prices []float64) []float64 {
	filled := make([]float64, len(prices))
	last := math.NaN()
	for idx, p := range prices {
		if !math.IsNaN(p) {
			last = p
		}
		filled[idx] = last
	}
	return filled
}

// PctChange computes the simple period-over-period return p[t]/p[t-1] - 1 of a
// forward-filled series. Leading missing values are skipped, so the result
// starts with the return into the second real observation.
func PctChange(filled []float64) []float64 {
	first := 0
	for first < len(filled) && math.IsNaN(filled[first]) {
		first++
	}

	if len(filled)-first < 2 {
		return []float64{}
	}

	returns := make([]float64, 0, len(filled)-first-1)
	for idx := first + 1; idx < len(filled); idx++ {
		returns = append(returns, filled[idx]/filled[idx-1]-1)
	}
	return returns
}

// Estimate computes the mean and sample standard deviation (N-1) of the simple
// daily returns of prices along with the most recent price. Missing prices are
// forward-filled first. A series must yield at least two returns and finite
// statistics, otherwise ErrInsufficientData is returned.
func Estimate(prices []float64) (ReturnStats, error) {
	filled := ForwardFill(prices)
	returns := PctChange(filled)

	if len(returns) < 2 {
		return ReturnStats{}, fmt.Errorf("%w: %d usable return observations, need at least 2", ErrInsufficientData, len(returns))
	}

	stats := ReturnStats{
		MeanReturn:   stat.Mean(returns, nil),
		StdReturn:    stat.StdDev(returns, nil),
		LastPrice:    filled[len(filled)-1],
		Observations: len(returns),
	}

	if !isFinite(stats.MeanReturn) || !isFinite(stats.StdReturn) {
		return ReturnStats{}, fmt.Errorf("%w: non-finite return statistics (mean=%v, std=%v); series contains a zero or infinite price",
			ErrInsufficientData, stats.MeanReturn, stats.StdReturn)
	}

	if !isFinite(stats.LastPrice) || stats.LastPrice == 0 {
		return ReturnStats{}, fmt.Errorf("%w: last price %v cannot be used", ErrInsufficientData, stats.LastPrice)
	}

	return stats, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
