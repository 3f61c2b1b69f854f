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
)

// ComputeVar calculates the gaussian parametric value-at-risk for a horizon of
// `horizon` trading days at the confidence implied by zScore:
//
//	varPrice = lastPrice * (mean*T - std*z*sqrt(T))
//	varPct   = varPrice / lastPrice
//
// The drift term scales linearly with T while the volatility term scales with
// sqrt(T). Only T=1 is used in practice; for T>1 the result is not a validated
// multi-day VaR.
func ComputeVar(stats ReturnStats, horizon int, zScore float64) (VarEstimate, error) {
	if horizon < 0 {
		return VarEstimate{}, fmt.Errorf("%w: horizon must not be negative, got %d", ErrInvalidHorizon, horizon)
	}

	if err := validateZScore(zScore); err != nil {
		return VarEstimate{}, err
	}

	if !isFinite(stats.LastPrice) || stats.LastPrice == 0 {
		return VarEstimate{}, fmt.Errorf("%w: last price %v cannot be used", ErrInsufficientData, stats.LastPrice)
	}

	t := float64(horizon)
	varPrice := stats.LastPrice * (stats.MeanReturn*t - stats.StdReturn*zScore*math.Sqrt(t))

	return VarEstimate{
		VarPrice: varPrice,
		VarPct:   varPrice / stats.LastPrice,
	}, nil
}
