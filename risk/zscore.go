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
	"sort"
)

// ZScoreTable maps a confidence level selector (e.g. "99") to the one-sided
// gaussian quantile used by the parametric VaR calculation
type ZScoreTable map[string]float64

// DefaultZScores are the recognized confidence levels. Callers that need other
// levels should Copy the table and add to it rather than modify it in place.
var DefaultZScores = ZScoreTable{
	"95": 1.65,
	"99": 2.33,
}

// Copy returns a copy of the table that may be modified freely
func (zt ZScoreTable) Copy() ZScoreTable {
	res := make(ZScoreTable, len(zt))
	for k, v := range zt {
		res[k] = v
	}
	return res
}

// Levels returns the confidence level selectors in the table in sorted order
func (zt ZScoreTable) Levels() []string {
	levels := make([]string, 0, len(zt))
	for k := range zt {
		levels = append(levels, k)
	}
	sort.Strings(levels)
	return levels
}

// Lookup returns the z-score for level. Unknown levels and non-positive z-scores
// are an ErrInvalidConfidenceLevel
func (zt ZScoreTable) Lookup(level string) (float64, error) {
	z, ok := zt[level]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not one of %v", ErrInvalidConfidenceLevel, level, zt.Levels())
	}
	if err := validateZScore(z); err != nil {
		return 0, fmt.Errorf("level %q: %w", level, err)
	}
	return z, nil
}

func validateZScore(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) || z <= 0 {
		return fmt.Errorf("%w: z-score must be a positive finite number, got %v", ErrInvalidConfidenceLevel, z)
	}
	return nil
}
