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
	"time"
)

// SymbolMetadata maps a ticker symbol to the company display name
type SymbolMetadata map[string]string

// ReturnStats summarizes the simple daily returns of a single price series
type ReturnStats struct {
	MeanReturn float64
	StdReturn  float64
	LastPrice  float64

	// Observations is the number of returns the statistics were computed from
	Observations int
}

// VarEstimate is the parametric value-at-risk of a single position; VarPrice is
// denominated in price units and VarPct as a fraction of the last price
type VarEstimate struct {
	VarPrice float64
	VarPct   float64
}

// VarResult is a single row of the risk table
type VarResult struct {
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"companyName"`
	AsOfDate    time.Time `json:"asOfDate"`
	LastPrice   float64   `json:"lastPrice"`
	MeanReturn  float64   `json:"meanReturn"`
	StdReturn   float64   `json:"stdReturn"`
	VarPrice    float64   `json:"varPrice"`
	VarPct      float64   `json:"varPct"`
}
