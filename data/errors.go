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

package data

import "errors"

var (
	ErrMissingDateColumn   = errors.New("no date column in price table")
	ErrMissingColumn       = errors.New("required column missing")
	ErrDuplicateSymbol     = errors.New("symbol listed more than once")
	ErrEmptyTable          = errors.New("table has no header")
	ErrInvalidDate         = errors.New("cannot parse date")
	ErrInvalidRefresh      = errors.New("invalid refresh policy")
	ErrConstituentsMissing = errors.New("constituents table not found")
	ErrNoPrices            = errors.New("no prices returned")
	ErrHTTPStatus          = errors.New("HTTP request returned invalid status code")
)
