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
	"errors"
	"fmt"
)

var (
	ErrInsufficientData       = errors.New("insufficient price data")
	ErrMissingMetadata        = errors.New("symbol missing from metadata")
	ErrInvalidConfidenceLevel = errors.New("invalid confidence level")
	ErrInvalidHorizon         = errors.New("invalid horizon")
	ErrInvalidFailurePolicy   = errors.New("invalid failure policy")
	ErrNoPriceData            = errors.New("price matrix is empty")
)

// SymbolError is the failure of a single symbol's computation
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Symbol, e.Err.Error())
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}
