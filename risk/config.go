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
	"runtime"
	"strings"
)

// FailurePolicy decides what the ranker does when a single symbol cannot be
// evaluated.
type FailurePolicy string

const (
	// Abort stops the ranking and returns the failing symbol's error
	Abort FailurePolicy = "abort"

	// SkipAndLog logs the failure, drops the symbol and continues
	SkipAndLog FailurePolicy = "skip"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Abort:
		return Abort, nil
	case SkipAndLog, "skip-and-log", "skipandlog":
		return SkipAndLog, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFailurePolicy, s)
	}
}

// Config controls a ranking run. Level selects a z-score out of ZScores,
// Horizon is the number of trading days the VaR is projected over.
type Config struct {
	Level   string
	Horizon int
	ZScores ZScoreTable
	OnError FailurePolicy
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Level:   "99",
		Horizon: 1,
		ZScores: DefaultZScores.Copy(),
		OnError: Abort,
		Workers: runtime.NumCPU(),
	}
}

// validate checks the configuration and returns the z-score for the selected
// level.
func (cfg *Config) validate() (float64, error) {
	if cfg.ZScores == nil {
		cfg.ZScores = DefaultZScores.Copy()
	}

	z, err := cfg.ZScores.Lookup(cfg.Level)
	if err != nil {
		return 0, err
	}

	if cfg.Horizon < 0 {
		return 0, fmt.Errorf("%w: horizon must not be negative, got %d", ErrInvalidHorizon, cfg.Horizon)
	}

	if cfg.OnError == "" {
		cfg.OnError = Abort
	}
	if cfg.OnError != Abort && cfg.OnError != SkipAndLog {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFailurePolicy, cfg.OnError)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return z, nil
}
