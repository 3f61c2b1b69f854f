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
	"context"
	"sort"
	"sync"

	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/penny-vault/pvrisk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Ranker evaluates every symbol of a price matrix and orders the results by
// downside risk.
type Ranker struct {
	cfg    Config
	zScore float64
}

type rankJob struct {
	idx    int
	symbol string
	prices []float64
}

// rankSlot holds the outcome for a single symbol; exactly one of res and err
// is set
type rankSlot struct {
	res *VarResult
	err *SymbolError
}

// NewRanker validates cfg and returns a ranker bound to it
func NewRanker(cfg Config) (*Ranker, error) {
	if cfg.ZScores != nil {
		cfg.ZScores = cfg.ZScores.Copy()
	}
	z, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	return &Ranker{
		cfg:    cfg,
		zScore: z,
	}, nil
}

func (r *Ranker) Config() Config {
	return r.cfg
}

func (r *Ranker) ZScore() float64 {
	return r.zScore
}

// Rank computes the VaR of every column in matrix and returns the rows sorted
// by VarPct (most negative first). Neither matrix nor metadata is modified.
func (r *Ranker) Rank(ctx context.Context, matrix *dataframe.DataFrame, metadata SymbolMetadata) (*Table, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "risk.Rank")
	defer span.End()

	subLog := log.With().Str("Level", r.cfg.Level).Int("Horizon", r.cfg.Horizon).Str("OnError", string(r.cfg.OnError)).Logger()

	if matrix == nil || matrix.Len() == 0 || matrix.ColCount() == 0 {
		span.SetStatus(codes.Error, ErrNoPriceData.Error())
		return nil, ErrNoPriceData
	}

	if err := matrix.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid price matrix")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("Level", r.cfg.Level),
		attribute.Int("Horizon", r.cfg.Horizon),
		attribute.Int("Symbols", matrix.ColCount()),
		attribute.Int("Days", matrix.Len()),
	)

	asOf := matrix.End()
	slots := make([]rankSlot, matrix.ColCount())

	jobs := make(chan rankJob)
	var wg sync.WaitGroup

	workers := r.cfg.Workers
	if workers > len(slots) {
		workers = len(slots)
	}

	for ii := 0; ii < workers; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				slots[job.idx] = r.evaluate(job, metadata)
			}
		}()
	}

	for idx, symbol := range matrix.ColNames {
		if err := ctx.Err(); err != nil {
			close(jobs)
			wg.Wait()
			span.RecordError(err)
			span.SetStatus(codes.Error, "ranking cancelled")
			return nil, err
		}
		jobs <- rankJob{idx: idx, symbol: symbol, prices: matrix.Vals[idx]}
	}
	close(jobs)
	wg.Wait()

	table := &Table{
		Level:    r.cfg.Level,
		Horizon:  r.cfg.Horizon,
		ZScore:   r.zScore,
		AsOfDate: asOf,
		Rows:     make([]VarResult, 0, len(slots)),
	}

	failures := make([]*SymbolError, 0)
	for _, slot := range slots {
		if slot.err != nil {
			failures = append(failures, slot.err)
			continue
		}
		slot.res.AsOfDate = asOf
		table.Rows = append(table.Rows, *slot.res)
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Symbol < failures[j].Symbol
	})

	if len(failures) > 0 {
		if r.cfg.OnError == Abort {
			first := failures[0]
			span.RecordError(first)
			span.SetStatus(codes.Error, "ranking aborted")
			subLog.Error().Err(first.Err).Str("Symbol", first.Symbol).Int("NumFailed", len(failures)).Msg("ranking aborted")
			return nil, first
		}

		for _, failure := range failures {
			subLog.Warn().Err(failure.Err).Str("Symbol", failure.Symbol).Msg("skipping symbol")
		}
		table.Skipped = failures
	}

	table.Sort()

	span.SetAttributes(
		attribute.Int("Ranked", len(table.Rows)),
		attribute.Int("Skipped", len(table.Skipped)),
	)
	subLog.Info().Int("Ranked", len(table.Rows)).Int("Skipped", len(table.Skipped)).Time("AsOf", asOf).Msg("ranking complete")

	return table, nil
}

func (r *Ranker) evaluate(job rankJob, metadata SymbolMetadata) rankSlot {
	name, ok := metadata[job.symbol]
	if !ok {
		return rankSlot{err: &SymbolError{Symbol: job.symbol, Err: ErrMissingMetadata}}
	}

	stats, err := Estimate(job.prices)
	if err != nil {
		return rankSlot{err: &SymbolError{Symbol: job.symbol, Err: err}}
	}

	est, err := ComputeVar(stats, r.cfg.Horizon, r.zScore)
	if err != nil {
		return rankSlot{err: &SymbolError{Symbol: job.symbol, Err: err}}
	}

	return rankSlot{res: &VarResult{
		Symbol:      job.symbol,
		CompanyName: name,
		LastPrice:   stats.LastPrice,
		MeanReturn:  stats.MeanReturn,
		StdReturn:   stats.StdReturn,
		VarPrice:    est.VarPrice,
		VarPct:      est.VarPct,
	}}
}
