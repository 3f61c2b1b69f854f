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

package handler

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/observability/opentelemetry"
	"github.com/penny-vault/pvrisk/pipeline"
	"github.com/penny-vault/pvrisk/report"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	sourceLocker sync.RWMutex
	source       pipeline.Source
	baseConfig   = risk.DefaultConfig()
)

// SetSource configures where ranking input is loaded from and the defaults
// applied to requests that do not override them
func SetSource(src pipeline.Source, cfg risk.Config) {
	sourceLocker.Lock()
	defer sourceLocker.Unlock()

	source = src
	baseConfig = cfg
}

func currentSource() (pipeline.Source, risk.Config) {
	sourceLocker.RLock()
	defer sourceLocker.RUnlock()

	return source, baseConfig
}

type rankedRow struct {
	Rank int `json:"rank"`
	risk.VarResult
}

type cachedDocument struct {
	Rows []risk.VarResult `json:"rows"`
}

// requestConfig applies the confidence and horizon query parameters to the
// default configuration
func requestConfig(c *fiber.Ctx, cfg risk.Config) (risk.Config, error) {
	cfg.Level = c.Query("confidence", cfg.Level)

	if horizonStr := c.Query("horizon"); horizonStr != "" {
		horizon, err := strconv.Atoi(horizonStr)
		if err != nil {
			return cfg, risk.ErrInvalidHorizon
		}
		cfg.Horizon = horizon
	}

	if onError := c.Query("onError"); onError != "" {
		policy, err := risk.ParseFailurePolicy(onError)
		if err != nil {
			return cfg, err
		}
		cfg.OnError = policy
	}

	return cfg, nil
}

// rankingDocument returns the serialized ranking for cfg. Results are cached
// until the source's revision changes.
func rankingDocument(ctx context.Context, src pipeline.Source, cfg risk.Config) ([]byte, error) {
	revision, err := src.Revision()
	if err != nil {
		return nil, err
	}

	key := common.CacheKey("ranking", revision, cfg.Level, strconv.Itoa(cfg.Horizon), string(cfg.OnError))
	if doc, err := common.CacheGet(ctx, key); err == nil {
		return doc, nil
	}

	table, err := pipeline.Rank(ctx, src, cfg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := &report.JSON{}
	if err := writer.Write(ctx, &buf, table); err != nil {
		return nil, err
	}

	doc := buf.Bytes()
	if err := common.CacheSet(ctx, key, doc); err != nil {
		log.Warn().Err(err).Msg("could not cache ranking")
	}

	return doc, nil
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, risk.ErrInvalidConfidenceLevel),
		errors.Is(err, risk.ErrInvalidHorizon),
		errors.Is(err, risk.ErrInvalidFailurePolicy):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.ErrRequestTimeout
	default:
		return fiber.ErrInternalServerError
	}
}

func loadRanking(c *fiber.Ctx, spanName string) ([]byte, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), spanName,
		trace.WithAttributes(opentelemetry.SpanAttributesFromFiber(c)...))
	defer span.End()

	src, cfg := currentSource()
	if src == nil {
		span.SetStatus(codes.Error, "no ranking source configured")
		log.Error().Str("Route", c.Route().Path).Msg("ranking requested but no source is configured")
		return nil, fiber.ErrServiceUnavailable
	}

	cfg, err := requestConfig(c, cfg)
	if err != nil {
		log.Warn().Err(err).Str("Confidence", c.Query("confidence")).Str("Horizon", c.Query("horizon")).Msg("invalid ranking parameters")
		return nil, statusFromError(err)
	}

	doc, err := rankingDocument(ctx, src, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ranking failed")
		log.Error().Err(err).Str("Level", cfg.Level).Int("Horizon", cfg.Horizon).Msg("could not compute ranking")
		return nil, statusFromError(err)
	}

	return doc, nil
}

// Ranking returns the full VaR ranking. Query parameters `confidence`,
// `horizon`, and `onError` override the server defaults.
func Ranking(c *fiber.Ctx) error {
	doc, err := loadRanking(c, "handler.Ranking")
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(doc)
}

// RankingForSymbol returns a single row of the ranking along with its
// position in the sorted table (1 is the riskiest)
func RankingForSymbol(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))

	doc, err := loadRanking(c, "handler.RankingForSymbol")
	if err != nil {
		return err
	}

	var ranking cachedDocument
	if err := json.Unmarshal(doc, &ranking); err != nil {
		log.Error().Err(err).Msg("could not decode cached ranking")
		return fiber.ErrInternalServerError
	}

	for idx, row := range ranking.Rows {
		if row.Symbol == symbol {
			return c.JSON(rankedRow{Rank: idx + 1, VarResult: row})
		}
	}

	return fiber.ErrNotFound
}

// ConfidenceLevels lists the confidence levels that may be requested
func ConfidenceLevels(c *fiber.Ctx) error {
	_, cfg := currentSource()
	zscores := cfg.ZScores
	if zscores == nil {
		zscores = risk.DefaultZScores
	}

	levels := make([]fiber.Map, 0, len(zscores))
	for _, level := range zscores.Levels() {
		levels = append(levels, fiber.Map{"level": level, "zScore": zscores[level]})
	}
	return c.JSON(levels)
}
