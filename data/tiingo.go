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

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/penny-vault/pvrisk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TiingoAPI                = "https://api.tiingo.com"
	defaultTiingoConcurrency = 10
)

// Tiingo downloads end-of-day prices from the tiingo REST api
type Tiingo struct {
	apikey      string
	baseURL     string
	concurrency int
	useCache    bool
}

type tiingoJSONResponse struct {
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Open        float64 `json:"open"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	AdjHigh     float64 `json:"adjHigh"`
	AdjLow      float64 `json:"adjLow"`
	AdjOpen     float64 `json:"adjOpen"`
	AdjVolume   int64   `json:"adjVolume"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

type quoteResult struct {
	Ticker string
	Data   *dataframe.DataFrame
	Err    error
}

func NewTiingo(key string) *Tiingo {
	return &Tiingo{
		apikey:      key,
		baseURL:     TiingoAPI,
		concurrency: defaultTiingoConcurrency,
		useCache:    true,
	}
}

// WithConcurrency sets the maximum number of simultaneous requests
func (t *Tiingo) WithConcurrency(n int) *Tiingo {
	if n > 0 {
		t.concurrency = n
	}
	return t
}

// WithBaseURL points the client at a different tiingo compatible endpoint
func (t *Tiingo) WithBaseURL(url string) *Tiingo {
	t.baseURL = strings.TrimSuffix(url, "/")
	return t
}

// WithCache enables or disables the response cache
func (t *Tiingo) WithCache(enabled bool) *Tiingo {
	t.useCache = enabled
	return t
}

// FetchAdjustedClose downloads adjusted closing prices for each symbol between
// begin and end (inclusive) and aligns them into a single price matrix. Symbols
// that fail to download are returned in the error map and left out of the
// matrix; the returned error is only set when no symbol could be downloaded.
func (t *Tiingo) FetchAdjustedClose(ctx context.Context, symbols []string, begin, end time.Time) (*dataframe.DataFrame, map[string]error, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.FetchAdjustedClose")
	defer span.End()

	subLog := log.With().Int("NumSymbols", len(symbols)).Time("Begin", begin).Time("End", end).Logger()
	span.SetAttributes(
		attribute.Int("NumSymbols", len(symbols)),
		attribute.String("Begin", begin.Format(common.DateFormat)),
		attribute.String("End", end.Format(common.DateFormat)),
	)

	if len(symbols) == 0 {
		return &dataframe.DataFrame{}, map[string]error{}, nil
	}

	jobs := make(chan string)
	ch := make(chan quoteResult)

	workers := t.concurrency
	if workers > len(symbols) {
		workers = len(symbols)
	}

	for ii := 0; ii < workers; ii++ {
		go func() {
			for symbol := range jobs {
				tiingoDownloadWorker(ctx, ch, symbol, begin, end, t)
			}
		}()
	}

	go func() {
		for _, symbol := range symbols {
			jobs <- strings.ToUpper(strings.TrimSpace(symbol))
		}
		close(jobs)
	}()

	frames := make(dataframe.Map, len(symbols))
	failed := make(map[string]error)
	for range symbols {
		v := <-ch
		if v.Err == nil {
			frames[v.Ticker] = v.Data
		} else {
			subLog.Warn().Err(v.Err).Str("Ticker", v.Ticker).Msg("cannot download ticker data")
			failed[v.Ticker] = v.Err
		}
	}

	span.SetAttributes(attribute.Int("NumFailed", len(failed)))

	if len(frames) == 0 {
		err := ErrNoPrices
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		span.SetStatus(codes.Error, "no prices downloaded")
		subLog.Error().Err(err).Msg("no prices downloaded")
		return nil, failed, err
	}

	merged := frames.Merge()
	subLog.Info().Int("Days", merged.Len()).Int("Symbols", merged.ColCount()).Int("NumFailed", len(failed)).Msg("downloaded adjusted close prices")
	return merged, failed, nil
}

func tiingoDownloadWorker(ctx context.Context, result chan<- quoteResult, symbol string, begin, end time.Time, t *Tiingo) {
	df, err := t.loadAdjustedClose(ctx, symbol, begin, end)
	result <- quoteResult{
		Ticker: symbol,
		Data:   df,
		Err:    err,
	}
}

// tiingoSymbol converts share class notation (BRK.B) into tiingo's (BRK-B)
func tiingoSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, ".", "-")
}

func (t *Tiingo) loadAdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.loadAdjustedClose")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s", t.baseURL, tiingoSymbol(symbol), begin.Format(common.DateFormat), end.Format(common.DateFormat))
	span.SetAttributes(
		attribute.String("Url", query),
		attribute.String("Symbol", symbol),
	)

	cacheKey := common.CacheKey("tiingo", query)
	var body []byte
	var err error
	cached := false

	if t.useCache {
		body, err = common.CacheGet(ctx, cacheKey)
		switch {
		case err == nil:
			cached = true
		case !errors.Is(err, common.ErrCacheMiss):
			subLog.Warn().Err(err).Msg("cache lookup failed")
		}
	}

	subLog.Debug().Bool("Cached", cached).Msg("load data from tiingo")

	if !cached {
		body, err = t.get(ctx, fmt.Sprintf("%s&token=%s", query, t.apikey))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tiingo http request failed")
			subLog.Warn().Err(err).Str("Url", query).Msg("failed to load eod prices")
			return nil, err
		}
	}

	jsonResp := []tiingoJSONResponse{}
	if err := json.Unmarshal(body, &jsonResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not unmarshal json")
		subLog.Error().Err(err).Bytes("Body", body).Msg("could not unmarshal json")
		return nil, err
	}

	if len(jsonResp) == 0 {
		span.SetStatus(codes.Error, "no results returned")
		return nil, fmt.Errorf("%w for %s", ErrNoPrices, symbol)
	}

	df, err := tiingoToDataFrame(symbol, jsonResp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid tiingo response")
		return nil, err
	}

	if t.useCache && !cached {
		if err := common.CacheSet(ctx, cacheKey, body); err != nil {
			subLog.Warn().Err(err).Msg("could not cache tiingo response")
		}
	}

	return df, nil
}

func (t *Tiingo) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	return body, nil
}

func tiingoToDataFrame(symbol string, quotes []tiingoJSONResponse) (*dataframe.DataFrame, error) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Date < quotes[j].Date
	})

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, 0, len(quotes)),
		ColNames: []string{symbol},
		Vals:     [][]float64{make([]float64, 0, len(quotes))},
	}

	for _, quote := range quotes {
		dtParts := strings.Split(quote.Date, "T")
		dt, err := parseDate(dtParts[0], time.UTC)
		if err != nil {
			return nil, err
		}

		if n := len(df.Dates); n > 0 && !df.Dates[n-1].Before(dt) {
			continue
		}

		val := quote.AdjClose
		if val <= 0 {
			val = math.NaN()
		}

		df.Dates = append(df.Dates, dt)
		df.Vals[0] = append(df.Vals[0], val)
	}

	return df, nil
}
