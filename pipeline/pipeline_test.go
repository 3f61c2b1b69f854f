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

package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/penny-vault/pvrisk/pipeline"
	"github.com/penny-vault/pvrisk/risk"
)

const constituentsPage = `<html><body>
<table class="wikitable sortable" id="constituents"><tbody>
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr>
<tr><td><a href="#">MMM</a></td><td><a href="#">3M</a></td><td>Industrials</td></tr>
<tr><td><a href="#">AAPL</a></td><td><a href="#">Apple Inc.</a></td><td>Information Technology</td></tr>
<tr><td><a href="#">BRK.B</a></td><td><a href="#">Berkshire Hathaway</a></td><td>Financials</td></tr>
</tbody></table></body></html>`

type fakeProvider struct {
	symbols []string
	begin   time.Time
	end     time.Time
	calls   int
}

func (fp *fakeProvider) FetchAdjustedClose(ctx context.Context, symbols []string, begin, end time.Time) (*dataframe.DataFrame, map[string]error, error) {
	fp.calls++
	fp.symbols = symbols
	fp.begin = begin
	fp.end = end

	return &dataframe.DataFrame{
		Dates: []time.Time{
			time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		},
		ColNames: []string{"AAPL", "MMM"},
		Vals: [][]float64{
			{100, 102, 101, 103},
			{50, 50, 50, 50},
		},
	}, map[string]error{}, nil
}

var _ = Describe("Pipeline", func() {
	var (
		ctx          context.Context
		dir          string
		metadataPath string
		pricesPath   string
		provider     *fakeProvider
		opts         pipeline.FetchOptions
		now          time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dir, err = os.MkdirTemp("", "pvrisk")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		metadataPath = filepath.Join(dir, "data", "SP500_list.txt")
		pricesPath = filepath.Join(dir, "data", "ADJ_prices.csv")
		provider = &fakeProvider{}
		now = time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)

		opts = pipeline.FetchOptions{
			ConstituentsURL:    data.ConstituentsURL,
			Exclude:            data.DefaultExclusions,
			MetadataPath:       metadataPath,
			PricesPath:         pricesPath,
			ConstituentsPolicy: data.PromptCaller,
			PricesPolicy:       data.PromptCaller,
			Provider:           provider,
			LookbackDays:       365,
			Now:                func() time.Time { return now },
		}

		httpmock.RegisterResponder("GET", data.ConstituentsURL, httpmock.NewStringResponder(200, constituentsPage))
	})

	Describe("Fetch", func() {
		It("downloads everything when nothing exists yet", func() {
			res, err := pipeline.Fetch(ctx, opts, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConstituentsRefreshed).To(BeTrue())
			Expect(res.PricesRefreshed).To(BeTrue())
			Expect(res.NumConstituents).To(Equal(2))
			Expect(res.NumSymbols).To(Equal(2))

			Expect(provider.symbols).To(Equal([]string{"AAPL", "MMM"}))
			Expect(provider.end).To(Equal(now))
			Expect(provider.begin).To(Equal(now.AddDate(0, 0, -365)))

			content, err := os.ReadFile(metadataPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("Symbol\tname\nMMM\t3M\nAAPL\tApple Inc.\n"))

			_, err = os.Stat(pricesPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("asks before replacing existing files", func() {
			_, err := pipeline.Fetch(ctx, opts, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.calls).To(Equal(1))

			var questions []string
			prompter := data.PrompterFunc(func(q string) (bool, error) {
				questions = append(questions, q)
				return false, nil
			})

			res, err := pipeline.Fetch(ctx, opts, prompter)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ConstituentsRefreshed).To(BeFalse())
			Expect(res.PricesRefreshed).To(BeFalse())
			Expect(questions).To(HaveLen(2))
			Expect(provider.calls).To(Equal(1))
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})

		It("always refreshes when configured to", func() {
			opts.ConstituentsPolicy = data.AlwaysRefresh
			opts.PricesPolicy = data.AlwaysRefresh

			for range []int{1, 2} {
				_, err := pipeline.Fetch(ctx, opts, nil)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(provider.calls).To(Equal(2))
			Expect(httpmock.GetTotalCallCount()).To(Equal(2))
		})

		It("requires a provider to download prices", func() {
			opts.Provider = nil
			_, err := pipeline.Fetch(ctx, opts, nil)
			Expect(err).To(MatchError(pipeline.ErrNoProvider))
		})

		It("stops when the prompter fails", func() {
			_, err := pipeline.Fetch(ctx, opts, nil)
			Expect(err).NotTo(HaveOccurred())

			promptErr := errors.New("stdin closed")
			_, err = pipeline.Fetch(ctx, opts, data.PrompterFunc(func(string) (bool, error) {
				return false, promptErr
			}))
			Expect(err).To(MatchError(promptErr))
		})
	})

	Describe("Rank", func() {
		BeforeEach(func() {
			opts.ConstituentsPolicy = data.AlwaysRefresh
			opts.PricesPolicy = data.AlwaysRefresh
			_, err := pipeline.Fetch(ctx, opts, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("ranks the downloaded files", func() {
			src := &pipeline.FileSource{PricesPath: pricesPath, MetadataPath: metadataPath}
			table, err := pipeline.Rank(ctx, src, risk.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Rows).To(HaveLen(2))
			Expect(table.Rows[0].Symbol).To(Equal("AAPL"))
			Expect(table.Rows[0].CompanyName).To(Equal("Apple Inc."))
			Expect(table.Rows[0].VarPct).To(BeNumerically("~", -0.02996113630981744, 1e-12))
			Expect(table.Rows[1].VarPct).To(Equal(0.0))
		})

		It("limits the history to the lookback window", func() {
			src := &pipeline.FileSource{PricesPath: pricesPath, MetadataPath: metadataPath, LookbackDays: 1}
			input, err := src.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(input.Prices.Len()).To(Equal(2))

			_, err = pipeline.Rank(ctx, src, risk.DefaultConfig())
			Expect(err).To(MatchError(risk.ErrInsufficientData))
		})

		It("changes revision when a file changes", func() {
			src := &pipeline.FileSource{PricesPath: pricesPath, MetadataPath: metadataPath}
			before, err := src.Revision()
			Expect(err).NotTo(HaveOccurred())

			Expect(os.WriteFile(metadataPath, []byte("Symbol\tname\nAAPL\tApple\nMMM\t3M Company\n"), 0o644)).To(Succeed())
			after, err := src.Revision()
			Expect(err).NotTo(HaveOccurred())
			Expect(after).NotTo(Equal(before))
		})

		It("fails on invalid configuration before reading input", func() {
			src := &pipeline.FileSource{PricesPath: "/does/not/exist", MetadataPath: metadataPath}
			cfg := risk.DefaultConfig()
			cfg.Level = "90"
			_, err := pipeline.Rank(ctx, src, cfg)
			Expect(err).To(MatchError(risk.ErrInvalidConfidenceLevel))
		})
	})
})
