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

package data_test

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/data"
)

const testConstituentsURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

func fixture(name string) []byte {
	content, err := os.ReadFile("testdata/" + name)
	Expect(err).NotTo(HaveOccurred())
	return content
}

var _ = Describe("Constituents", func() {
	It("parses the constituents table", func() {
		fh := openFixture("sp500.html")
		constituents, err := data.ParseConstituents(fh)
		Expect(err).NotTo(HaveOccurred())
		Expect(constituents).To(HaveLen(4))
		Expect(*constituents[0]).To(Equal(data.Constituent{
			Symbol:      "MMM",
			Security:    "3M",
			Sector:      "Industrials",
			SubIndustry: "Industrial Conglomerates",
			DateAdded:   "1957-03-04",
			CIK:         "0000066740",
		}))
		Expect(constituents[3].SubIndustry).To(Equal("Hotels, Resorts & Cruise Lines"))
	})

	It("downloads constituents and drops excluded symbols", func() {
		httpmock.RegisterResponder("GET", testConstituentsURL,
			httpmock.NewBytesResponder(200, fixture("sp500.html")))

		constituents, err := data.FetchConstituents(context.Background(), data.ConstituentsURL, data.DefaultExclusions)
		Expect(err).NotTo(HaveOccurred())

		symbols := make([]string, 0, len(constituents))
		for _, c := range constituents {
			symbols = append(symbols, c.Symbol)
		}
		Expect(symbols).To(Equal([]string{"MMM", "AOS", "ABNB"}))
		Expect(httpmock.GetTotalCallCount()).To(Equal(1))
	})

	It("reports HTTP errors", func() {
		httpmock.RegisterResponder("GET", testConstituentsURL,
			httpmock.NewStringResponder(503, "unavailable"))

		_, err := data.FetchConstituents(context.Background(), data.ConstituentsURL, nil)
		Expect(err).To(MatchError(data.ErrHTTPStatus))
	})

	It("fails when the page has no table", func() {
		httpmock.RegisterResponder("GET", testConstituentsURL,
			httpmock.NewStringResponder(200, "<html><body><p>nothing here</p></body></html>"))

		_, err := data.FetchConstituents(context.Background(), data.ConstituentsURL, nil)
		Expect(err).To(MatchError(data.ErrConstituentsMissing))
	})
})

var _ = Describe("Tiingo", func() {
	var (
		begin  time.Time
		end    time.Time
		tiingo *data.Tiingo
	)

	BeforeEach(func() {
		common.CachePurge()
		begin = day(4)
		end = day(7)
		tiingo = data.NewTiingo("TEST").WithConcurrency(2)

		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/AAPL/prices?startDate=2024-03-04&endDate=2024-03-07&token=TEST",
			httpmock.NewBytesResponder(200, fixture("tiingo_AAPL.json")))
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/MMM/prices?startDate=2024-03-04&endDate=2024-03-07&token=TEST",
			httpmock.NewBytesResponder(200, fixture("tiingo_MMM.json")))
		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/BRK-B/prices?startDate=2024-03-04&endDate=2024-03-07&token=TEST",
			httpmock.NewStringResponder(404, `{"detail":"Error: Ticker 'BRK-B' not found"}`))
	})

	It("aligns all symbols on the union of dates", func() {
		df, failed, err := tiingo.FetchAdjustedClose(context.Background(), []string{"MMM", "aapl"}, begin, end)
		Expect(err).NotTo(HaveOccurred())
		Expect(failed).To(BeEmpty())

		Expect(df.ColNames).To(Equal([]string{"AAPL", "MMM"}))
		Expect(df.Dates).To(Equal([]time.Time{day(4), day(5), day(6), day(7)}))
		Expect(df.Vals[0]).To(Equal([]float64{100, 102, 101, 103}))
		Expect(df.NaNCount()).To(Equal(map[string]int{"AAPL": 0, "MMM": 1}))
	})

	It("reports failed symbols without failing the others", func() {
		df, failed, err := tiingo.FetchAdjustedClose(context.Background(), []string{"MMM", "BRK.B"}, begin, end)
		Expect(err).NotTo(HaveOccurred())
		Expect(df.ColNames).To(Equal([]string{"MMM"}))
		Expect(failed).To(HaveKey("BRK.B"))
		Expect(errors.Is(failed["BRK.B"], data.ErrHTTPStatus)).To(BeTrue())
	})

	It("fails when nothing could be downloaded", func() {
		_, failed, err := tiingo.FetchAdjustedClose(context.Background(), []string{"BRK.B"}, begin, end)
		Expect(err).To(MatchError(data.ErrNoPrices))
		Expect(failed).To(HaveLen(1))
	})

	It("serves repeated requests from the cache", func() {
		_, _, err := tiingo.FetchAdjustedClose(context.Background(), []string{"AAPL"}, begin, end)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = tiingo.FetchAdjustedClose(context.Background(), []string{"AAPL"}, begin, end)
		Expect(err).NotTo(HaveOccurred())
		Expect(httpmock.GetTotalCallCount()).To(Equal(1))
	})

	It("skips the cache when disabled", func() {
		tiingo.WithCache(false)
		for range []int{1, 2} {
			_, _, err := tiingo.FetchAdjustedClose(context.Background(), []string{"AAPL"}, begin, end)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(httpmock.GetTotalCallCount()).To(Equal(2))
	})
})

var _ = Describe("RefreshPolicy", func() {
	yes := data.PrompterFunc(func(string) (bool, error) { return true, nil })
	no := data.PrompterFunc(func(string) (bool, error) { return false, nil })

	DescribeTable("decides whether to download",
		func(policy data.RefreshPolicy, exists bool, prompter data.Prompter, expected bool) {
			refresh, err := data.ShouldRefresh(policy, exists, prompter, "refresh?")
			Expect(err).NotTo(HaveOccurred())
			Expect(refresh).To(Equal(expected))
		},
		Entry("always, missing", data.AlwaysRefresh, false, nil, true),
		Entry("always, exists", data.AlwaysRefresh, true, nil, true),
		Entry("skip, missing", data.SkipIfExists, false, nil, true),
		Entry("skip, exists", data.SkipIfExists, true, nil, false),
		Entry("prompt, missing", data.PromptCaller, false, no, true),
		Entry("prompt, exists, yes", data.PromptCaller, true, yes, true),
		Entry("prompt, exists, no", data.PromptCaller, true, no, false),
		Entry("prompt, exists, no prompter", data.PromptCaller, true, nil, false),
	)

	It("passes the question to the prompter", func() {
		var asked string
		prompter := data.PrompterFunc(func(q string) (bool, error) {
			asked = q
			return true, nil
		})
		_, err := data.ShouldRefresh(data.PromptCaller, true, prompter, "download prices?")
		Expect(err).NotTo(HaveOccurred())
		Expect(asked).To(Equal("download prices?"))
	})

	DescribeTable("parses",
		func(in string, expected data.RefreshPolicy) {
			policy, err := data.ParseRefreshPolicy(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(policy).To(Equal(expected))
		},
		Entry("always", "always", data.AlwaysRefresh),
		Entry("skip", "SKIP", data.SkipIfExists),
		Entry("prompt", "prompt", data.PromptCaller),
		Entry("default", "", data.PromptCaller),
	)

	It("rejects unknown policies", func() {
		_, err := data.ParseRefreshPolicy("sometimes")
		Expect(err).To(MatchError(data.ErrInvalidRefresh))
	})
})
