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

package handler_test

import (
	"context"
	"io"
	"math"
	"net/http/httptest"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/dataframe"
	"github.com/penny-vault/pvrisk/handler"
	"github.com/penny-vault/pvrisk/pipeline"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/penny-vault/pvrisk/router"
)

type memorySource struct {
	input    *pipeline.Input
	revision string
	loads    int
}

func (ms *memorySource) Load(ctx context.Context) (*pipeline.Input, error) {
	ms.loads++
	return ms.input, nil
}

func (ms *memorySource) Revision() (string, error) {
	return ms.revision, nil
}

func newMemorySource() *memorySource {
	return &memorySource{
		revision: "r1",
		input: &pipeline.Input{
			Prices: &dataframe.DataFrame{
				Dates: []time.Time{
					time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
				},
				ColNames: []string{"MID", "LOW", "HIGH", "GAP"},
				Vals: [][]float64{
					{100, 102, 101, 103},
					{50, 50, 50, 50},
					{10, 12, 9, 13},
					{math.NaN(), math.NaN(), math.NaN(), 20},
				},
			},
			Metadata: risk.SymbolMetadata{
				"MID":  "Middle Corp",
				"LOW":  "Low Inc.",
				"HIGH": "High Co",
				"GAP":  "Gap Ltd",
			},
		},
	}
}

type rankingResponse struct {
	Level   string           `json:"level"`
	Horizon int              `json:"horizon"`
	ZScore  float64          `json:"zScore"`
	Rows    []risk.VarResult `json:"rows"`
	Skipped []struct {
		Symbol string `json:"symbol"`
		Error  string `json:"error"`
	} `json:"skipped"`
}

func get(app *fiber.App, url string) (int, []byte) {
	resp, err := app.Test(httptest.NewRequest("GET", url, nil), -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, body
}

var _ = Describe("Ranking API", func() {
	var (
		app *fiber.App
		src *memorySource
	)

	BeforeEach(func() {
		common.CachePurge()
		src = newMemorySource()

		cfg := risk.DefaultConfig()
		cfg.OnError = risk.SkipAndLog
		handler.SetSource(src, cfg)

		app = fiber.New()
		router.SetupRoutes(app)
	})

	It("responds to health checks", func() {
		code, body := get(app, "/healthz")
		Expect(code).To(Equal(fiber.StatusOK))

		var ping handler.PingResponse
		Expect(json.Unmarshal(body, &ping)).To(Succeed())
		Expect(ping.Status).To(Equal("success"))
	})

	It("returns the ranking sorted by var percent", func() {
		code, body := get(app, "/v1/ranking")
		Expect(code).To(Equal(fiber.StatusOK))

		var resp rankingResponse
		Expect(json.Unmarshal(body, &resp)).To(Succeed())
		Expect(resp.Level).To(Equal("99"))
		Expect(resp.Horizon).To(Equal(1))
		Expect(resp.ZScore).To(Equal(2.33))
		Expect(resp.Rows).To(HaveLen(3))
		Expect(resp.Rows[0].Symbol).To(Equal("HIGH"))
		Expect(resp.Rows[1].Symbol).To(Equal("MID"))
		Expect(resp.Rows[1].VarPct).To(BeNumerically("~", -0.02996113630981744, 1e-12))
		Expect(resp.Rows[2].Symbol).To(Equal("LOW"))

		Expect(resp.Skipped).To(HaveLen(1))
		Expect(resp.Skipped[0].Symbol).To(Equal("GAP"))
	})

	It("honors the confidence and horizon parameters", func() {
		code, body := get(app, "/v1/ranking?confidence=95&horizon=1")
		Expect(code).To(Equal(fiber.StatusOK))

		var resp rankingResponse
		Expect(json.Unmarshal(body, &resp)).To(Succeed())
		Expect(resp.Level).To(Equal("95"))
		Expect(resp.Rows[1].VarPct).To(BeNumerically("~", -0.01829884762025886, 1e-12))
	})

	It("rejects unknown confidence levels", func() {
		code, _ := get(app, "/v1/ranking?confidence=90")
		Expect(code).To(Equal(fiber.StatusBadRequest))
	})

	It("rejects malformed horizons", func() {
		code, _ := get(app, "/v1/ranking?horizon=abc")
		Expect(code).To(Equal(fiber.StatusBadRequest))

		code, _ = get(app, "/v1/ranking?horizon=-1")
		Expect(code).To(Equal(fiber.StatusBadRequest))
	})

	It("fails the request when the failure policy is abort", func() {
		code, _ := get(app, "/v1/ranking?onError=abort")
		Expect(code).To(Equal(fiber.StatusInternalServerError))
	})

	It("serves repeated requests from the cache until the revision changes", func() {
		get(app, "/v1/ranking")
		get(app, "/v1/ranking")
		get(app, "/v1/ranking/mid")
		Expect(src.loads).To(Equal(1))

		get(app, "/v1/ranking?confidence=95")
		Expect(src.loads).To(Equal(2))

		src.revision = "r2"
		get(app, "/v1/ranking")
		Expect(src.loads).To(Equal(3))
	})

	It("returns a single symbol with its rank", func() {
		code, body := get(app, "/v1/ranking/mid")
		Expect(code).To(Equal(fiber.StatusOK))

		var row struct {
			Rank        int     `json:"rank"`
			Symbol      string  `json:"symbol"`
			CompanyName string  `json:"companyName"`
			VarPct      float64 `json:"varPct"`
		}
		Expect(json.Unmarshal(body, &row)).To(Succeed())
		Expect(row.Rank).To(Equal(2))
		Expect(row.Symbol).To(Equal("MID"))
		Expect(row.CompanyName).To(Equal("Middle Corp"))
	})

	It("returns not found for symbols outside the ranking", func() {
		code, _ := get(app, "/v1/ranking/GAP")
		Expect(code).To(Equal(fiber.StatusNotFound))

		code, _ = get(app, "/v1/ranking/NOPE")
		Expect(code).To(Equal(fiber.StatusNotFound))
	})

	It("lists the confidence levels", func() {
		code, body := get(app, "/v1/levels")
		Expect(code).To(Equal(fiber.StatusOK))

		var levels []struct {
			Level  string  `json:"level"`
			ZScore float64 `json:"zScore"`
		}
		Expect(json.Unmarshal(body, &levels)).To(Succeed())
		Expect(levels).To(HaveLen(2))
		Expect(levels[0].Level).To(Equal("95"))
		Expect(levels[1].ZScore).To(Equal(2.33))
	})

	It("is unavailable without a source", func() {
		handler.SetSource(nil, risk.DefaultConfig())
		code, _ := get(app, "/v1/ranking")
		Expect(code).To(Equal(fiber.StatusServiceUnavailable))
	})
})
