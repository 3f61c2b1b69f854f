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

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/report"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/penny-vault/pvrisk/tradecron"
)

// setConfig overrides viper settings for the duration of a spec
func setConfig(settings map[string]interface{}) {
	for key, val := range settings {
		k, old := key, viper.Get(key)
		viper.Set(k, val)
		DeferCleanup(func() {
			viper.Set(k, old)
		})
	}
}

var _ = Describe("Prompter", func() {
	DescribeTable("interprets answers",
		func(input string, expected bool) {
			out := &bytes.Buffer{}
			prompter := newLinePrompter(strings.NewReader(input), out)

			answer, err := prompter.Confirm("Download prices?")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal(expected))
			Expect(out.String()).To(Equal("Download prices? [y/N]: "))
		},
		Entry("y", "y\n", true),
		Entry("Y", "Y\n", true),
		Entry("yes with whitespace", "  yes \n", true),
		Entry("n", "n\n", false),
		Entry("empty line", "\n", false),
		Entry("closed input", "", false),
		Entry("answer without newline", "y", true),
	)
})

var _ = Describe("Schedule", func() {
	It("accepts standard cron expressions", func() {
		schedule, tz, err := parseSchedule("30 18 * * 1-5", "America/New_York")
		Expect(err).NotTo(HaveOccurred())
		Expect(tz.String()).To(Equal("America/New_York"))

		// Friday evening runs next on Monday
		friday := time.Date(2024, 3, 8, 19, 0, 0, 0, tz)
		next, err := schedule.Next(friday)
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(BeTemporally("==", time.Date(2024, 3, 11, 18, 30, 0, 0, tz)))
	})

	It("accepts market relative expressions", func() {
		schedule, _, err := parseSchedule("@close 30", "America/New_York")
		Expect(err).NotTo(HaveOccurred())
		Expect(schedule.TimeSpec).To(Equal("30 16 * * *"))

		schedule, _, err = parseSchedule("@open -15 0 * * 1", "America/New_York")
		Expect(err).NotTo(HaveOccurred())
		Expect(schedule.TimeSpec).To(Equal("15 9 * * 1"))
	})

	It("rejects modifiers that follow the time fields", func() {
		_, _, err := parseSchedule("-15 @open * * 1", "America/New_York")
		Expect(err).To(MatchError(tradecron.ErrMisplacedModifier))
	})

	It("rejects invalid cron expressions", func() {
		_, _, err := parseSchedule("every day", "UTC")
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown timezones", func() {
		_, _, err := parseSchedule("0 0 * * *", "Mars/Olympus_Mons")
		Expect(err).To(HaveOccurred())
	})

	It("requires a schedule", func() {
		_, _, err := parseSchedule("", "UTC")
		Expect(err).To(MatchError(ErrNoSchedule))
	})

	It("creates a scheduler from the configuration", func() {
		setConfig(map[string]interface{}{"schedule.cron": "0 6 * * *", "schedule.timezone": "UTC"})
		scheduler, err := newScheduler(func() {})
		Expect(err).NotTo(HaveOccurred())
		Expect(scheduler.Len()).To(Equal(1))
	})

	It("skips jobs when the market is closed", func() {
		ms := tradecron.NewMarketStatus(&tradecron.RegularHours)
		calls := 0
		now := time.Date(2024, 3, 29, 18, 0, 0, 0, time.UTC)
		job := tradingDaysOnly(ms, func() time.Time { return now }, func() { calls++ })

		job()
		Expect(calls).To(Equal(0))

		now = time.Date(2024, 4, 1, 22, 0, 0, 0, time.UTC)
		job()
		Expect(calls).To(Equal(1))
	})
})

var _ = Describe("Configuration", func() {
	It("builds the ranking configuration", func() {
		setConfig(map[string]interface{}{
			"var.confidence": "95",
			"var.horizon":    5,
			"var.on_error":   "skip",
			"var.workers":    3,
		})

		cfg, err := rankConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Level).To(Equal("95"))
		Expect(cfg.Horizon).To(Equal(5))
		Expect(cfg.OnError).To(Equal(risk.SkipAndLog))
		Expect(cfg.Workers).To(Equal(3))
	})

	It("adds configured z-scores to the defaults", func() {
		setConfig(map[string]interface{}{
			"var.zscores": map[string]interface{}{"90": 1.28},
		})

		cfg, err := rankConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ZScores).To(HaveKeyWithValue("90", 1.28))
		Expect(cfg.ZScores).To(HaveKeyWithValue("99", 2.33))
		Expect(risk.DefaultZScores).NotTo(HaveKey("90"))
	})

	It("rejects unknown failure policies", func() {
		setConfig(map[string]interface{}{"var.on_error": "ignore"})
		_, err := rankConfig()
		Expect(err).To(MatchError(risk.ErrInvalidFailurePolicy))
	})

	It("rejects unknown refresh policies", func() {
		setConfig(map[string]interface{}{"refresh.prices": "sometimes"})
		_, err := fetchOptions()
		Expect(err).To(MatchError(data.ErrInvalidRefresh))
	})

	It("only creates a price provider when a token is configured", func() {
		setConfig(map[string]interface{}{"tiingo.token": ""})
		opts, err := fetchOptions()
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.Provider).To(BeNil())
		Expect(opts.Exclude).To(ConsistOf("BF.B", "BRK.B", "GEV", "SOLV"))

		setConfig(map[string]interface{}{"tiingo.token": "secret"})
		opts, err = fetchOptions()
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.Provider).NotTo(BeNil())
	})

	It("redacts secrets from the printed configuration", func() {
		setConfig(map[string]interface{}{"tiingo.token": "secret"})
		settings := effectiveSettings()
		Expect(settings["tiingo"]).To(HaveKeyWithValue("token", redacted))
	})

	It("picks a default report location per format", func() {
		xlsx, _ := report.New("xlsx")
		Expect(outputPath(xlsx, "xlsx", "")).To(Equal(filepath.Join("data", "res_sp500_vars.xlsx")))

		table, _ := report.New("table")
		Expect(outputPath(table, "table", "")).To(Equal("-"))

		Expect(outputPath(xlsx, "xlsx", "out.xlsx")).To(Equal("out.xlsx"))
	})
})

var _ = Describe("Ranking", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "pvrisk")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		prices := "Date;MID;LOW;HIGH\n" +
			"2024-03-04;100;50;10\n" +
			"2024-03-05;102;50;12\n" +
			"2024-03-06;101;50;9\n" +
			"2024-03-07;103;50;13\n"
		Expect(os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(prices), 0o644)).To(Succeed())

		metadata := "Symbol\tname\nMID\tMiddle Corp\nLOW\tLow Inc.\nHIGH\tHigh Co\n"
		Expect(os.WriteFile(filepath.Join(dir, "metadata.txt"), []byte(metadata), 0o644)).To(Succeed())

		setConfig(map[string]interface{}{
			"files.prices":   filepath.Join(dir, "prices.csv"),
			"files.metadata": filepath.Join(dir, "metadata.txt"),
			"files.output":   filepath.Join(dir, "out", "ranking.json"),
			"output.format":  "json",
			"database.save":  false,
		})
	})

	It("loads, ranks, and writes the report", func() {
		table, err := runRanking(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Rows).To(HaveLen(3))

		content, err := os.ReadFile(filepath.Join(dir, "out", "ranking.json"))
		Expect(err).NotTo(HaveOccurred())

		var doc struct {
			Rows []risk.VarResult `json:"rows"`
		}
		Expect(json.Unmarshal(content, &doc)).To(Succeed())
		Expect(doc.Rows[0].Symbol).To(Equal("HIGH"))
		Expect(doc.Rows[2].Symbol).To(Equal("LOW"))
	})

	It("fails on unknown report formats", func() {
		setConfig(map[string]interface{}{"output.format": "pdf"})
		_, err := runRanking(context.Background())
		Expect(err).To(MatchError(report.ErrUnknownFormat))
	})
})
