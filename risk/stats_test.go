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

package risk_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvrisk/risk"
)

var _ = Describe("Stats", func() {
	nan := math.NaN()

	Describe("ForwardFill", func() {
		It("carries the last price over gaps", func() {
			filled := risk.ForwardFill([]float64{100, nan, nan, 103})
			Expect(filled).To(Equal([]float64{100, 100, 100, 103}))
		})

		It("leaves leading gaps missing", func() {
			filled := risk.ForwardFill([]float64{nan, 10, nan})
			Expect(math.IsNaN(filled[0])).To(BeTrue())
			Expect(filled[1:]).To(Equal([]float64{10, 10}))
		})

		It("does not modify its input", func() {
			prices := []float64{1, nan, 3}
			risk.ForwardFill(prices)
			Expect(math.IsNaN(prices[1])).To(BeTrue())
		})
	})

	Describe("PctChange", func() {
		It("computes simple returns", func() {
			Expect(risk.PctChange([]float64{100, 110, 99})).To(HaveLen(2))
			returns := risk.PctChange([]float64{100, 110, 99})
			Expect(returns[0]).To(BeNumerically("~", 0.1, 1e-12))
			Expect(returns[1]).To(BeNumerically("~", -0.1, 1e-12))
		})

		It("skips leading missing values", func() {
			returns := risk.PctChange([]float64{nan, nan, 50, 55})
			Expect(returns).To(HaveLen(1))
			Expect(returns[0]).To(BeNumerically("~", 0.1, 1e-12))
		})

		It("returns nothing for a single observation", func() {
			Expect(risk.PctChange([]float64{nan, 50})).To(BeEmpty())
		})
	})

	Describe("Estimate", func() {
		It("matches the reference series", func() {
			stats, err := risk.Estimate([]float64{100, 102, 101, 103})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.MeanReturn).To(BeNumerically("~", 0.00999935287646414, 1e-12))
			Expect(stats.StdReturn).To(BeNumerically("~", 0.017150424543468486, 1e-12))
			Expect(stats.LastPrice).To(Equal(103.0))
			Expect(stats.Observations).To(Equal(3))
		})

		It("treats a gap the same as a repeated price", func() {
			gapped, err := risk.Estimate([]float64{100, nan, 102})
			Expect(err).NotTo(HaveOccurred())

			repeated, err := risk.Estimate([]float64{100, 100, 102})
			Expect(err).NotTo(HaveOccurred())

			Expect(gapped).To(Equal(repeated))
			Expect(gapped.MeanReturn).To(BeNumerically("~", 0.01, 1e-12))
			Expect(gapped.StdReturn).To(BeNumerically("~", 0.0141421356237, 1e-12))
		})

		It("uses the last forward-filled price", func() {
			stats, err := risk.Estimate([]float64{nan, 10, 11, 12, nan})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.LastPrice).To(Equal(12.0))
			Expect(stats.Observations).To(Equal(3))
		})

		It("has zero mean and deviation for a constant series", func() {
			stats, err := risk.Estimate([]float64{42, 42, 42, 42, 42})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.MeanReturn).To(Equal(0.0))
			Expect(stats.StdReturn).To(Equal(0.0))
		})

		DescribeTable("rejects series without enough returns",
			func(prices []float64) {
				_, err := risk.Estimate(prices)
				Expect(err).To(MatchError(risk.ErrInsufficientData))
			},
			Entry("empty", []float64{}),
			Entry("single price", []float64{100}),
			Entry("two prices", []float64{100, 101}),
			Entry("all missing", []float64{nan, nan, nan}),
			Entry("mostly missing", []float64{nan, nan, 100, 101}),
		)

		It("rejects a series containing a zero price", func() {
			_, err := risk.Estimate([]float64{0, 10, 11, 12})
			Expect(err).To(MatchError(risk.ErrInsufficientData))
		})

		It("rejects a series ending at zero", func() {
			_, err := risk.Estimate([]float64{10, 11, 12, 0})
			Expect(err).To(MatchError(risk.ErrInsufficientData))
		})
	})
})
