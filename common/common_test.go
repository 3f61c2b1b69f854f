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

package common_test

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvrisk/common"
)

var _ = Describe("Cache", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		viper.Set("cache.redis", false)
		viper.Set("cache.local_size", 4)
		Expect(common.SetupCache()).To(Succeed())
	})

	It("round trips values", func() {
		val := []byte(strings.Repeat("2024-03-04,100.25\n", 200))
		Expect(common.CacheSet(ctx, "prices", val)).To(Succeed())

		got, err := common.CacheGet(ctx, "prices")
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.Equal(got, val)).To(BeTrue())
	})

	It("reports misses", func() {
		_, err := common.CacheGet(ctx, "missing")
		Expect(err).To(MatchError(common.ErrCacheMiss))
	})

	It("evicts the least recently used entries", func() {
		for _, key := range []string{"a", "b", "c", "d", "e"} {
			Expect(common.CacheSet(ctx, key, []byte(key))).To(Succeed())
		}

		_, err := common.CacheGet(ctx, "a")
		Expect(err).To(MatchError(common.ErrCacheMiss))

		got, err := common.CacheGet(ctx, "e")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("e")))
	})

	It("purges every entry", func() {
		Expect(common.CacheSet(ctx, "a", []byte("a"))).To(Succeed())
		common.CachePurge()
		_, err := common.CacheGet(ctx, "a")
		Expect(err).To(MatchError(common.ErrCacheMiss))
	})

	It("rejects malformed redis urls", func() {
		viper.Set("cache.redis", true)
		viper.Set("cache.redis_url", "not a url")
		DeferCleanup(func() {
			viper.Set("cache.redis", false)
			Expect(common.SetupCache()).To(Succeed())
		})

		Expect(common.SetupCache()).NotTo(Succeed())
	})
})

var _ = Describe("CacheKey", func() {
	It("is stable", func() {
		Expect(common.CacheKey("ranking", "r1", "99")).To(Equal(common.CacheKey("ranking", "r1", "99")))
		Expect(common.CacheKey("ranking", "r1", "99")).To(HaveLen(32))
	})

	It("distinguishes part boundaries", func() {
		Expect(common.CacheKey("ab", "c")).NotTo(Equal(common.CacheKey("a", "bc")))
	})

	It("depends on every part", func() {
		Expect(common.CacheKey("ranking", "r1", "99")).NotTo(Equal(common.CacheKey("ranking", "r1", "95")))
	})
})

var _ = Describe("Helpers", func() {
	It("upper cases and trims symbols in place", func() {
		symbols := []string{" aapl", "brk.b ", "MMM"}
		common.ArrToUpper(symbols)
		Expect(symbols).To(Equal([]string{"AAPL", "BRK.B", "MMM"}))
	})

	It("uses the exchange timezone", func() {
		Expect(common.GetTimezone().String()).To(Equal("America/New_York"))
	})
})

var _ = Describe("Version", func() {
	It("formats release versions", func() {
		v := common.Version{Major: 1, Minor: 2, Patch: 3}
		Expect(v.String()).To(Equal("1.2.3"))
	})

	It("includes the suffix for pre-releases", func() {
		v := common.Version{Major: 0, Minor: 1, Patch: 0, Suffix: "DEV"}
		Expect(v.String()).To(HavePrefix("0.1.0-DEV"))
	})

	It("builds the version banner", func() {
		banner := common.BuildVersionString(false)
		Expect(banner).To(HavePrefix(common.ProgramName + " v" + common.CurrentVersion.String()))
		Expect(banner).To(ContainSubstring("Build Date: unknown"))
		Expect(banner).NotTo(ContainSubstring("Dependencies:"))
	})
})
