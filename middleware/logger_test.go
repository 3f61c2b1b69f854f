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

package middleware_test

import (
	"bytes"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvrisk/middleware"
)

var _ = Describe("Logger", func() {
	var (
		app   *fiber.App
		buf   *bytes.Buffer
		saved zerolog.Logger
	)

	BeforeEach(func() {
		saved = log.Logger
		buf = &bytes.Buffer{}
		log.Logger = zerolog.New(buf)

		app = fiber.New()
		app.Use(middleware.NewLogger())
		app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
		app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
		app.Get("/broken", func(c *fiber.Ctx) error { return fiber.ErrInternalServerError })
	})

	AfterEach(func() {
		log.Logger = saved
	})

	It("logs successful requests at info", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/ok?x=1", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		Expect(buf.String()).To(ContainSubstring(`"level":"info"`))
		Expect(buf.String()).To(ContainSubstring(`"StatusCode":200`))
		Expect(buf.String()).To(ContainSubstring(`"Path":"/ok"`))
		Expect(buf.String()).To(ContainSubstring(`"QueryStringParams":"x=1"`))
	})

	It("passes errors through the app's error handler", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		Expect(buf.String()).To(ContainSubstring(`"level":"warn"`))
	})

	It("logs server errors at error", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/broken", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		Expect(buf.String()).To(ContainSubstring(`"level":"error"`))
	})
})
