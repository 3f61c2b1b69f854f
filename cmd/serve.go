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
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvrisk/common"
	"github.com/penny-vault/pvrisk/handler"
	"github.com/penny-vault/pvrisk/observability/opentelemetry"
	"github.com/penny-vault/pvrisk/router"
)

func init() {
	flags := serveCmd.Flags()

	flags.IntP("port", "p", 3000, "Port to run application server on")
	bindFlag(flags, "server.port", "PORT", "port")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pvrisk api server",
	Long:  `Run HTTP server that serves the value-at-risk ranking of the configured input files`,
	Run: func(cmd *cobra.Command, args []string) {
		defer startProfiling()()

		ctx := context.Background()

		if err := common.SetupCache(); err != nil {
			log.Fatal().Err(err).Msg("could not setup cache")
		}

		shutdownTracing, err := opentelemetry.Setup(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}()

		cfg, err := rankConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid ranking configuration")
		}
		handler.SetSource(fileSource(), cfg)

		// Create new Fiber instance
		app := fiber.New()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("error during shutdown")
			}
		}()

		// Configure CORS
		app.Use(cors.New(cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,HEAD",
		}))

		router.SetupRoutes(app)

		// keep the input files fresh; the cached rankings are keyed by file
		// revision so they are recomputed after each refresh
		if viper.GetString("schedule.cron") != "" {
			scheduler, err := newScheduler(func() {
				if _, err := runFetch(ctx, nil); err != nil {
					log.Error().Err(err).Msg("scheduled fetch failed")
				}
			})
			if err != nil {
				log.Fatal().Err(err).Msg("could not create scheduler")
			}
			scheduler.StartAsync()
			defer scheduler.Stop()
		}

		if err := app.Listen(fmt.Sprintf(":%d", viper.GetInt("server.port"))); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	},
}
