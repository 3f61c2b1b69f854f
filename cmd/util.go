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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/google/uuid"
	"github.com/penny-vault/pvrisk/data"
	"github.com/penny-vault/pvrisk/data/database"
	"github.com/penny-vault/pvrisk/pipeline"
	"github.com/penny-vault/pvrisk/report"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlag binds a configuration key to both an environment variable and a
// command line flag. Flags take precedence over the environment which takes
// precedence over the config file.
func bindFlag(flags *pflag.FlagSet, key, env, flag string) {
	if err := viper.BindEnv(key, env); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind environment variable")
	}
	if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind flag")
	}
}

// startProfiling honors the --cpu-profile and --trace flags; the returned
// function stops whatever was started
func startProfiling() func() {
	stops := make([]func(), 0, 2)

	if Profile {
		f, err := os.Create("profile.out")
		if err != nil {
			log.Fatal().Err(err).Msg("could not create profile output file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start cpu profile")
		}
		stops = append(stops, pprof.StopCPUProfile)
	}

	if Trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create trace output file")
		}
		if err := trace.Start(f); err != nil {
			log.Fatal().Err(err).Msg("failed to start trace")
		}
		stops = append(stops, func() {
			trace.Stop()
			if err := f.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close trace file")
			}
		})
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// rankConfig builds the ranking configuration from viper
func rankConfig() (risk.Config, error) {
	cfg := risk.DefaultConfig()
	cfg.Level = viper.GetString("var.confidence")
	cfg.Horizon = viper.GetInt("var.horizon")
	cfg.Workers = viper.GetInt("var.workers")

	policy, err := risk.ParseFailurePolicy(viper.GetString("var.on_error"))
	if err != nil {
		return cfg, err
	}
	cfg.OnError = policy

	if viper.IsSet("var.zscores") {
		var extra map[string]float64
		if err := viper.UnmarshalKey("var.zscores", &extra); err != nil {
			return cfg, fmt.Errorf("%w: %s", risk.ErrInvalidConfidenceLevel, err)
		}
		for level, z := range extra {
			cfg.ZScores[level] = z
		}
	}

	return cfg, nil
}

func fileSource() *pipeline.FileSource {
	return &pipeline.FileSource{
		PricesPath:   viper.GetString("files.prices"),
		MetadataPath: viper.GetString("files.metadata"),
		LookbackDays: viper.GetInt("var.lookback_days"),
	}
}

// outputPath returns where a report in the given format is written. "-" means
// stdout which is the default for the terminal table.
func outputPath(writer report.Writer, format, output string) string {
	if output != "" {
		return output
	}
	if format == report.FormatTable {
		return "-"
	}
	return filepath.Join("data", "res_sp500_vars"+writer.Extension())
}

func writeReport(ctx context.Context, table *risk.Table, format, output string) error {
	writer, err := report.New(format)
	if err != nil {
		return err
	}

	path := outputPath(writer, format, output)
	if path == "-" {
		return writer.Write(ctx, os.Stdout, table)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := writer.Write(ctx, fh, table); err != nil {
		fh.Close()
		return err
	}

	log.Info().Str("Path", path).Str("Format", format).Int("Rows", len(table.Rows)).Msg("wrote report")
	return fh.Close()
}

// saveRanking stores table in PostgreSQL under a fresh run id
func saveRanking(ctx context.Context, table *risk.Table) (uuid.UUID, error) {
	runID := uuid.New()

	if err := database.Connect(ctx); err != nil {
		return runID, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		return runID, err
	}
	return runID, database.SaveRanking(ctx, runID, table)
}

// runRanking loads the configured files, ranks them, and writes the result
// everywhere it is configured to go
func runRanking(ctx context.Context) (*risk.Table, error) {
	cfg, err := rankConfig()
	if err != nil {
		return nil, err
	}

	table, err := pipeline.Rank(ctx, fileSource(), cfg)
	if err != nil {
		return nil, err
	}

	if err := writeReport(ctx, table, viper.GetString("output.format"), viper.GetString("files.output")); err != nil {
		log.Error().Err(err).Msg("could not write report")
		return nil, err
	}

	if viper.GetBool("database.save") {
		runID, err := saveRanking(ctx, table)
		if err != nil {
			log.Error().Err(err).Str("RunID", runID.String()).Msg("could not save ranking to database")
			return nil, err
		}
	}

	return table, nil
}

// linePrompter asks yes/no questions on a terminal; anything other than y or
// yes is a no
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{in: bufio.NewReader(in), out: out}
}

func (lp *linePrompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(lp.out, "%s [y/N]: ", question)

	line, err := lp.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func fetchOptions() (pipeline.FetchOptions, error) {
	opts := pipeline.FetchOptions{
		ConstituentsURL: viper.GetString("constituents.url"),
		Exclude:         viper.GetStringSlice("constituents.exclude"),
		MetadataPath:    viper.GetString("files.metadata"),
		PricesPath:      viper.GetString("files.prices"),
		LookbackDays:    viper.GetInt("tiingo.lookback_days"),
	}

	var err error
	if opts.ConstituentsPolicy, err = data.ParseRefreshPolicy(viper.GetString("refresh.constituents")); err != nil {
		return opts, err
	}
	if opts.PricesPolicy, err = data.ParseRefreshPolicy(viper.GetString("refresh.prices")); err != nil {
		return opts, err
	}

	if token := viper.GetString("tiingo.token"); token != "" {
		opts.Provider = data.NewTiingo(token).WithConcurrency(viper.GetInt("tiingo.concurrency"))
	}

	return opts, nil
}
