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

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pvrisk/risk"
	"github.com/rs/zerolog/log"
)

const createRankingTable = `CREATE TABLE IF NOT EXISTS var_ranking (
	run_id         UUID NOT NULL,
	as_of_date     DATE NOT NULL,
	confidence     TEXT NOT NULL,
	horizon        INTEGER NOT NULL,
	rank           INTEGER NOT NULL,
	symbol         TEXT NOT NULL,
	company_name   TEXT NOT NULL,
	adj_price      DOUBLE PRECISION NOT NULL,
	mean_price_chg DOUBLE PRECISION NOT NULL,
	std_price_chg  DOUBLE PRECISION NOT NULL,
	var_price      DOUBLE PRECISION NOT NULL,
	var_pct        DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, symbol)
)`

const insertRanking = `INSERT INTO var_ranking (
	run_id, as_of_date, confidence, horizon, rank, symbol, company_name,
	adj_price, mean_price_chg, std_price_chg, var_price, var_pct, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const selectRanking = `SELECT as_of_date, confidence, horizon, symbol, company_name,
	adj_price, mean_price_chg, std_price_chg, var_price, var_pct
FROM var_ranking WHERE run_id = $1 ORDER BY rank`

const selectLatestRun = `SELECT run_id FROM var_ranking ORDER BY created_at DESC LIMIT 1`

const deleteRankings = `DELETE FROM var_ranking WHERE created_at < $1`

// EnsureSchema creates the var_ranking table if it does not exist
func EnsureSchema(ctx context.Context) error {
	trx, err := Trx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not begin transaction")
		return err
	}

	if _, err := trx.Exec(ctx, createRankingTable); err != nil {
		log.Error().Err(err).Msg("could not create var_ranking table")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	return trx.Commit(ctx)
}

// SaveRanking stores every row of table under runID in a single transaction.
// Rows are numbered by their position in the table starting at 1.
func SaveRanking(ctx context.Context, runID uuid.UUID, table *risk.Table) error {
	subLog := log.With().Str("RunID", runID.String()).Str("Level", table.Level).Int("Horizon", table.Horizon).Logger()

	trx, err := Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not begin transaction")
		return err
	}

	createdAt := time.Now()
	for idx, row := range table.Rows {
		_, err := trx.Exec(ctx, insertRanking,
			runID, row.AsOfDate, table.Level, table.Horizon, idx+1, row.Symbol, row.CompanyName,
			row.LastPrice, row.MeanReturn, row.StdReturn, row.VarPrice, row.VarPct, createdAt)
		if err != nil {
			subLog.Error().Err(err).Str("Symbol", row.Symbol).Msg("could not save ranking row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit ranking")
		return err
	}

	subLog.Info().Int("Rows", len(table.Rows)).Msg("saved ranking to database")
	return nil
}

// PurgeRankings deletes every ranking row created before olderThan and returns
// the number of rows removed
func PurgeRankings(ctx context.Context, olderThan time.Time) (int64, error) {
	subLog := log.With().Time("OlderThan", olderThan).Logger()

	trx, err := Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not begin transaction")
		return 0, err
	}

	tag, err := trx.Exec(ctx, deleteRankings, olderThan)
	if err != nil {
		subLog.Error().Err(err).Msg("could not delete rankings")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Err(err).Msg("could not rollback transaction")
		}
		return 0, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit purge")
		return 0, err
	}

	subLog.Info().Int64("NumDeleted", tag.RowsAffected()).Msg("purged expired rankings")
	return tag.RowsAffected(), nil
}

// LatestRunID returns the id of the most recently saved ranking
func LatestRunID(ctx context.Context) (uuid.UUID, error) {
	trx, err := Trx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not begin transaction")
		return uuid.Nil, err
	}

	var runID uuid.UUID
	if err := trx.QueryRow(ctx, selectLatestRun).Scan(&runID); err != nil {
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Err(err).Msg("could not rollback transaction")
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrRankingNotFound
		}
		log.Error().Err(err).Msg("could not query latest ranking")
		return uuid.Nil, err
	}

	return runID, trx.Commit(ctx)
}

// LoadRanking reads a saved ranking back in rank order
func LoadRanking(ctx context.Context, runID uuid.UUID) (*risk.Table, error) {
	subLog := log.With().Str("RunID", runID.String()).Logger()

	trx, err := Trx(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not begin transaction")
		return nil, err
	}

	rollback := func() {
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Err(err).Msg("could not rollback transaction")
		}
	}

	rows, err := trx.Query(ctx, selectRanking, runID)
	if err != nil {
		subLog.Error().Err(err).Msg("could not query ranking")
		rollback()
		return nil, err
	}

	table := &risk.Table{}
	for rows.Next() {
		var row risk.VarResult
		if err := rows.Scan(&row.AsOfDate, &table.Level, &table.Horizon, &row.Symbol, &row.CompanyName,
			&row.LastPrice, &row.MeanReturn, &row.StdReturn, &row.VarPrice, &row.VarPct); err != nil {
			subLog.Error().Err(err).Msg("could not scan ranking row")
			rows.Close()
			rollback()
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		subLog.Error().Err(err).Msg("error reading ranking rows")
		rollback()
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRankingNotFound, runID)
	}

	table.AsOfDate = table.Rows[0].AsOfDate
	if z, err := risk.DefaultZScores.Lookup(table.Level); err == nil {
		table.ZScore = z
	}

	return table, nil
}
