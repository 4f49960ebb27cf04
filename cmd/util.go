// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/engine"
	"github.com/penny-vault/pv-tracker/messenger"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
	"github.com/penny-vault/pv-tracker/risk"
	"github.com/penny-vault/pv-tracker/store"
)

// setup initializes logging, tracing, the cache, the store, the market data
// provider and the community feed, and returns an engine wired to them. The
// returned function releases everything setup acquired.
func setup(ctx context.Context) (*engine.Engine, func(), error) {
	common.SetupLogging()

	shutdownTracing, err := opentelemetry.Setup(common.CurrentVersion.String())
	if err != nil {
		log.Error().Err(err).Msg("could not setup tracing")
		return nil, nil, err
	}

	if err := common.SetupCache(); err != nil {
		return nil, nil, err
	}

	st, err := store.New(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not open document store")
		return nil, nil, err
	}

	tiingo := data.NewTiingo(viper.GetString("tiingo.token"),
		data.WithTiingoURL(viper.GetString("tiingo.url")),
		data.WithRateLimit(viper.GetFloat64("tiingo.rate_limit")),
		data.WithTimeout(viper.GetDuration("tiingo.timeout")),
	)
	fred := data.NewFred(viper.GetString("fred.url"), viper.GetString("fred.series"))
	provider := data.NewManager(tiingo, fred, true)

	tz := common.GetTimezone()

	cache, err := risk.NewReturnCache(viper.GetInt("risk.cache_size"), viper.GetDuration("risk.cache_ttl"))
	if err != nil {
		log.Error().Err(err).Msg("could not create return cache")
		return nil, nil, err
	}
	riskEngine := risk.NewEngine(provider,
		risk.WithCache(cache),
		risk.WithBenchmark(viper.GetString("engine.benchmark")),
		risk.WithFallbackRate(viper.GetFloat64("engine.risk_free_fallback")),
		risk.WithLocation(tz),
	)

	opts := []engine.Option{
		engine.WithRisk(riskEngine),
		engine.WithLocation(tz),
		engine.WithMaxHistoryYears(viper.GetInt("engine.max_history_years")),
		engine.WithFeeRate(viper.GetFloat64("engine.fee_rate_percent")),
	}

	if viper.GetBool("store.dry_run") {
		log.Info().Msg("dry run, community feed disabled")
	} else if err := messenger.Initialize(); err != nil {
		log.Warn().Err(err).Msg("community feed disabled")
	} else if feed := messenger.DefaultFeed(); feed != nil {
		opts = append(opts, engine.WithFeed(feed))
	}

	cleanup := func() {
		messenger.Close()
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("could not flush traces")
		}
	}

	return engine.New(st, provider, opts...), cleanup, nil
}

// formatMoney renders a dollar amount, e.g. $1,234.56
func formatMoney(v float64) string {
	cents := decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// formatRatio renders a fractional ratio as a percentage
func formatRatio(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printRow(w *tabwriter.Writer, cols ...interface{}) {
	for ii, c := range cols {
		if ii > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
