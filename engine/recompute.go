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

package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
	"github.com/penny-vault/pv-tracker/portfolio"
	"github.com/penny-vault/pv-tracker/risk"
)

type userData struct {
	user     *portfolio.User
	txLog    []*portfolio.Transaction
	holdings []*portfolio.Holding
}

func (e *Engine) load(ctx context.Context, userID string) (*userData, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	txLog, err := e.store.GetTransactionLog(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userData{
		user:     e.settings(user),
		txLog:    txLog,
		holdings: portfolio.AggregateHoldings(txLog),
	}, nil
}

func (e *Engine) state(ctx context.Context, ud *userData) *portfolio.PortfolioState {
	symbols := make([]string, 0, len(ud.holdings))
	for _, h := range ud.holdings {
		symbols = append(symbols, h.Symbol)
	}
	quotes, _ := data.FetchQuotes(ctx, e.provider, symbols)

	return portfolio.AggregateState(&portfolio.StateInput{
		Previous:     ud.user.State,
		Log:          ud.txLog,
		Holdings:     ud.holdings,
		Quotes:       quotes,
		StartingCash: ud.user.StartingCash(),
		Now:          e.now(),
		Location:     e.loc,
	})
}

func (e *Engine) riskFor(ctx context.Context, ud *userData) *portfolio.PortfolioRisk {
	return e.risk.Compute(ctx, risk.Weights(ud.holdings), ud.user.Settings.Benchmark)
}

// RecomputePortfolioState derives the snapshot from the log and the current
// quotes and persists it. Held symbols without a quote are left out.
func (e *Engine) RecomputePortfolioState(ctx context.Context, userID string) (*portfolio.PortfolioState, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.RecomputePortfolioState")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	ud, err := e.load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, err
	}

	state := e.state(ctx, ud)
	if err := e.store.UpdatePortfolioState(ctx, userID, state); err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not save portfolio state")
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not save state")
		return nil, err
	}

	return state, nil
}

// RecomputePortfolioRisk computes and persists the risk statistics. The
// computation itself never fails; see risk.Engine.Compute.
func (e *Engine) RecomputePortfolioRisk(ctx context.Context, userID string) (*portfolio.PortfolioRisk, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.RecomputePortfolioRisk")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	ud, err := e.load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, err
	}

	res := e.riskFor(ctx, ud)
	if res.Degraded {
		log.Warn().Str("UserID", userID).Msg("saving degraded portfolio risk")
	}
	if err := e.store.UpdatePortfolioRisk(ctx, userID, res); err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not save portfolio risk")
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not save risk")
		return nil, err
	}

	return res, nil
}

// Recompute refreshes state and risk and writes both with one call
func (e *Engine) Recompute(ctx context.Context, userID string) (*portfolio.PortfolioState, *portfolio.PortfolioRisk, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.Recompute")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID))

	ud, err := e.load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, nil, err
	}

	state := e.state(ctx, ud)
	res := e.riskFor(ctx, ud)
	if err := e.store.UpdatePortfolio(ctx, userID, state, res); err != nil {
		log.Error().Err(err).Str("UserID", userID).Msg("could not save portfolio")
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not save portfolio")
		return nil, nil, err
	}

	return state, res, nil
}

// RecomputeAll runs Recompute for every user in the store. Users that fail
// are logged and reported in the returned map; the rest are still updated.
func (e *Engine) RecomputeAll(ctx context.Context) (int, map[string]error, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return 0, nil, err
	}

	failed := make(map[string]error)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return len(users) - len(failed), failed, err
		}
		if _, _, err := e.Recompute(ctx, userID); err != nil {
			log.Warn().Err(err).Str("UserID", userID).Msg("recompute failed")
			failed[userID] = err
		}
	}

	return len(users) - len(failed), failed, nil
}

// ReconstructGrowth returns the daily valuation of symbol from its first
// transaction through yesterday, or through the latest transaction in the
// log when that is later. An empty symbol returns the curve of every
// symbol in the log followed by the combined portfolio curve. Symbols whose
// price history cannot be fetched are left out.
func (e *Engine) ReconstructGrowth(ctx context.Context, userID, symbol string) ([]*portfolio.GrowthPoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "engine.ReconstructGrowth")
	defer span.End()
	span.SetAttributes(attribute.String("UserID", userID), attribute.String("Symbol", symbol))

	if _, err := e.store.GetUser(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load user")
		return nil, err
	}

	txLog, err := e.store.GetTransactionLog(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load transaction log")
		return nil, err
	}
	if len(txLog) == 0 {
		return nil, portfolio.ErrTransactionHistoryNotFound
	}

	symbol = common.NormalizeSymbol(symbol)
	symbols := portfolio.Symbols(txLog)
	if symbol != "" {
		symbols = []string{symbol}
	}

	sorted := portfolio.SortTransactions(txLog)
	from, err := calendar.ParseDay(sorted[0].Date, e.loc)
	if err != nil {
		return nil, err
	}
	// every series ends on the same day so the combined curve lines up
	yesterday := calendar.Yesterday(e.now(), e.loc)
	end := calendar.MaxDay(yesterday, sorted[len(sorted)-1].Date)
	to, err := calendar.ParseDay(end, e.loc)
	if err != nil {
		return nil, err
	}

	histories, errs := data.FetchHistories(ctx, e.provider, symbols, from, to)
	for s, err := range errs {
		log.Warn().Err(err).Str("UserID", userID).Str("Symbol", s).Msg("excluding symbol without price history from growth")
	}

	series := make([][]*portfolio.GrowthPoint, 0, len(histories))
	for _, s := range symbols {
		prices, ok := histories[s]
		if !ok {
			continue
		}
		points, err := portfolio.ReconstructGrowth(txLog, s, prices, end)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "growth reconstruction failed")
			return nil, err
		}
		series = append(series, points)
	}

	res := make([]*portfolio.GrowthPoint, 0)
	for _, s := range series {
		res = append(res, s...)
	}
	if symbol == "" {
		res = append(res, portfolio.MergeGrowth(series...)...)
	}

	span.SetAttributes(attribute.Int("NumPoints", len(res)))
	return res, nil
}
