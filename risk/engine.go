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

package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"

	"github.com/penny-vault/pv-tracker/calendar"
	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/data"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
	"github.com/penny-vault/pv-tracker/portfolio"
)

const (
	// FallbackRiskFreeRate is used when the rate provider fails (4.5%)
	FallbackRiskFreeRate = 0.045

	DefaultBenchmark = "SPY"
)

// Position is a held symbol and its share of the invested cost
type Position struct {
	Symbol string
	Weight float64
}

// Weights converts holdings into positions weighted by invested cost
func Weights(holdings []*portfolio.Holding) []Position {
	total := 0.0
	for _, h := range holdings {
		total += h.InvestedCost
	}
	positions := make([]Position, 0, len(holdings))
	if total <= 0 {
		return positions
	}
	for _, h := range holdings {
		positions = append(positions, Position{
			Symbol: h.Symbol,
			Weight: h.InvestedCost / total,
		})
	}
	return positions
}

type Option func(*Engine)

func WithBenchmark(symbol string) Option {
	return func(e *Engine) {
		if s := common.NormalizeSymbol(symbol); s != "" {
			e.benchmark = s
		}
	}
}

// WithFallbackRate sets the rate used when the provider fails, in percent
func WithFallbackRate(percent float64) Option {
	return func(e *Engine) {
		e.fallbackRate = percent / 100
	}
}

func WithCache(cache *ReturnCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// Engine computes the risk statistics of a set of positions relative to a
// benchmark. An Engine is safe for concurrent use.
type Engine struct {
	provider     data.Provider
	cache        *ReturnCache
	benchmark    string
	fallbackRate float64
	now          func() time.Time
	loc          *time.Location
}

func NewEngine(provider data.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:     provider,
		benchmark:    DefaultBenchmark,
		fallbackRate: FallbackRiskFreeRate,
		now:          time.Now,
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		// a non-positive size never fails
		e.cache, _ = NewReturnCache(DefaultCacheSize, 0)
	}
	return e
}

func (e *Engine) Cache() *ReturnCache {
	return e.cache
}

func (e *Engine) Benchmark() string {
	return e.benchmark
}

// Compute returns the weight-weighted beta, alpha, Sharpe ratio and the
// covariance based volatility of the positions. Compute never fails: when
// the statistics cannot be derived the all-zero result is returned with
// Degraded set. An empty benchmark selects the engine's default.
func (e *Engine) Compute(ctx context.Context, positions []Position, benchmark string) (res *portfolio.PortfolioRisk) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "risk.Compute")
	defer span.End()

	if benchmark = common.NormalizeSymbol(benchmark); benchmark == "" {
		benchmark = e.benchmark
	}
	span.SetAttributes(
		attribute.String("Benchmark", benchmark),
		attribute.Int("NumPositions", len(positions)),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("risk computation panicked: %v", r)
			log.Error().Err(err).Str("Benchmark", benchmark).Msg("risk computation degraded")
			span.RecordError(err)
			span.SetStatus(codes.Error, "risk computation panicked")
			res = e.degraded()
		}
	}()

	if len(positions) == 0 {
		return &portfolio.PortfolioRisk{ComputedAt: e.now()}
	}

	rf := e.riskFreeRate(ctx)

	benchReturns, err := e.benchmarkReturns(ctx, benchmark)
	if err != nil {
		log.Warn().Err(err).Str("Benchmark", benchmark).Msg("benchmark history unavailable; risk degraded")
		span.RecordError(err)
		span.SetStatus(codes.Error, "benchmark history unavailable")
		return e.degraded()
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	returns := e.symbolReturns(ctx, symbols)

	var (
		beta, alpha, sharpe float64
		haveSharpe          bool
		weights             []float64
		series              [][]float64
	)

	for _, p := range positions {
		sr, ok := returns[common.NormalizeSymbol(p.Symbol)]
		if !ok {
			continue
		}

		b, err := Beta(benchReturns.DailyReturns, sr.DailyReturns)
		if err != nil {
			if errors.Is(err, ErrDegenerateVariance) {
				log.Warn().Str("Benchmark", benchmark).Msg("benchmark returns have no variance; risk degraded")
				span.RecordError(err)
				span.SetStatus(codes.Error, "degenerate benchmark variance")
				return e.degraded()
			}
			log.Warn().Err(err).Str("Symbol", sr.Symbol).Msg("excluding symbol from risk computation")
			continue
		}

		beta += b * p.Weight
		benchYear, symbolYear := AlignedReturns(benchReturns.DailyCloses, sr.DailyCloses)
		alpha += Alpha(symbolYear, benchYear, rf, b) * p.Weight
		if s := Sharpe(sr.DailyCloses, sr.DailyReturns, rf); s != nil {
			sharpe += *s * p.Weight
			haveSharpe = true
		}

		weights = append(weights, p.Weight)
		series = append(series, sr.DailyReturns)
	}

	if len(weights) == 0 {
		err := ErrNotEnoughData
		log.Warn().Err(err).Int("NumPositions", len(positions)).Msg("no position has a usable return history; risk degraded")
		span.RecordError(err)
		span.SetStatus(codes.Error, "no usable return history")
		return e.degraded()
	}

	volatility, err := Volatility(weights, CovarianceMatrix(series))
	if err != nil {
		log.Warn().Err(err).Msg("could not compute portfolio volatility; risk degraded")
		span.RecordError(err)
		span.SetStatus(codes.Error, "volatility failed")
		return e.degraded()
	}

	res = &portfolio.PortfolioRisk{
		Beta:       common.RoundRatio(beta),
		Alpha:      common.RoundRatio(alpha),
		Volatility: common.RoundRatio(volatility),
		ComputedAt: e.now(),
	}
	if haveSharpe {
		s := common.RoundRatio(sharpe)
		res.Sharpe = &s
	}

	log.Debug().Str("Benchmark", benchmark).Float64("Beta", res.Beta).Float64("Alpha", res.Alpha).
		Float64("Volatility", res.Volatility).Float64("WeightCovered", floats.Sum(weights)).Msg("computed portfolio risk")

	return res
}

func (e *Engine) degraded() *portfolio.PortfolioRisk {
	return &portfolio.PortfolioRisk{
		ComputedAt: e.now(),
		Degraded:   true,
	}
}

// riskFreeRate returns the current rate as a fraction
func (e *Engine) riskFreeRate(ctx context.Context) float64 {
	pct, err := e.provider.GetRiskFreeRate(ctx)
	if err != nil {
		log.Warn().Err(err).Float64("Fallback", e.fallbackRate).Msg("risk free rate unavailable; using fallback")
		return e.fallbackRate
	}
	return pct / 100
}

func (e *Engine) benchmarkReturns(ctx context.Context, symbol string) (*SymbolReturns, error) {
	if sr, ok := e.cache.Get(symbol); ok {
		return sr, nil
	}
	points, err := e.provider.GetBenchmarkReturns(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sr := NewSymbolReturns(symbol, points)
	if len(sr.DailyReturns) < 2 {
		return nil, ErrNotEnoughData
	}
	e.cache.Add(sr)
	return sr, nil
}

// symbolReturns loads the trailing year return series of every symbol.
// Cached series are reused and the rest are fetched in parallel; symbols
// that fail are logged and left out of the result.
func (e *Engine) symbolReturns(ctx context.Context, symbols []string) map[string]*SymbolReturns {
	symbols = common.NormalizeSymbols(symbols)
	res := make(map[string]*SymbolReturns, len(symbols))

	missing := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if sr, ok := e.cache.Get(s); ok {
			res[s] = sr
			continue
		}
		missing = append(missing, s)
	}

	if len(missing) == 0 {
		return res
	}

	to, err := calendar.ParseDay(calendar.Yesterday(e.now(), e.loc), e.loc)
	if err != nil {
		log.Error().Err(err).Msg("could not determine history window")
		return res
	}
	from := to.AddDate(-1, 0, 0)

	histories, errs := data.FetchHistories(ctx, e.provider, missing, from, to)
	for symbol, err := range errs {
		log.Warn().Err(err).Str("Symbol", symbol).Msg("excluding symbol without price history from risk computation")
	}

	for symbol, points := range histories {
		sr := NewSymbolReturns(symbol, points)
		e.cache.Add(sr)
		res[symbol] = sr
	}

	return res
}
